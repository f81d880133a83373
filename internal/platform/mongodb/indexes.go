package mongodb

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// IndexModels builds ascending secondary indexes, one per key list.
func IndexModels(keys [][]string) []mongo.IndexModel {
	models := make([]mongo.IndexModel, 0, len(keys))
	for _, k := range keys {
		d := make(bson.D, 0, len(k))
		for _, f := range k {
			d = append(d, bson.E{Key: f, Value: 1})
		}
		models = append(models, mongo.IndexModel{
			Keys:    d,
			Options: options.Index().SetName(strings.Join(k, "_") + "_idx"),
		})
	}
	return models
}

// EnsureIndexes creates the given indexes on each collection. Existing
// indexes with the same definition are left untouched.
func EnsureIndexes(ctx context.Context, db *mongo.Database, collections map[string][][]string) error {
	for name, keys := range collections {
		if len(keys) == 0 {
			continue
		}
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, IndexModels(keys)); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}
