package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/ehr/fhirbridge/internal/platform/store"
)

// Collection stores records of type T in one MongoDB collection. T must
// carry bson tags, with the id tagged "_id".
type Collection[T store.Record] struct {
	coll *mongo.Collection
}

func NewCollection[T store.Record](db *mongo.Database, name string) *Collection[T] {
	return &Collection[T]{coll: db.Collection(name)}
}

func (c *Collection[T]) Find(ctx context.Context, q store.Query) ([]*T, error) {
	opts := options.Find()
	if len(q.Sort) > 0 {
		opts.SetSort(Sort(q.Sort))
	}
	cursor, err := c.coll.Find(ctx, Filter(q), opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.coll.Name(), err)
	}
	defer cursor.Close(ctx)

	var out []*T
	for cursor.Next(ctx) {
		rec := new(T)
		if err := cursor.Decode(rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.coll.Name(), err)
		}
		out = append(out, rec)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.coll.Name(), err)
	}
	return out, nil
}

func (c *Collection[T]) FindByID(ctx context.Context, id string) (*T, error) {
	rec := new(T)
	err := c.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s %s: %w", c.coll.Name(), id, err)
	}
	return rec, nil
}

func (c *Collection[T]) Insert(ctx context.Context, rec *T) error {
	_, err := c.coll.InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert %s: %w", c.coll.Name(), err)
	}
	return nil
}

func (c *Collection[T]) UpdateByID(ctx context.Context, id string, fields store.Fields) (*T, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	rec := new(T)
	err := c.coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id}}, Set(fields), opts).Decode(rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update %s %s: %w", c.coll.Name(), id, err)
	}
	return rec, nil
}

func (c *Collection[T]) DeleteByID(ctx context.Context, id string) (bool, error) {
	res, err := c.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return false, fmt.Errorf("delete %s %s: %w", c.coll.Name(), id, err)
	}
	return res.DeletedCount > 0, nil
}
