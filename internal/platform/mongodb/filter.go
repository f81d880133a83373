package mongodb

import (
	"regexp"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/ehr/fhirbridge/internal/platform/store"
)

// fieldName maps a record field to its document key.
func fieldName(f string) string {
	if f == "id" {
		return "_id"
	}
	return f
}

// Filter translates a store query into a find filter. Multiple conditions
// are combined under $and so repeated operators never collide.
func Filter(q store.Query) bson.D {
	switch len(q.Where) {
	case 0:
		return bson.D{}
	case 1:
		return condition(q.Where[0])
	}
	all := make(bson.A, 0, len(q.Where))
	for _, c := range q.Where {
		all = append(all, condition(c))
	}
	return bson.D{{Key: "$and", Value: all}}
}

func condition(c store.Condition) bson.D {
	switch c.Op {
	case store.OpOr:
		alts := make(bson.A, 0, len(c.Any))
		for _, sub := range c.Any {
			alts = append(alts, condition(sub))
		}
		return bson.D{{Key: "$or", Value: alts}}
	case store.OpContainsFold:
		s, _ := c.Value.(string)
		return bson.D{{Key: fieldName(c.Field), Value: bson.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}}}
	default:
		return bson.D{{Key: fieldName(c.Field), Value: c.Value}}
	}
}

// Sort translates sort fields into an ordered sort document.
func Sort(fields []store.SortField) bson.D {
	d := make(bson.D, 0, len(fields))
	for _, f := range fields {
		dir := 1
		if f.Desc {
			dir = -1
		}
		d = append(d, bson.E{Key: fieldName(f.Field), Value: dir})
	}
	return d
}

// Set builds a $set update for the supplied fields. The id is immutable.
func Set(fields store.Fields) bson.D {
	set := bson.D{}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		set = append(set, bson.E{Key: k, Value: v})
	}
	return bson.D{{Key: "$set", Value: set}}
}
