// Package store defines the record store boundary shared by the MongoDB,
// PostgreSQL and in-memory backends.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when inserting a record whose id is taken.
	ErrDuplicate = errors.New("record already exists")
)

// Fields is the storage representation of a record, keyed by field name
// (first_name, visit_date, ...). Absent optional fields have no key.
type Fields map[string]interface{}

// Record is implemented by every persisted entity.
type Record interface {
	RecordID() string
	Fields() Fields
}

// Collection holds the records of one entity type keyed by string id.
// Implementations must be safe for concurrent use and provide
// per-document atomicity for writes.
type Collection[T Record] interface {
	// Find returns the records matching q, ordered by q.Sort.
	Find(ctx context.Context, q Query) ([]*T, error)
	// FindByID returns ErrNotFound when the id is absent.
	FindByID(ctx context.Context, id string) (*T, error)
	// Insert returns ErrDuplicate when the id is taken.
	Insert(ctx context.Context, rec *T) error
	// UpdateByID sets the supplied fields and returns the updated record,
	// or ErrNotFound.
	UpdateByID(ctx context.Context, id string, fields Fields) (*T, error)
	// DeleteByID reports whether a record was removed.
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// Pinger is implemented by backends that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}
