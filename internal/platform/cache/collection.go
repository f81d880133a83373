package cache

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/fhirbridge/internal/platform/store"
)

// writeStripes is the number of write counters ids are hashed onto.
const writeStripes = 64

// Collection wraps a store.Collection and caches FindByID results.
// Writes go to the underlying collection first, then invalidate the entry.
// Cache failures are logged and treated as misses.
//
// A read that overlaps a write to the same id may fetch the old record and
// cache it after the write's invalidation. Each write bumps a counter for
// the id's stripe; a read that sees the counter move while it was fetching
// drops what it cached. Counters are per process, so with a shared Redis a
// write from another replica is bounded by the TTL alone.
type Collection[T store.Record] struct {
	inner  store.Collection[T]
	cache  Store
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
	writes [writeStripes]atomic.Uint64
}

func NewCollection[T store.Record](inner store.Collection[T], c Store, prefix string, ttl time.Duration, logger zerolog.Logger) *Collection[T] {
	return &Collection[T]{
		inner:  inner,
		cache:  c,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With().Str("cache", prefix).Logger(),
	}
}

func (c *Collection[T]) key(id string) string {
	return c.prefix + ":" + id
}

func (c *Collection[T]) Find(ctx context.Context, q store.Query) ([]*T, error) {
	return c.inner.Find(ctx, q)
}

func (c *Collection[T]) FindByID(ctx context.Context, id string) (*T, error) {
	data, ok, err := c.cache.Get(ctx, c.key(id))
	if err != nil {
		c.logger.Warn().Err(err).Str("id", id).Msg("cache get failed")
	}
	if ok {
		rec := new(T)
		if err := json.Unmarshal(data, rec); err == nil {
			return rec, nil
		}
	}

	seen := c.writeCount(id).Load()
	rec, err := c.inner.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, id, rec)
	if c.writeCount(id).Load() != seen {
		c.invalidate(ctx, id)
	}
	return rec, nil
}

func (c *Collection[T]) Insert(ctx context.Context, rec *T) error {
	return c.inner.Insert(ctx, rec)
}

func (c *Collection[T]) UpdateByID(ctx context.Context, id string, fields store.Fields) (*T, error) {
	rec, err := c.inner.UpdateByID(ctx, id, fields)
	c.written(ctx, id)
	return rec, err
}

func (c *Collection[T]) DeleteByID(ctx context.Context, id string) (bool, error) {
	ok, err := c.inner.DeleteByID(ctx, id)
	c.written(ctx, id)
	return ok, err
}

func (c *Collection[T]) writeCount(id string) *atomic.Uint64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &c.writes[h.Sum32()%writeStripes]
}

func (c *Collection[T]) written(ctx context.Context, id string) {
	c.writeCount(id).Add(1)
	c.invalidate(ctx, id)
}

func (c *Collection[T]) store(ctx context.Context, id string, rec *T) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, c.key(id), data, c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("id", id).Msg("cache set failed")
	}
}

func (c *Collection[T]) invalidate(ctx context.Context, id string) {
	if err := c.cache.Delete(ctx, c.key(id)); err != nil {
		c.logger.Warn().Err(err).Str("id", id).Msg("cache delete failed")
	}
}
