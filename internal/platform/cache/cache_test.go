package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/fhirbridge/internal/platform/store"
)

func TestMemory_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("expected miss on empty store")
	}
	_ = s.Set(ctx, "k", []byte("v"), time.Minute)
	data, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(data) != "v" {
		t.Fatalf("expected hit with v, got %q %v %v", data, ok, err)
	}
	_ = s.Delete(ctx, "k")
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	_ = s.Set(ctx, "k", []byte("v"), -time.Second)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("expected expired entry to miss")
	}
}

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (i item) RecordID() string { return i.ID }
func (i item) Fields() store.Fields {
	return store.Fields{"id": i.ID, "name": i.Name}
}

// countingCollection counts FindByID calls reaching the backend.
type countingCollection struct {
	*store.Memory[item]
	finds int
}

func (c *countingCollection) FindByID(ctx context.Context, id string) (*item, error) {
	c.finds++
	return c.Memory.FindByID(ctx, id)
}

func TestCollection_CachesFindByID(t *testing.T) {
	ctx := context.Background()
	inner := &countingCollection{Memory: store.NewMemory[item]()}
	_ = inner.Insert(ctx, &item{ID: "1", Name: "one"})

	c := NewCollection[item](inner, NewMemory(), "item", time.Minute, zerolog.Nop())

	for i := 0; i < 3; i++ {
		got, err := c.FindByID(ctx, "1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Name != "one" {
			t.Fatalf("expected one, got %q", got.Name)
		}
	}
	if inner.finds != 1 {
		t.Errorf("expected 1 backend read, got %d", inner.finds)
	}
}

func TestCollection_InvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	inner := &countingCollection{Memory: store.NewMemory[item]()}
	_ = inner.Insert(ctx, &item{ID: "1", Name: "one"})
	c := NewCollection[item](inner, NewMemory(), "item", time.Minute, zerolog.Nop())

	_, _ = c.FindByID(ctx, "1")
	if _, err := c.UpdateByID(ctx, "1", store.Fields{"name": "uno"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := c.FindByID(ctx, "1")
	if got.Name != "uno" {
		t.Errorf("expected fresh value after update, got %q", got.Name)
	}

	if ok, _ := c.DeleteByID(ctx, "1"); !ok {
		t.Fatal("expected delete to succeed")
	}
	if _, err := c.FindByID(ctx, "1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

// pausingCollection holds a FindByID after it has read the record, until
// release is closed.
type pausingCollection struct {
	*store.Memory[item]
	fetched chan struct{}
	release chan struct{}
}

func (c *pausingCollection) FindByID(ctx context.Context, id string) (*item, error) {
	rec, err := c.Memory.FindByID(ctx, id)
	if c.fetched != nil {
		close(c.fetched)
		c.fetched = nil
		<-c.release
	}
	return rec, err
}

func TestCollection_ReadOverlappingWriteIsNotCached(t *testing.T) {
	ctx := context.Background()
	inner := &pausingCollection{
		Memory:  store.NewMemory[item](),
		fetched: make(chan struct{}),
		release: make(chan struct{}),
	}
	_ = inner.Insert(ctx, &item{ID: "1", Name: "one"})
	c := NewCollection[item](inner, NewMemory(), "item", time.Minute, zerolog.Nop())

	fetched := inner.fetched
	done := make(chan *item)
	go func() {
		rec, _ := c.FindByID(ctx, "1")
		done <- rec
	}()

	<-fetched
	if _, err := c.UpdateByID(ctx, "1", store.Fields{"name": "uno"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	close(inner.release)

	if stale := <-done; stale.Name != "one" {
		t.Fatalf("expected the overlapping read to return what it fetched, got %q", stale.Name)
	}
	got, err := c.FindByID(ctx, "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "uno" {
		t.Errorf("expected updated value after overlapping read, got %q", got.Name)
	}
}
