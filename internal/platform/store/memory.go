package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Collection used for tests and the "memory"
// store driver. Records are kept as Fields snapshots in insertion order.
type Memory[T Record] struct {
	mu    sync.RWMutex
	order []string
	docs  map[string]Fields
}

func NewMemory[T Record]() *Memory[T] {
	return &Memory[T]{docs: make(map[string]Fields)}
}

func (m *Memory[T]) Find(_ context.Context, q Query) ([]*T, error) {
	m.mu.RLock()
	var matched []Fields
	for _, id := range m.order {
		doc := m.docs[id]
		if matchAll(doc, q.Where) {
			matched = append(matched, doc)
		}
	}
	m.mu.RUnlock()

	if len(q.Sort) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, s := range q.Sort {
				c := compareValues(matched[i][s.Field], matched[j][s.Field])
				if c == 0 {
					continue
				}
				if s.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	out := make([]*T, 0, len(matched))
	for _, doc := range matched {
		rec, err := decode[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *Memory[T]) FindByID(_ context.Context, id string) (*T, error) {
	m.mu.RLock()
	doc, ok := m.docs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decode[T](doc)
}

func (m *Memory[T]) Insert(_ context.Context, rec *T) error {
	id := (*rec).RecordID()
	doc := (*rec).Fields()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[id]; exists {
		return ErrDuplicate
	}
	m.docs[id] = copyFields(doc)
	m.order = append(m.order, id)
	return nil
}

func (m *Memory[T]) UpdateByID(_ context.Context, id string, fields Fields) (*T, error) {
	m.mu.Lock()
	doc, ok := m.docs[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	next := copyFields(doc)
	for k, v := range fields {
		if k == "id" {
			continue
		}
		next[k] = v
	}
	m.docs[id] = next
	m.mu.Unlock()
	return decode[T](next)
}

func (m *Memory[T]) DeleteByID(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return false, nil
	}
	delete(m.docs, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// Ping always succeeds.
func (m *Memory[T]) Ping(context.Context) error { return nil }

// Len returns the number of stored records.
func (m *Memory[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func copyFields(f Fields) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// decode converts a snapshot back into T through its JSON tags.
func decode[T Record](doc Fields) (*T, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	rec := new(T)
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

func matchAll(doc Fields, conds []Condition) bool {
	for _, c := range conds {
		if !match(doc, c) {
			return false
		}
	}
	return true
}

func match(doc Fields, c Condition) bool {
	switch c.Op {
	case OpOr:
		for _, sub := range c.Any {
			if match(doc, sub) {
				return true
			}
		}
		return false
	case OpContainsFold:
		s, ok := doc[c.Field].(string)
		if !ok {
			return false
		}
		needle, _ := c.Value.(string)
		return strings.Contains(strings.ToLower(s), strings.ToLower(needle))
	default:
		v, ok := doc[c.Field]
		if !ok || v == nil {
			return c.Value == nil
		}
		return compareValues(v, c.Value) == 0
	}
}

// compareValues orders two field values. nil sorts before everything else.
// Values of unrelated types fall back to their string form.
func compareValues(a, b interface{}) int {
	a, b = deref(a), deref(b)
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			switch {
			case av.Before(bv):
				return -1
			case av.After(bv):
				return 1
			}
			return 0
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	}

	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func deref(v interface{}) interface{} {
	switch p := v.(type) {
	case *string:
		if p == nil {
			return nil
		}
		return *p
	case *int:
		if p == nil {
			return nil
		}
		return *p
	case *time.Time:
		if p == nil {
			return nil
		}
		return *p
	}
	return v
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
