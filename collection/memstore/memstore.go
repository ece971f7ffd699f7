// Package memstore is an in-process collection.Store. It backs tests and
// single-instance deployments that run without MongoDB.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/jrsteele09/go-auth-bridge/collection"
	apperrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
	"go.mongodb.org/mongo-driver/bson"
)

var _ collection.Store = (*Store)(nil)

type table struct {
	docs map[string]bson.Raw
	ids  []string // insertion order, used when a query is unordered
}

type Store struct {
	tables map[string]*table
	lock   sync.RWMutex
}

func New() *Store {
	return &Store{
		tables: make(map[string]*table),
	}
}

func (s *Store) Get(_ context.Context, coll, id string) (bson.Raw, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	t, ok := s.tables[coll]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "[memstore Get] %s/%s", coll, id)
	}
	raw, ok := t.docs[id]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "[memstore Get] %s/%s", coll, id)
	}
	return clone(raw), nil
}

func (s *Store) Upsert(_ context.Context, coll, id string, doc any) error {
	raw, err := withID(doc, id)
	if err != nil {
		return apperrors.Wrapf(err, "[memstore Upsert] %s/%s", coll, id)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	t, ok := s.tables[coll]
	if !ok {
		t = &table{docs: make(map[string]bson.Raw)}
		s.tables[coll] = t
	}
	if _, exists := t.docs[id]; !exists {
		t.ids = append(t.ids, id)
	}
	t.docs[id] = raw
	return nil
}

func (s *Store) Delete(_ context.Context, coll, id string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	t, ok := s.tables[coll]
	if !ok {
		return nil
	}
	if _, exists := t.docs[id]; !exists {
		return nil
	}
	delete(t.docs, id)
	for i, existing := range t.ids {
		if existing == id {
			t.ids = append(t.ids[:i], t.ids[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) Query(_ context.Context, coll string, q collection.StoreQuery) ([]bson.Raw, error) {
	s.lock.RLock()
	t, ok := s.tables[coll]
	var candidates []bson.Raw
	if ok {
		candidates = make([]bson.Raw, 0, len(t.ids))
		for _, id := range t.ids {
			candidates = append(candidates, t.docs[id])
		}
	}
	s.lock.RUnlock()

	matched := make([]bson.Raw, 0)
	for _, raw := range candidates {
		if matches(raw, q.Filters) {
			matched = append(matched, raw)
		}
	}

	if len(q.Sort) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			return compareKeys(matched[i], matched[j], q.Sort) < 0
		})
	}

	results := make([]bson.Raw, 0)
	for _, raw := range matched {
		if len(q.After) > 0 && !after(raw, q.Sort, q.After) {
			continue
		}
		results = append(results, clone(raw))
		if q.Limit > 0 && len(results) == q.Limit {
			break
		}
	}
	return results, nil
}

// Len reports the number of documents stored in coll.
func (s *Store) Len(coll string) int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if t, ok := s.tables[coll]; ok {
		return len(t.docs)
	}
	return 0
}

func field(raw bson.Raw, name string) bson.RawValue {
	v, err := collection.Lookup(raw, name)
	if err != nil {
		return bson.RawValue{Type: bson.TypeNull}
	}
	return v
}

func matches(raw bson.Raw, filters []collection.Predicate) bool {
	for _, p := range filters {
		if !match(field(raw, p.Field), p.Op, p.Value) {
			return false
		}
	}
	return true
}

func match(v bson.RawValue, op collection.Op, want bson.RawValue) bool {
	sameClass := typeClass(v) == typeClass(want)
	c := compare(v, want)
	switch op {
	case collection.Eq:
		return sameClass && c == 0
	case collection.Ne:
		return !sameClass || c != 0
	case collection.Lt:
		return sameClass && c < 0
	case collection.Lte:
		return sameClass && c <= 0
	case collection.Gt:
		return sameClass && c > 0
	case collection.Gte:
		return sameClass && c >= 0
	}
	return false
}

func compareKeys(a, b bson.Raw, keys []collection.SortField) int {
	for _, k := range keys {
		c := compare(field(a, k.Field), field(b, k.Field))
		if k.Direction == collection.Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// after reports whether raw sorts strictly after the cursor tuple.
func after(raw bson.Raw, keys []collection.SortField, cursor []bson.RawValue) bool {
	for i, k := range keys {
		if i >= len(cursor) {
			break
		}
		c := compare(field(raw, k.Field), cursor[i])
		if k.Direction == collection.Descending {
			c = -c
		}
		if c != 0 {
			return c > 0
		}
	}
	return false
}

func withID(doc any, id string) (bson.Raw, error) {
	var raw bson.Raw
	switch d := doc.(type) {
	case bson.Raw:
		raw = clone(d)
	default:
		b, err := bson.Marshal(doc)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	if _, err := raw.LookupErr(collection.IDField); err == nil {
		return raw, nil
	}

	var fields bson.D
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return bson.Marshal(append(bson.D{{Key: collection.IDField, Value: id}}, fields...))
}

func clone(raw bson.Raw) bson.Raw {
	out := make(bson.Raw, len(raw))
	copy(out, raw)
	return out
}
