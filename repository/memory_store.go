package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"
)

// MemoryStore keeps documents in process. It backs DB_TYPE=memory and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	colls map[string]map[string]map[string]any
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		colls: map[string]map[string]map[string]any{},
		now:   time.Now,
	}
}

// WithClock replaces the clock used for CurrentDate fields.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) coll(name string) map[string]map[string]any {
	c, ok := s.colls[name]
	if !ok {
		c = map[string]map[string]any{}
		s.colls[name] = c
	}
	return c
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.colls[collection][id]
	if !ok {
		return ErrNotFound
	}
	return decodeDoc(doc, out)
}

func (s *MemoryStore) Create(ctx context.Context, collection, id string, doc any) error {
	m, err := normalizeDoc(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	m["id"] = id
	m[VersionField] = float64(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(collection)
	if _, exists := c[id]; exists {
		return ErrDuplicate
	}
	if s.violatesUnique(collection, id, m) {
		return ErrDuplicate
	}
	c[id] = m
	return nil
}

func (s *MemoryStore) violatesUnique(collection, id string, doc map[string]any) bool {
	for _, fields := range UniqueIndexes[collection] {
		for otherID, other := range s.colls[collection] {
			if otherID == id {
				continue
			}
			same := true
			for _, f := range fields {
				a, _ := lookup(doc, f)
				b, _ := lookup(other, f)
				if !reflect.DeepEqual(a, b) {
					same = false
					break
				}
			}
			if same {
				return true
			}
		}
	}
	return false
}

func (s *MemoryStore) Patch(ctx context.Context, collection, id string, expectedVersion int64, p Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(collection)
	current, ok := c[id]
	if !ok {
		if !p.Upsert || expectedVersion > 0 {
			return ErrNotFound
		}
		current = map[string]any{"id": id, VersionField: float64(0)}
	} else if expectedVersion >= 0 && docVersion(current) != expectedVersion {
		return ErrVersionConflict
	}

	// work on a copy so a failed patch leaves the stored document untouched
	next, err := deepCopy(current)
	if err != nil {
		return err
	}
	if err := applyPatch(next, p, s.now()); err != nil {
		return err
	}
	bumpVersion(next)
	c[id] = next
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, filters []Filter, order *OrderBy, out any) error {
	s.mu.RLock()
	var docs []map[string]any
	for _, doc := range s.colls[collection] {
		ok, err := matches(doc, filters)
		if err != nil {
			s.mu.RUnlock()
			return err
		}
		if ok {
			docs = append(docs, doc)
		}
	}
	sortDocs(docs, order)
	b, err := json.Marshal(docs)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if docs == nil {
		b = []byte("[]")
	}
	return json.Unmarshal(b, out)
}

func deepCopy(doc map[string]any) (map[string]any, error) {
	return normalizeDoc(doc)
}
