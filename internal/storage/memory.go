package storage

import (
	"context"
	"sort"
	"sync"

	apperrors "placement-engine/internal/common/errors"
)

// MemoryStore is an in-memory Store. It is safe for concurrent use and is
// primarily intended for tests and local development. Records are cloned on
// the way in and out so callers never share state with the store.
type MemoryStore[T Record[T]] struct {
	mu      sync.RWMutex
	kind    string
	records map[string]T
}

// NewMemoryStore creates an empty store. kind names the entity in NOT_FOUND errors.
func NewMemoryStore[T Record[T]](kind string) *MemoryStore[T] {
	return &MemoryStore[T]{kind: kind, records: make(map[string]T)}
}

func (s *MemoryStore[T]) FindByID(_ context.Context, id string) (T, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		var zero T
		return zero, false, nil
	}
	return rec.Clone(), true, nil
}

func (s *MemoryStore[T]) FindAll(_ context.Context, filter func(T) bool) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		rec := s.records[id]
		if filter == nil || filter(rec) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore[T]) Save(_ context.Context, rec T) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.RecordID() == "" {
		rec = rec.WithID(NewID())
	}
	s.records[rec.RecordID()] = rec.Clone()
	return rec.Clone(), nil
}

func (s *MemoryStore[T]) DeleteByID(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return false, nil
	}
	delete(s.records, id)
	return true, nil
}

func (s *MemoryStore[T]) Update(_ context.Context, id string, fn func(*T) error) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	current, ok := s.records[id]
	if !ok {
		return zero, apperrors.NewNotFoundError(s.kind, id)
	}

	working := current.Clone()
	if err := fn(&working); err != nil {
		return zero, err
	}
	working = working.WithID(id)
	s.records[id] = working.Clone()
	return working, nil
}

// Len returns the number of stored records.
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
