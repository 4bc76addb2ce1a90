// Package memory provides a process-local Backend used for tests and
// ephemeral runs.
package memory

import (
	"context"
	"sync"

	"bandkeeper/pkg/domain"
)

var _ domain.Backend = (*Store)(nil)

// Store keeps the last saved collection in memory.
type Store struct {
	mu    sync.Mutex
	saved domain.Collection
	saves int
}

// NewStore returns an empty backend.
func NewStore() *Store { return &Store{} }

// NewStoreWith returns a backend pre-loaded with collection.
func NewStoreWith(collection domain.Collection) *Store {
	return &Store{saved: cloneCollection(collection)}
}

// Load returns a copy of the last saved collection.
func (s *Store) Load(ctx context.Context) (domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return domain.Collection{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneCollection(s.saved), nil
}

// Save replaces the stored collection.
func (s *Store) Save(ctx context.Context, collection domain.Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = cloneCollection(collection)
	s.saves++
	return nil
}

// Saves reports how many times Save succeeded.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func cloneCollection(in domain.Collection) domain.Collection {
	out := domain.Collection{InitializedAt: in.InitializedAt}
	if in.Bands != nil {
		out.Bands = make([]domain.Band, len(in.Bands))
		for i, b := range in.Bands {
			out.Bands[i] = b.Clone()
		}
	}
	return out
}
