// Package store holds the in-process dao.Service implementation.
package store

import (
	"context"
	"sync"

	"github.com/gatekit/gatekit/service/dao"
)

// MemoryStore keeps records of type *T in a map guarded by a RWMutex. The
// key of each record comes from the keyOf function supplied at construction,
// so the store itself knows nothing about approval records or any other
// payload shape.
type MemoryStore[K comparable, T any] struct {
	mu    sync.RWMutex
	items map[K]*T
	keyOf func(*T) K
}

// NewMemoryStore builds an empty store. keyOf extracts the record key,
// typically its ID field.
func NewMemoryStore[K comparable, T any](keyOf func(*T) K) *MemoryStore[K, T] {
	return &MemoryStore[K, T]{items: make(map[K]*T), keyOf: keyOf}
}

// Save inserts or replaces the record under its key.
func (s *MemoryStore[K, T]) Save(_ context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	s.mu.Lock()
	s.items[s.keyOf(v)] = v
	s.mu.Unlock()
	return nil
}

// Load returns the record for key, or (nil, nil) when absent.
func (s *MemoryStore[K, T]) Load(_ context.Context, key K) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items[key], nil
}

// Delete removes the record for key. Deleting an absent key is a no-op.
func (s *MemoryStore[K, T]) Delete(_ context.Context, key K) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// List returns every stored record in unspecified order.
func (s *MemoryStore[K, T]) List(_ context.Context) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*T, 0, len(s.items))
	for _, v := range s.items {
		out = append(out, v)
	}
	return out, nil
}

var _ dao.Service[string, struct{}] = (*MemoryStore[string, struct{}])(nil)
