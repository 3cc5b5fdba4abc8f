// internal/store/memory.go
//
// In-memory implementation of the Store interface.
// Used for development/testing, or when durability is not required.
//
// Characteristics:
//   - Stores snapshot strings keyed by storage key in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sync"
)

// Store is a key/value snapshot backend. It satisfies game.KV.
// Implementations are backed by memory (this file), SQLite, Redis or PostgreSQL.
type Store interface {
	// Get returns the value stored under key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set persists or replaces the value under key.
	Set(ctx context.Context, key, value string) error

	// Close releases the backend's resources.
	Close() error
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu   sync.RWMutex      // guards data
	data map[string]string // keyed by storage key
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{data: make(map[string]string)}
}

func (m *memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memory) Close() error { return nil }
