package srs

import (
	"context"
	"maps"
	"sync"
)

// Store loads and saves the full scheduling state map.
// Implementations treat the map as one value: Save replaces what Load returns.
type Store interface {
	Load(ctx context.Context) (map[string]State, error)
	Save(ctx context.Context, states map[string]State) error
}

// MemoryStore keeps the state map in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]State
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

// Load returns a copy of the stored map.
func (m *MemoryStore) Load(_ context.Context) (map[string]State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.states), nil
}

// Save replaces the stored map with a copy of states.
func (m *MemoryStore) Save(_ context.Context, states map[string]State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = maps.Clone(states)
	if m.states == nil {
		m.states = make(map[string]State)
	}
	return nil
}
