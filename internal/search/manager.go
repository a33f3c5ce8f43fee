package search

import (
	"context"
	"sync"

	"github.com/example/viacar/internal/kv"
)

// Manager caches one filter store per owner, hydrating on first use.
type Manager struct {
	mu     sync.Mutex
	kv     kv.Store
	stores map[string]*Store
}

func NewManager(store kv.Store) *Manager {
	return &Manager{kv: store, stores: make(map[string]*Store)}
}

func (m *Manager) For(ctx context.Context, owner string) (*Store, error) {
	m.mu.Lock()
	if s, ok := m.stores[owner]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	s, err := New(ctx, m.kv, owner)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.stores[owner]; ok {
		return existing, nil
	}
	m.stores[owner] = s
	return s, nil
}

func (m *Manager) Drop(owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stores, owner)
}
