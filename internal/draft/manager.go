package draft

import (
	"context"
	"sync"

	"github.com/example/viacar/internal/kv"
)

// Manager hands out one Store per owner, hydrating lazily on first use. The
// process holds a single authoritative copy per owner; the watch channel
// covers anyone else editing the same draft.
type Manager struct {
	mu     sync.Mutex
	kv     kv.Store
	watch  Watcher
	stores map[string]*Store
}

func NewManager(store kv.Store, watch Watcher) *Manager {
	return &Manager{kv: store, watch: watch, stores: make(map[string]*Store)}
}

func (m *Manager) For(ctx context.Context, owner string) (*Store, error) {
	m.mu.Lock()
	if s, ok := m.stores[owner]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	// hydrate outside the lock; a racing call for the same owner loses and
	// uses the copy that got registered first
	s, err := New(ctx, m.kv, owner, m.watch)
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

// Drop forgets the in-memory copy, e.g. on logout. Persisted state is left
// to the store's own Clear.
func (m *Manager) Drop(owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stores, owner)
}
