// Package session holds the bearer token for an owner. The API client reads
// the token through a Store at call time, so a change applies on the very
// next upstream request.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/example/viacar/internal/kv"
)

const StorageName = "user-storage"

type blob struct {
	State struct {
		Token *string `json:"token"`
	} `json:"state"`
}

type Store struct {
	mu    sync.RWMutex
	kv    kv.Store
	key   string
	token *string
}

func Key(owner string) string { return "wizard:" + owner + ":" + StorageName }

func New(ctx context.Context, store kv.Store, owner string) (*Store, error) {
	s := &Store{kv: store, key: Key(owner)}
	b, err := store.Get(ctx, s.key)
	if errors.Is(err, kv.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hydrate session for %s: %w", owner, err)
	}
	var w blob
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("decode session blob for %s: %w", owner, err)
	}
	s.token = w.State.Token
	return s, nil
}

// Token returns the current bearer token, empty string when none is set.
// Satisfies api.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return ""
	}
	return *s.token
}

// SetToken replaces the token and persists. Pass nil to clear, e.g. on
// logout; the persisted blob keeps an explicit null so it round-trips.
func (s *Store) SetToken(ctx context.Context, token *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	var w blob
	w.State.Token = s.token
	b, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, b); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}
