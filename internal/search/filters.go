// Package search holds the ride-discovery filter state and the search
// trigger counter. The counter is a plain polling contract: consumers
// re-run their fetch whenever they observe it change, there is no delivery
// guarantee beyond monotonicity.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/example/viacar/internal/kv"
	"github.com/example/viacar/internal/models"
	"github.com/example/viacar/internal/observability"
)

const StorageName = "ride-search-filters"

type blob struct {
	State struct {
		Filters       models.RideSearchFilters `json:"filters"`
		SearchTrigger uint64                   `json:"searchTrigger"`
	} `json:"state"`
}

// Store owns one owner's filters plus the trigger counter. Same write
// discipline as the draft store: memory first, then the whole blob.
type Store struct {
	mu      sync.Mutex
	kv      kv.Store
	key     string
	filters models.RideSearchFilters
	trigger uint64
}

func Key(owner string) string { return "wizard:" + owner + ":" + StorageName }

func New(ctx context.Context, store kv.Store, owner string) (*Store, error) {
	s := &Store{kv: store, key: Key(owner), filters: models.DefaultFilters()}
	b, err := store.Get(ctx, s.key)
	if errors.Is(err, kv.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hydrate filters for %s: %w", owner, err)
	}
	var w blob
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("decode filter blob for %s: %w", owner, err)
	}
	s.filters = w.State.Filters
	s.trigger = w.State.SearchTrigger
	return s, nil
}

func (s *Store) Get() (models.RideSearchFilters, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters, s.trigger
}

// ActiveCount reports how many filters differ from defaults. Pure read.
func (s *Store) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters.ActiveCount()
}

func (s *Store) persistLocked(ctx context.Context) error {
	var w blob
	w.State.Filters = s.filters
	w.State.SearchTrigger = s.trigger
	b, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode filters: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, b); err != nil {
		observability.PersistFailuresTotal.Inc()
		return fmt.Errorf("persist filters: %w", err)
	}
	return nil
}

// Update shallow-merges the patch into the filters and persists.
func (s *Store) Update(ctx context.Context, patch models.FilterPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters.Apply(patch)
	return s.persistLocked(ctx)
}

// Set replaces the whole filter set and persists.
func (s *Store) Set(ctx context.Context, f models.RideSearchFilters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = f
	return s.persistLocked(ctx)
}

// TriggerSearch increments the counter by exactly one. The counter is
// strictly monotonic and survives ClearAllFilters; only dropping the whole
// blob resets it.
func (s *Store) TriggerSearch(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trigger++
	observability.SearchesTriggered.Inc()
	return s.trigger, s.persistLocked(ctx)
}

// ClearAllFilters resets filters to defaults. The trigger is untouched.
func (s *Store) ClearAllFilters(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = models.DefaultFilters()
	return s.persistLocked(ctx)
}
