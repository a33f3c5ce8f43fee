package places

import (
	"context"
	"sync"
	"time"

	"github.com/example/viacar/internal/models"
)

// Autocompleter serializes autocomplete lookups per owner so a newer query
// cancels the in-flight request for that owner's older one. Out-of-order
// responses cannot happen: a superseded call returns context.Canceled and
// its result is discarded by the caller. Queries from different owners never
// interfere. Results are cached briefly since users backspace through the
// same prefixes.
type Autocompleter struct {
	provider *Provider
	cache    *queryCache

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

func NewAutocompleter(p *Provider, cacheTTL time.Duration) *Autocompleter {
	return &Autocompleter{
		provider: p,
		cache:    newQueryCache(cacheTTL),
		inflight: make(map[string]context.CancelFunc),
	}
}

// Query runs one autocomplete lookup for an owner, cancelling whatever
// lookup the same owner still had in flight.
func (a *Autocompleter) Query(ctx context.Context, owner, q string) ([]models.LocationPoint, error) {
	if pts, ok := a.cache.get(q); ok {
		return pts, nil
	}

	a.mu.Lock()
	if cancel := a.inflight[owner]; cancel != nil {
		cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	a.inflight[owner] = cancel
	a.mu.Unlock()

	pts, err := a.provider.Autocomplete(ctx, q)

	a.mu.Lock()
	// a done context means a newer call from this owner took the slot;
	// only the still-newest call clears it
	select {
	case <-ctx.Done():
	default:
		cancel()
		delete(a.inflight, owner)
	}
	a.mu.Unlock()

	if err != nil {
		return nil, err
	}
	a.cache.set(q, pts)
	return pts, nil
}

// queryCache is a tiny TTL cache keyed by the raw query string.
type queryCache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	pts []models.LocationPoint
	ts  time.Time
}

func newQueryCache(ttl time.Duration) *queryCache {
	return &queryCache{store: make(map[string]cacheEntry), ttl: ttl}
}

func (c *queryCache) get(q string) ([]models.LocationPoint, bool) {
	c.mu.RLock()
	e, ok := c.store[q]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, q)
		c.mu.Unlock()
		return nil, false
	}
	return e.pts, true
}

func (c *queryCache) set(q string, pts []models.LocationPoint) {
	c.mu.Lock()
	c.store[q] = cacheEntry{pts: pts, ts: time.Now()}
	c.mu.Unlock()
}
