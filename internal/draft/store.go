// Package draft holds the ride-creation wizard state: a single mutable
// RideDraft per owner, written back to the key-value store after every
// mutation. The store performs no validation; seat bounds, date sanity and
// the rest are enforced by the calling surface or rejected at publish time.
package draft

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

// StorageName is the per-owner key suffix the draft blob lives under.
const StorageName = "ride-creation-storage"

// blob is the persisted wire shape: a versionless {state:{rideData:...}}
// wrapper around the draft.
type blob struct {
	State struct {
		RideData models.RideDraft `json:"rideData"`
	} `json:"state"`
}

// Watcher is notified after every successful persist so concurrent holders
// of the same draft (a second device, another tab) can reconcile.
type Watcher interface {
	DraftChanged(owner string, rev uint64, d models.RideDraft)
}

// Store owns one owner's draft. All mutators update memory first and then
// write the whole blob; the returned error is the storage write error. The
// in-memory draft reflects the change even when the write failed.
type Store struct {
	mu    sync.Mutex
	kv    kv.Store
	key   string
	owner string
	rev   uint64
	watch Watcher
	data  models.RideDraft
}

// New hydrates the owner's draft from storage, falling back to the default
// all-unset draft when no blob exists yet.
func New(ctx context.Context, store kv.Store, owner string, watch Watcher) (*Store, error) {
	s := &Store{kv: store, key: Key(owner), owner: owner, watch: watch, data: models.DefaultDraft()}
	b, err := store.Get(ctx, s.key)
	if errors.Is(err, kv.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hydrate draft for %s: %w", owner, err)
	}
	var w blob
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("decode draft blob for %s: %w", owner, err)
	}
	s.data = w.State.RideData
	return s, nil
}

// Key returns the storage key for an owner's draft blob.
func Key(owner string) string { return "wizard:" + owner + ":" + StorageName }

// Get returns a snapshot of the current draft. Slices are copied so the
// caller cannot mutate store state through the snapshot.
func (s *Store) Get() models.RideDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.data)
}

func snapshot(d models.RideDraft) models.RideDraft {
	if d.Stops != nil {
		d.Stops = append([]models.StopPoint(nil), d.Stops...)
	}
	if d.Prices != nil {
		d.Prices = append([]models.PriceSegment(nil), d.Prices...)
	}
	return d
}

// mutate runs fn, persists the full draft and notifies the watcher, all
// while holding the lock. Holding it through the write keeps persists and
// watcher frames in mutation order: a slow write for rev N cannot be
// overtaken by rev N+1, so after every call storage matches memory. It is
// the single write path for every operation below.
func (s *Store) mutate(ctx context.Context, op string, fn func(*models.RideDraft)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.data)
	s.rev++
	snap := snapshot(s.data)

	observability.DraftMutationsTotal.WithLabelValues(op).Inc()

	var w blob
	w.State.RideData = snap
	b, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, b); err != nil {
		observability.PersistFailuresTotal.Inc()
		return fmt.Errorf("persist draft: %w", err)
	}
	if s.watch != nil {
		s.watch.DraftChanged(s.owner, s.rev, snap)
	}
	return nil
}

func (s *Store) SetPickup(ctx context.Context, p models.LocationPoint) error {
	return s.mutate(ctx, "set_pickup", func(d *models.RideDraft) { d.Pickup = &p })
}

func (s *Store) SetDropoff(ctx context.Context, p models.LocationPoint) error {
	return s.mutate(ctx, "set_dropoff", func(d *models.RideDraft) { d.Dropoff = &p })
}

func (s *Store) SetRideRoute(ctx context.Context, route string) error {
	return s.mutate(ctx, "set_ride_route", func(d *models.RideDraft) { d.RideRoute = &route })
}

func (s *Store) SetSelectedRoutePolyline(ctx context.Context, polyline string) error {
	return s.mutate(ctx, "set_polyline", func(d *models.RideDraft) { d.SelectedRoutePolyline = &polyline })
}

func (s *Store) SetDepartureDate(ctx context.Context, date string) error {
	return s.mutate(ctx, "set_departure_date", func(d *models.RideDraft) { d.DepartureDate = &date })
}

func (s *Store) SetDepartureTime(ctx context.Context, t string) error {
	return s.mutate(ctx, "set_departure_time", func(d *models.RideDraft) { d.DepartureTime = &t })
}

func (s *Store) SetDropTime(ctx context.Context, t string) error {
	return s.mutate(ctx, "set_drop_time", func(d *models.RideDraft) { d.DropTime = &t })
}

func (s *Store) SetAvailableSeats(ctx context.Context, n int) error {
	return s.mutate(ctx, "set_available_seats", func(d *models.RideDraft) { d.AvailableSeats = &n })
}

func (s *Store) SetMax2InBack(ctx context.Context, v bool) error {
	return s.mutate(ctx, "set_max_2_in_back", func(d *models.RideDraft) { d.Max2InBack = &v })
}

func (s *Store) SetPricePerSeat(ctx context.Context, amount int64) error {
	return s.mutate(ctx, "set_price_per_seat", func(d *models.RideDraft) { d.PricePerSeat = &amount })
}

func (s *Store) SetPrices(ctx context.Context, prices []models.PriceSegment) error {
	return s.mutate(ctx, "set_prices", func(d *models.RideDraft) { d.Prices = prices })
}

func (s *Store) SetStops(ctx context.Context, stops []models.StopPoint) error {
	return s.mutate(ctx, "set_stops", func(d *models.RideDraft) { d.Stops = stops })
}

// AddStop appends to the stop sequence. It does not deduplicate by place id
// and does not renumber Order; reordering is UpdateStopOrder's job.
func (s *Store) AddStop(ctx context.Context, stop models.StopPoint) error {
	return s.mutate(ctx, "add_stop", func(d *models.RideDraft) { d.Stops = append(d.Stops, stop) })
}

// RemoveStop drops every stop whose place id matches. Remaining stops keep
// their Order values untouched.
func (s *Store) RemoveStop(ctx context.Context, placeID string) error {
	return s.mutate(ctx, "remove_stop", func(d *models.RideDraft) {
		kept := d.Stops[:0]
		for _, st := range d.Stops {
			if st.PlaceID != placeID {
				kept = append(kept, st)
			}
		}
		if len(kept) == 0 {
			// empty collapses to unset so memory and the persisted blob agree
			kept = nil
		}
		d.Stops = kept
	})
}

// UpdateStopOrder replaces the stop sequence and recomputes each Order as
// its 1-based position. This is the only operation that normalizes ordering.
func (s *Store) UpdateStopOrder(ctx context.Context, stops []models.StopPoint) error {
	return s.mutate(ctx, "update_stop_order", func(d *models.RideDraft) {
		out := make([]models.StopPoint, len(stops))
		for i, st := range stops {
			st.Order = i + 1
			out[i] = st
		}
		d.Stops = out
	})
}

func (s *Store) SetNotes(ctx context.Context, notes string) error {
	return s.mutate(ctx, "set_notes", func(d *models.RideDraft) { d.Notes = &notes })
}

func (s *Store) SetVehicleID(ctx context.Context, id int) error {
	return s.mutate(ctx, "set_vehicle_id", func(d *models.RideDraft) { d.VehicleID = &id })
}

func (s *Store) SetIsReturn(ctx context.Context, v bool) error {
	return s.mutate(ctx, "set_is_return", func(d *models.RideDraft) { d.IsReturn = &v })
}

// Clear resets the draft to its default shape in one atomic replacement.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, "clear", func(d *models.RideDraft) { *d = models.DefaultDraft() })
}

// Update shallow-merges the non-nil fields of the patch, last write wins.
func (s *Store) Update(ctx context.Context, patch models.RideDraft) error {
	return s.mutate(ctx, "update", func(d *models.RideDraft) { d.Merge(patch) })
}
