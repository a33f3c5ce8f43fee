package search

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/example/viacar/internal/kv"
	"github.com/example/viacar/internal/models"
)

func newTestStore(t *testing.T) (*Store, kv.Store) {
	t.Helper()
	blobs := kv.NewMemoryStore()
	s, err := New(context.Background(), blobs, "dev-1")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s, blobs
}

func TestTriggerSearchMonotonic(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	const n = 5
	var last uint64
	for i := 0; i < n; i++ {
		v, err := s.TriggerSearch(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if v != last+1 {
			t.Fatalf("trigger jumped from %d to %d", last, v)
		}
		last = v
	}
	if _, trigger := s.Get(); trigger != n {
		t.Fatalf("trigger=%d, want %d", trigger, n)
	}
}

func TestClearAllFiltersKeepsTrigger(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.TriggerSearch(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.TriggerSearch(ctx); err != nil {
		t.Fatal(err)
	}
	verified := true
	if err := s.Update(ctx, models.FilterPatch{VerifiedDriversOnly: &verified}); err != nil {
		t.Fatal(err)
	}
	if err := s.ClearAllFilters(ctx); err != nil {
		t.Fatal(err)
	}
	f, trigger := s.Get()
	if trigger != 2 {
		t.Fatalf("clear reset the trigger: %d", trigger)
	}
	if f != models.DefaultFilters() {
		t.Fatalf("filters not reset: %+v", f)
	}
}

func TestActiveCountRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if got := s.ActiveCount(); got != 0 {
		t.Fatalf("fresh store active count=%d, want 0", got)
	}

	pets := true
	if err := s.Update(ctx, models.FilterPatch{PetsAllowed: &pets}); err != nil {
		t.Fatal(err)
	}
	if got := s.ActiveCount(); got != 1 {
		t.Fatalf("active count=%d, want 1", got)
	}

	pets = false
	if err := s.Update(ctx, models.FilterPatch{PetsAllowed: &pets}); err != nil {
		t.Fatal(err)
	}
	if got := s.ActiveCount(); got != 0 {
		t.Fatalf("active count=%d after revert, want 0", got)
	}
}

func TestFiltersPersistAndRehydrate(t *testing.T) {
	blobs := kv.NewMemoryStore()
	ctx := context.Background()

	first, err := New(ctx, blobs, "dev-1")
	if err != nil {
		t.Fatal(err)
	}
	sort := models.SortPriceLowest
	if err := first.Update(ctx, models.FilterPatch{SortBy: &sort}); err != nil {
		t.Fatal(err)
	}
	if _, err := first.TriggerSearch(ctx); err != nil {
		t.Fatal(err)
	}

	// raw blob shape stays {state:{filters,searchTrigger}}
	b, err := blobs.Get(ctx, Key("dev-1"))
	if err != nil {
		t.Fatal(err)
	}
	var w struct {
		State struct {
			Filters       models.RideSearchFilters `json:"filters"`
			SearchTrigger uint64                   `json:"searchTrigger"`
		} `json:"state"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		t.Fatal(err)
	}
	if w.State.SearchTrigger != 1 || w.State.Filters.SortBy != models.SortPriceLowest {
		t.Fatalf("blob content wrong: %+v", w.State)
	}

	second, err := New(ctx, blobs, "dev-1")
	if err != nil {
		t.Fatal(err)
	}
	f, trigger := second.Get()
	if trigger != 1 || f.SortBy != models.SortPriceLowest {
		t.Fatalf("rehydrate lost state: trigger=%d filters=%+v", trigger, f)
	}
}

func TestPatchLastWriteWins(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	year := models.CarModelWithin3Years
	if err := s.Update(ctx, models.FilterPatch{CarModelYear: &year}); err != nil {
		t.Fatal(err)
	}
	year2 := models.CarModelWithin5Years
	if err := s.Update(ctx, models.FilterPatch{CarModelYear: &year2}); err != nil {
		t.Fatal(err)
	}
	f, _ := s.Get()
	if f.CarModelYear != models.CarModelWithin5Years {
		t.Fatalf("car model year=%s, want 5_years", f.CarModelYear)
	}
	if f.StopsFilter != models.StopsDirectOnly {
		t.Fatalf("patch touched unrelated field: %+v", f)
	}
}
