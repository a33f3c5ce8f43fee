package places

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/example/viacar/internal/models"
)

// fakeGeo implements Geo in memory. GeoRadius ignores the radius and
// returns every member sorted by name, which is enough for these tests.
type fakeGeo struct {
	members map[string]redis.GeoLocation
	hashes  map[string]map[string]string
}

func newFakeGeo() *fakeGeo {
	return &fakeGeo{members: make(map[string]redis.GeoLocation), hashes: make(map[string]map[string]string)}
}

func (f *fakeGeo) GeoAdd(ctx context.Context, key string, locs ...*redis.GeoLocation) *redis.IntCmd {
	for _, l := range locs {
		f.members[l.Name] = *l
	}
	return redis.NewIntResult(int64(len(locs)), nil)
}

func (f *fakeGeo) hash(key string) map[string]string {
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	return h
}

func (f *fakeGeo) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	h := f.hash(key)
	for _, v := range values {
		if m, ok := v.(map[string]interface{}); ok {
			for k, mv := range m {
				h[k] = fmt.Sprint(mv)
			}
		}
	}
	return redis.NewIntResult(1, nil)
}

func (f *fakeGeo) HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd {
	h := f.hash(key)
	var n int64
	fmt.Sscan(h[field], &n)
	n += incr
	h[field] = fmt.Sprint(n)
	return redis.NewIntResult(n, nil)
}

func (f *fakeGeo) HGet(ctx context.Context, key, field string) *redis.StringCmd {
	h, ok := f.hashes[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	v, ok := h[field]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeGeo) HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd {
	out := make(map[string]string, len(f.hashes[key]))
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return redis.NewMapStringStringResult(out, nil)
}

func (f *fakeGeo) GeoRadius(ctx context.Context, key string, lng, lat float64, q *redis.GeoRadiusQuery) *redis.GeoLocationCmd {
	names := make([]string, 0, len(f.members))
	for n := range f.members {
		names = append(names, n)
	}
	sort.Strings(names)
	locs := make([]redis.GeoLocation, 0, len(names))
	for _, n := range names {
		locs = append(locs, f.members[n])
	}
	return redis.NewGeoLocationCmdResult(locs, nil)
}

func TestRecordBumpsHitCount(t *testing.T) {
	fg := newFakeGeo()
	idx := NewPopularIndexWithClient(fg, "popular_places_geo")
	ctx := context.Background()

	stop := models.StopPoint{PlaceID: "p1", Lat: 24.7, Lng: 46.7, Address: "King Fahd Rd"}
	for i := 0; i < 3; i++ {
		if err := idx.Record(ctx, stop); err != nil {
			t.Fatal(err)
		}
	}
	if err := idx.Record(ctx, models.StopPoint{PlaceID: "p2", Lat: 21.5, Lng: 39.2, Address: "Corniche"}); err != nil {
		t.Fatal(err)
	}

	n, err := idx.Hits(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("expected 3 hits for p1, got %d", n)
	}
	if n, _ := idx.Hits(ctx, "p2"); n != 1 {
		t.Fatalf("expected 1 hit for p2, got %d", n)
	}
	if n, err := idx.Hits(ctx, "nowhere"); err != nil || n != 0 {
		t.Fatalf("unknown place should read 0 hits, got %d err=%v", n, err)
	}
	if loc, ok := fg.members["p1"]; !ok || loc.Latitude != 24.7 || loc.Longitude != 46.7 {
		t.Fatalf("geo member missing or wrong: %+v", loc)
	}
}

func TestNearAttachesAddresses(t *testing.T) {
	fg := newFakeGeo()
	idx := NewPopularIndexWithClient(fg, "popular_places_geo")
	ctx := context.Background()

	if err := idx.Record(ctx, models.StopPoint{PlaceID: "p1", Lat: 24.7, Lng: 46.7, Address: "King Fahd Rd"}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Record(ctx, models.StopPoint{PlaceID: "p2", Lat: 24.8, Lng: 46.6, Address: "Olaya St"}); err != nil {
		t.Fatal(err)
	}

	pts, err := idx.Near(ctx, 24.7, 46.7, 25000, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 2 {
		t.Fatalf("expected 2 places, got %d", len(pts))
	}
	byID := map[string]string{}
	for _, p := range pts {
		byID[p.PlaceID] = p.Address
	}
	if byID["p1"] != "King Fahd Rd" || byID["p2"] != "Olaya St" {
		t.Fatalf("addresses not attached: %v", byID)
	}
}

func TestAlongDeduplicatesAcrossWaypoints(t *testing.T) {
	fg := newFakeGeo()
	idx := NewPopularIndexWithClient(fg, "popular_places_geo")
	ctx := context.Background()

	if err := idx.Record(ctx, models.StopPoint{PlaceID: "p1", Lat: 24.7, Lng: 46.7, Address: "King Fahd Rd"}); err != nil {
		t.Fatal(err)
	}

	// the fake returns p1 for every waypoint; Along must keep one copy
	pts, err := idx.Along(ctx, []models.LocationPoint{{Lat: 24.7, Lng: 46.7}, {Lat: 24.71, Lng: 46.71}}, 5000, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 1 || pts[0].PlaceID != "p1" {
		t.Fatalf("expected deduplicated [p1], got %+v", pts)
	}
}
