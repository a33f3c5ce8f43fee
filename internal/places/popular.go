package places

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/example/viacar/internal/models"
)

// Geo is the slice of redis the index needs; *redis.Client satisfies it.
type Geo interface {
	GeoAdd(ctx context.Context, key string, geoLocation ...*redis.GeoLocation) *redis.IntCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	GeoRadius(ctx context.Context, key string, longitude, latitude float64, query *redis.GeoRadiusQuery) *redis.GeoLocationCmd
}

// PopularIndex keeps the places riders actually stop at, built from
// published rides by the events consumer, queried by the wizard's stopover
// page. Coordinates live in a Redis GEO set, address and hit count in a
// hash per place.
type PopularIndex struct {
	client Geo
	key    string
}

func NewPopularIndex(addr, password, key string) *PopularIndex {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &PopularIndex{client: c, key: key}
}

func NewPopularIndexWithClient(c Geo, key string) *PopularIndex {
	return &PopularIndex{client: c, key: key}
}

// Record adds or bumps a place. Called once per stop of every published ride.
func (p *PopularIndex) Record(ctx context.Context, pt models.StopPoint) error {
	if _, err := p.client.GeoAdd(ctx, p.key, &redis.GeoLocation{Longitude: pt.Lng, Latitude: pt.Lat, Name: pt.PlaceID}).Result(); err != nil {
		return err
	}
	if err := p.client.HSet(ctx, metaKey(pt.PlaceID), map[string]interface{}{"address": pt.Address}).Err(); err != nil {
		return err
	}
	return p.client.HIncrBy(ctx, metaKey(pt.PlaceID), "hits", 1).Err()
}

// Near returns indexed places within radiusM of a point, nearest first.
func (p *PopularIndex) Near(ctx context.Context, lat, lng float64, radiusM float64, limit int) ([]models.StopPoint, error) {
	res, err := p.client.GeoRadius(ctx, p.key, lng, lat, &redis.GeoRadiusQuery{
		Radius: radiusM, Unit: "m", WithCoord: true, WithDist: true, Count: limit, Sort: "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.StopPoint, 0, len(res))
	for _, g := range res {
		pt := models.StopPoint{PlaceID: g.Name, Lat: g.Latitude, Lng: g.Longitude}
		if m, err := p.client.HGetAll(ctx, metaKey(g.Name)).Result(); err == nil {
			pt.Address = m["address"]
		}
		out = append(out, pt)
	}
	return out, nil
}

// Along samples popular places near each waypoint of a route, deduplicating
// by place id across samples.
func (p *PopularIndex) Along(ctx context.Context, waypoints []models.LocationPoint, radiusM float64, perPoint int) ([]models.StopPoint, error) {
	seen := make(map[string]bool)
	var out []models.StopPoint
	for _, wp := range waypoints {
		pts, err := p.Near(ctx, wp.Lat, wp.Lng, radiusM, perPoint)
		if err != nil {
			return nil, err
		}
		for _, pt := range pts {
			if seen[pt.PlaceID] {
				continue
			}
			seen[pt.PlaceID] = true
			out = append(out, pt)
		}
	}
	return out, nil
}

// Hits reads the visit count for a place, 0 when unknown.
func (p *PopularIndex) Hits(ctx context.Context, placeID string) (int64, error) {
	v, err := p.client.HGet(ctx, metaKey(placeID), "hits").Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func metaKey(placeID string) string { return "place:meta:" + placeID }
