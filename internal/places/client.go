// Package places talks to the maps provider: place autocomplete for the
// pickup/dropoff fields, route alternatives between them, and the
// Redis-backed popular-places index used for stopover suggestions.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/example/viacar/internal/models"
)

// RouteAlternative is one routed path between pickup and dropoff. Geometry
// is the provider's encoded polyline, treated as opaque: the wizard stores
// whichever one the user picks without decoding it.
type RouteAlternative struct {
	Geometry       string  `json:"geometry"`
	DistanceMeters float64 `json:"distance"`
	DurationSec    float64 `json:"duration"`
}

// Provider performs geocoding and routing lookups over HTTP.
type Provider struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

func NewProvider(endpoint, apiKey string) *Provider {
	return &Provider{Endpoint: endpoint, APIKey: apiKey, Client: &http.Client{Timeout: 5 * time.Second}}
}

// Autocomplete resolves a partial address query into candidate points. The
// caller's context governs cancellation; see Autocompleter for the
// superseding-query discipline.
func (p *Provider) Autocomplete(ctx context.Context, query string) ([]models.LocationPoint, error) {
	q := url.Values{}
	q.Set("q", query)
	if p.APIKey != "" {
		q.Set("key", p.APIKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.Endpoint+"/autocomplete?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places autocomplete: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places autocomplete: %s", resp.Status)
	}
	var out struct {
		Items []struct {
			PlaceID string  `json:"place_id"`
			Name    string  `json:"name"`
			Lat     float64 `json:"lat"`
			Lng     float64 `json:"lng"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("places autocomplete decode: %w", err)
	}
	points := make([]models.LocationPoint, 0, len(out.Items))
	for _, it := range out.Items {
		points = append(points, models.LocationPoint{Lat: it.Lat, Lng: it.Lng, Address: it.Name, PlaceID: it.PlaceID})
	}
	return points, nil
}

// Routes queries route alternatives between two points. The provider speaks
// the OSRM route dialect: coordinates go lng,lat and geometry comes back as
// an encoded polyline when overview=full.
func (p *Provider) Routes(ctx context.Context, pickup, dropoff models.LocationPoint) ([]RouteAlternative, error) {
	u := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?alternatives=true&overview=full",
		p.Endpoint, pickup.Lng, pickup.Lat, dropoff.Lng, dropoff.Lat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("route lookup: %w", err)
	}
	defer resp.Body.Close()
	var out struct {
		Routes []RouteAlternative `json:"routes"`
		Code   string             `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("route lookup decode: %w", err)
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return nil, fmt.Errorf("route lookup: no route (%v)", out.Code)
	}
	return out.Routes, nil
}
