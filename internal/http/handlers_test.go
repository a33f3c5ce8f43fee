package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/viacar/internal/api"
	"github.com/example/viacar/internal/draft"
	"github.com/example/viacar/internal/kv"
	"github.com/example/viacar/internal/logging"
	"github.com/example/viacar/internal/models"
	"github.com/example/viacar/internal/search"
	"github.com/example/viacar/internal/session"
	wizsync "github.com/example/viacar/internal/sync"
)

func newTestServer(t *testing.T, upstreamHandler http.HandlerFunc) *Server {
	t.Helper()
	blobs := kv.NewMemoryStore()
	logger := logging.Nop()

	var upstream *api.Client
	if upstreamHandler != nil {
		fake := httptest.NewServer(upstreamHandler)
		t.Cleanup(fake.Close)
		upstream = api.NewClient(fake.URL, api.DefaultEndpoints(), nil)
	} else {
		upstream = api.NewClient("http://127.0.0.1:0", api.DefaultEndpoints(), nil)
	}

	watch := wizsync.NewRegistry(logger)
	return NewServer(Deps{
		Logger:   logger,
		Drafts:   draft.NewManager(blobs, watch),
		Filters:  search.NewManager(blobs),
		Sessions: session.NewManager(blobs),
		Upstream: upstream,
		Watch:    watch,
	})
}

func doReq(t *testing.T, s *Server, method, path string, owner string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if owner != "" {
		req.Header.Set(ownerHeader, owner)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestMissingOwnerHeaderRejected(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doReq(t, s, "GET", "/api/v1/wizard/draft", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rec.Code)
	}
}

func TestDraftPickupRoundTrip(t *testing.T) {
	s := newTestServer(t, nil)
	p := models.LocationPoint{Lat: 24.7, Lng: 46.7, Address: "Riyadh"}

	rec := doReq(t, s, "PUT", "/api/v1/wizard/draft/pickup", "dev-1", p)
	if rec.Code != http.StatusOK {
		t.Fatalf("set pickup status=%d body=%s", rec.Code, rec.Body)
	}

	rec = doReq(t, s, "GET", "/api/v1/wizard/draft", "dev-1", nil)
	var d models.RideDraft
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatal(err)
	}
	if d.Pickup == nil || d.Pickup.Address != "Riyadh" {
		t.Fatalf("pickup not stored: %+v", d)
	}

	// a different device gets its own draft
	rec = doReq(t, s, "GET", "/api/v1/wizard/draft", "dev-2", nil)
	var other models.RideDraft
	json.Unmarshal(rec.Body.Bytes(), &other)
	if other.Pickup != nil {
		t.Fatalf("draft leaked across owners")
	}
}

func TestSeatBoundsEnforcedAtSurface(t *testing.T) {
	s := newTestServer(t, nil)
	seats := 4
	rec := doReq(t, s, "PUT", "/api/v1/wizard/draft/capacity", "dev-1", map[string]any{"available_seats": seats})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400 for 4 seats", rec.Code)
	}
	rec = doReq(t, s, "PUT", "/api/v1/wizard/draft/capacity", "dev-1", map[string]any{"available_seats": 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d for valid seats", rec.Code)
	}
}

func TestDuplicateStopRejectedBySurface(t *testing.T) {
	s := newTestServer(t, nil)
	stop := models.StopPoint{PlaceID: "p1", Address: "Midway"}

	if rec := doReq(t, s, "POST", "/api/v1/wizard/draft/stops", "dev-1", stop); rec.Code != http.StatusOK {
		t.Fatalf("first add status=%d", rec.Code)
	}
	if rec := doReq(t, s, "POST", "/api/v1/wizard/draft/stops", "dev-1", stop); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate add status=%d, want 409", rec.Code)
	}
}

func TestTriggerSearchEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	for want := 1; want <= 3; want++ {
		rec := doReq(t, s, "POST", "/api/v1/wizard/search/trigger", "dev-1", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status=%d", rec.Code)
		}
		var out struct {
			SearchTrigger int `json:"searchTrigger"`
		}
		json.Unmarshal(rec.Body.Bytes(), &out)
		if out.SearchTrigger != want {
			t.Fatalf("trigger=%d, want %d", out.SearchTrigger, want)
		}
	}

	// clearing filters leaves the trigger alone
	if rec := doReq(t, s, "DELETE", "/api/v1/wizard/filters", "dev-1", nil); rec.Code != http.StatusOK {
		t.Fatalf("clear status=%d", rec.Code)
	}
	rec := doReq(t, s, "GET", "/api/v1/wizard/filters", "dev-1", nil)
	var out struct {
		SearchTrigger int `json:"searchTrigger"`
		ActiveCount   int `json:"activeCount"`
	}
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out.SearchTrigger != 3 || out.ActiveCount != 0 {
		t.Fatalf("after clear: %+v", out)
	}
}

func TestPublishSendsTokenAndClearsDraft(t *testing.T) {
	var gotAuth string
	var gotDraft models.RideDraft
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotDraft)
		w.Write([]byte(`{"ride_id":7}`))
	})

	tok := "jwt-xyz"
	if rec := doReq(t, s, "PUT", "/api/v1/session/token", "dev-1", map[string]*string{"token": &tok}); rec.Code != http.StatusNoContent {
		t.Fatalf("set token status=%d", rec.Code)
	}
	doReq(t, s, "PUT", "/api/v1/wizard/draft/pickup", "dev-1", models.LocationPoint{Lat: 24.7, Lng: 46.7, Address: "Riyadh"})
	doReq(t, s, "PUT", "/api/v1/wizard/draft/schedule", "dev-1", map[string]string{"departure_date": "2025-06-01"})

	rec := doReq(t, s, "POST", "/api/v1/wizard/draft/publish", "dev-1", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("publish status=%d body=%s", rec.Code, rec.Body)
	}
	if gotAuth != "Bearer jwt-xyz" {
		t.Fatalf("upstream auth=%q", gotAuth)
	}
	if gotDraft.Pickup == nil || gotDraft.DepartureDate == nil {
		t.Fatalf("upstream did not receive the draft: %+v", gotDraft)
	}

	rec = doReq(t, s, "GET", "/api/v1/wizard/draft", "dev-1", nil)
	var d models.RideDraft
	json.Unmarshal(rec.Body.Bytes(), &d)
	if d.Pickup != nil {
		t.Fatalf("draft not cleared after publish: %+v", d)
	}
}

func TestUpstreamErrorPassesThrough(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(422)
		w.Write([]byte(`{"message":"departure date is required"}`))
	})
	rec := doReq(t, s, "POST", "/api/v1/wizard/draft/publish", "dev-1", nil)
	if rec.Code != 422 {
		t.Fatalf("status=%d, want upstream 422", rec.Code)
	}
	var out struct {
		Message string `json:"message"`
	}
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out.Message != "departure date is required" {
		t.Fatalf("message=%q", out.Message)
	}
}

func TestLogoutClearsUserScopedState(t *testing.T) {
	s := newTestServer(t, nil)
	tok := "jwt-abc"
	doReq(t, s, "PUT", "/api/v1/session/token", "dev-1", map[string]*string{"token": &tok})
	doReq(t, s, "PUT", "/api/v1/wizard/draft/pickup", "dev-1", models.LocationPoint{Address: "Riyadh"})

	if rec := doReq(t, s, "DELETE", "/api/v1/session", "dev-1", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("logout status=%d", rec.Code)
	}

	rec := doReq(t, s, "GET", "/api/v1/wizard/draft", "dev-1", nil)
	var d models.RideDraft
	json.Unmarshal(rec.Body.Bytes(), &d)
	if d.Pickup != nil {
		t.Fatalf("draft survived logout: %+v", d)
	}
}
