package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/viacar/internal/api"
	"github.com/example/viacar/internal/draft"
	"github.com/example/viacar/internal/events"
	"github.com/example/viacar/internal/models"
	"github.com/example/viacar/internal/observability"
	"github.com/example/viacar/internal/payments"
	"github.com/example/viacar/internal/places"
	"github.com/example/viacar/internal/search"
	"github.com/example/viacar/internal/session"
	wizsync "github.com/example/viacar/internal/sync"
)

// ownerHeader identifies which device's wizard state a request operates on.
const ownerHeader = "X-Device-ID"

// Server is the wizard-state HTTP service. Each route reads or writes one
// slice of one owner's draft or filter state; the terminal publish route
// serializes the accumulated draft into a single upstream call.
type Server struct {
	logger   *slog.Logger
	drafts   *draft.Manager
	filters  *search.Manager
	sessions *session.Manager
	upstream *api.Client
	places   *places.Provider
	complete *places.Autocompleter
	popular  *places.PopularIndex
	events   *events.Producer
	payments *payments.SeatPayments
	watch    *wizsync.Registry
	mux      *mux.Router
}

type Deps struct {
	Logger   *slog.Logger
	Drafts   *draft.Manager
	Filters  *search.Manager
	Sessions *session.Manager
	Upstream *api.Client // token source wired per request; see clientFor
	Places   *places.Provider
	Complete *places.Autocompleter
	Popular  *places.PopularIndex
	Events   *events.Producer // nil when Kafka is not configured
	Payments *payments.SeatPayments
	Watch    *wizsync.Registry
}

func NewServer(d Deps) *Server {
	s := &Server{
		logger:   d.Logger,
		drafts:   d.Drafts,
		filters:  d.Filters,
		sessions: d.Sessions,
		upstream: d.Upstream,
		places:   d.Places,
		complete: d.Complete,
		popular:  d.Popular,
		events:   d.Events,
		payments: d.Payments,
		watch:    d.Watch,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.mux
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	r.Handle("/metrics", promhttp.Handler())

	v1 := r.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/session/token", s.handleSetToken).Methods("PUT")
	v1.HandleFunc("/session", s.handleLogout).Methods("DELETE")

	v1.HandleFunc("/wizard/draft", s.handleGetDraft).Methods("GET")
	v1.HandleFunc("/wizard/draft", s.handlePatchDraft).Methods("PATCH")
	v1.HandleFunc("/wizard/draft", s.handleClearDraft).Methods("DELETE")
	v1.HandleFunc("/wizard/draft/pickup", s.handleSetPickup).Methods("PUT")
	v1.HandleFunc("/wizard/draft/dropoff", s.handleSetDropoff).Methods("PUT")
	v1.HandleFunc("/wizard/draft/route", s.handleSetRoute).Methods("PUT")
	v1.HandleFunc("/wizard/draft/schedule", s.handleSetSchedule).Methods("PUT")
	v1.HandleFunc("/wizard/draft/capacity", s.handleSetCapacity).Methods("PUT")
	v1.HandleFunc("/wizard/draft/pricing", s.handleSetPricing).Methods("PUT")
	v1.HandleFunc("/wizard/draft/stops", s.handleAddStop).Methods("POST")
	v1.HandleFunc("/wizard/draft/stops", s.handleReorderStops).Methods("PUT")
	v1.HandleFunc("/wizard/draft/stops/{place_id}", s.handleRemoveStop).Methods("DELETE")
	v1.HandleFunc("/wizard/draft/publish", s.handlePublish).Methods("POST")

	v1.HandleFunc("/wizard/filters", s.handleGetFilters).Methods("GET")
	v1.HandleFunc("/wizard/filters", s.handlePatchFilters).Methods("PATCH")
	v1.HandleFunc("/wizard/filters", s.handleClearFilters).Methods("DELETE")
	v1.HandleFunc("/wizard/search/trigger", s.handleTriggerSearch).Methods("POST")
	v1.HandleFunc("/wizard/search", s.handleSearch).Methods("POST")

	v1.HandleFunc("/places/autocomplete", s.handleAutocomplete).Methods("GET")
	v1.HandleFunc("/places/routes", s.handleRoutes).Methods("POST")
	v1.HandleFunc("/places/popular", s.handlePopular).Methods("GET")

	v1.HandleFunc("/payments/hold", s.handleHoldPayment).Methods("POST")
	v1.HandleFunc("/payments/{intent_id}/capture", s.handleCapturePayment).Methods("POST")
	v1.HandleFunc("/payments/{intent_id}/cancel", s.handleCancelPayment).Methods("POST")

	r.HandleFunc("/ws/draft", s.handleWatchDraft)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := r.Header.Get(ownerHeader)
	if owner == "" {
		httpError(w, http.StatusBadRequest, ownerHeader+" header required")
		return "", false
	}
	return owner, true
}

// clientFor binds the shared upstream client to one owner's token source.
func (s *Server) clientFor(ctx context.Context, owner string) (*api.Client, error) {
	sess, err := s.sessions.For(ctx, owner)
	if err != nil {
		return nil, err
	}
	c := *s.upstream
	c.Tokens = sess
	return &c, nil
}

func (s *Server) draftFor(w http.ResponseWriter, r *http.Request) (*draft.Store, string, bool) {
	owner, ok := s.owner(w, r)
	if !ok {
		return nil, "", false
	}
	st, err := s.drafts.For(r.Context(), owner)
	if err != nil {
		s.logger.Error("draft hydrate failed", "owner", owner, "error", err)
		httpError(w, http.StatusInternalServerError, "draft unavailable")
		return nil, "", false
	}
	return st, owner, true
}

func (s *Server) filtersFor(w http.ResponseWriter, r *http.Request) (*search.Store, string, bool) {
	owner, ok := s.owner(w, r)
	if !ok {
		return nil, "", false
	}
	st, err := s.filters.For(r.Context(), owner)
	if err != nil {
		s.logger.Error("filters hydrate failed", "owner", owner, "error", err)
		httpError(w, http.StatusInternalServerError, "filters unavailable")
		return nil, "", false
	}
	return st, owner, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// mutated reports a mutation result: the draft changed in memory either
// way, but a failed storage write is surfaced so the caller knows the
// persisted copy is behind.
func (s *Server) mutated(w http.ResponseWriter, st *draft.Store, err error) {
	if err != nil {
		s.logger.Error("draft persist failed", "error", err)
		httpError(w, http.StatusInternalServerError, "draft not persisted")
		return
	}
	writeJSON(w, http.StatusOK, st.Get())
}

// --- session ---

func (s *Server) handleSetToken(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	var body struct {
		Token *string `json:"token"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	sess, err := s.sessions.For(r.Context(), owner)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	if err := sess.SetToken(r.Context(), body.Token); err != nil {
		httpError(w, http.StatusInternalServerError, "session not persisted")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLogout clears every user-scoped store for the owner: token, draft
// and the cached in-memory copies.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	sess, err := s.sessions.For(ctx, owner)
	if err == nil {
		if err := sess.SetToken(ctx, nil); err != nil {
			s.logger.Warn("logout token clear failed", "owner", owner, "error", err)
		}
	}
	if st, err := s.drafts.For(ctx, owner); err == nil {
		if err := st.Clear(ctx); err != nil {
			s.logger.Warn("logout draft clear failed", "owner", owner, "error", err)
		}
	}
	s.drafts.Drop(owner)
	s.sessions.Drop(owner)
	s.filters.Drop(owner)
	w.WriteHeader(http.StatusNoContent)
}

// --- draft ---

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	st, _, ok := s.draftFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st.Get())
}

func (s *Server) handlePatchDraft(w http.ResponseWriter, r *http.Request) {
	st, _, ok := s.draftFor(w, r)
	if !ok {
		return
	}
	var patch models.RideDraft
	if !decodeBody(w, r, &patch) {
		return
	}
	s.mutated(w, st, st.Update(r.Context(), patch))
}

func (s *Server) handleClearDraft(w http.ResponseWriter, r *http.Request) {
	st, _, ok := s.draftFor(w, r)
	if !ok {
		return
	}
	s.mutated(w, st, st.Clear(r.Context()))
}

func (s *Server) handleSetPickup(w http.ResponseWriter, r *http.Request) {
	st, _, ok := s.draftFor(w, r)
	if !ok {
		return
	}
	var p models.LocationPoint
	if !decodeBody(w, r, &p) {
		return
	}
	s.mutated(w, st, st.SetPickup(r.Context(), p))
}

func (s *Server) handleSetDropoff(w http.ResponseWriter, r *http.Request) {
	st, _, ok := s.draftFor(w, r)
	if !ok {
		return
	}
	var p models.LocationPoint
	if !decodeBody(w, r, &p) {
		return
	}
	s.mutated(w, st, st.SetDropoff(r.Context(), p))
}

func (s *Server) handleSetRoute(w http.ResponseWriter, r *http.Request) {
	st, _, ok := s.draftFor(w, r)
	if !ok {
		return
	}
	var body struct {
		RideRoute             *string `json:"ride_route"`
		SelectedRoutePolyline *string `json:"selected_route_polyline"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	ctx := r.Context()
	if body.RideRoute != nil {
		if err := st.SetRideRoute(ctx, *body.RideRoute); err != nil {
			s.mutated(w, st, err)
			return
		}
	}
	if body.SelectedRoutePolyline != nil {
		if err := st.SetSelectedRoutePolyline(ctx, *body.SelectedRoutePolyline); err != nil {
			s.mutated(w, st, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, st.Get())
}

func (s *Server) handleSetSchedule(w http.ResponseWriter, r *http.Request) {
	st, _, ok := s.draftFor(w, r)
	if !ok {
		return
	}
	var body struct {
		DepartureDate *string `json:"departure_date"`
		DepartureTime *string `json:"departure_time"`
		DropTime      *string `json:"drop_time"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	patch := models.RideDraft{DepartureDate: body.DepartureDate, DepartureTime: body.DepartureTime, DropTime: body.DropTime}
	s.mutated(w, st, st.Update(r.Context(), patch))
}

func (s *Server) handleSetCapacity(w http.ResponseWriter, r *http.Request) {
	st, _, ok := s.draftFor(w, r)
	if !ok {
		return
	}
	var body struct {
		AvailableSeats *int  `json:"available_seats"`
		Max2InBack     *bool `json:"max_2_in_back"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	// seat bounds live here at the surface, not in the model
	if body.AvailableSeats != nil && (*body.AvailableSeats < 1 || *body.AvailableSeats > 3) {
		httpError(w, http.StatusBadRequest, "available_seats must be between 1 and 3")
		return
	}
	patch := models.RideDraft{AvailableSeats: body.AvailableSeats, Max2InBack: body.Max2InBack}
	s.mutated(w, st, st.Update(r.Context(), patch))
}

func (s *Server) handleSetPricing(w http.ResponseWriter, r *http.Request) {
	st, _, ok := s.draftFor(w, r)
	if !ok {
		return
	}
	var body struct {
		PricePerSeat *int64                `json:"price_per_seat"`
		Prices       []models.PriceSegment `json:"prices"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	patch := models.RideDraft{PricePerSeat: body.PricePerSeat, Prices: body.Prices}
	s.mutated(w, st, st.Update(r.Context(), patch))
}

func (s *Server) handleAddStop(w http.ResponseWriter, r *http.Request) {
	st, _, ok := s.draftFor(w, r)
	if !ok {
		return
	}
	var stop models.StopPoint
	if !decodeBody(w, r, &stop) {
		return
	}
	// the page checks for duplicates before offering the add action; the
	// store itself never deduplicates
	for _, existing := range st.Get().Stops {
		if existing.PlaceID == stop.PlaceID {
			httpError(w, http.StatusConflict, "stop already added")
			return
		}
	}
	s.mutated(w, st, st.AddStop(r.Context(), stop))
}

func (s *Server) handleRemoveStop(w http.ResponseWriter, r *http.Request) {
	st, _, ok := s.draftFor(w, r)
	if !ok {
		return
	}
	placeID := mux.Vars(r)["place_id"]
	s.mutated(w, st, st.RemoveStop(r.Context(), placeID))
}

func (s *Server) handleReorderStops(w http.ResponseWriter, r *http.Request) {
	st, _, ok := s.draftFor(w, r)
	if !ok {
		return
	}
	var stops []models.StopPoint
	if !decodeBody(w, r, &stops) {
		return
	}
	s.mutated(w, st, st.UpdateStopOrder(r.Context(), stops))
}

// handlePublish is the terminal wizard step: whatever subset of fields the
// draft has goes upstream in one call. On success the draft is cleared and
// a ride_published event is emitted.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	st, owner, ok := s.draftFor(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	client, err := s.clientFor(ctx, owner)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	d := st.Get()
	created, err := client.CreateRide(ctx, d)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	observability.RidesPublished.Inc()
	if s.events != nil {
		if err := s.events.RidePublished(owner, d); err != nil {
			s.logger.Warn("ride event publish failed", "owner", owner, "error", err)
		}
	}
	if err := st.Clear(ctx); err != nil {
		s.logger.Warn("draft clear after publish failed", "owner", owner, "error", err)
	}
	writeJSON(w, http.StatusCreated, created)
}

// --- filters / search ---

func (s *Server) handleGetFilters(w http.ResponseWriter, r *http.Request) {
	st, _, ok := s.filtersFor(w, r)
	if !ok {
		return
	}
	f, trigger := st.Get()
	writeJSON(w, http.StatusOK, map[string]any{
		"filters":       f,
		"searchTrigger": trigger,
		"activeCount":   f.ActiveCount(),
	})
}

func (s *Server) handlePatchFilters(w http.ResponseWriter, r *http.Request) {
	st, _, ok := s.filtersFor(w, r)
	if !ok {
		return
	}
	var patch models.FilterPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	if err := st.Update(r.Context(), patch); err != nil {
		httpError(w, http.StatusInternalServerError, "filters not persisted")
		return
	}
	f, trigger := st.Get()
	writeJSON(w, http.StatusOK, map[string]any{"filters": f, "searchTrigger": trigger, "activeCount": f.ActiveCount()})
}

func (s *Server) handleClearFilters(w http.ResponseWriter, r *http.Request) {
	st, _, ok := s.filtersFor(w, r)
	if !ok {
		return
	}
	if err := st.ClearAllFilters(r.Context()); err != nil {
		httpError(w, http.StatusInternalServerError, "filters not persisted")
		return
	}
	f, trigger := st.Get()
	writeJSON(w, http.StatusOK, map[string]any{"filters": f, "searchTrigger": trigger, "activeCount": 0})
}

func (s *Server) handleTriggerSearch(w http.ResponseWriter, r *http.Request) {
	st, owner, ok := s.filtersFor(w, r)
	if !ok {
		return
	}
	trigger, err := st.TriggerSearch(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, "trigger not persisted")
		return
	}
	if s.events != nil {
		if err := s.events.SearchTriggered(owner); err != nil {
			s.logger.Warn("search event publish failed", "owner", owner, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"searchTrigger": trigger})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	st, owner, ok := s.filtersFor(w, r)
	if !ok {
		return
	}
	var q api.SearchQuery
	if !decodeBody(w, r, &q) {
		return
	}
	// the stored filters are authoritative; the body only carries route,
	// date, seats and page
	q.Filters, _ = st.Get()
	ctx := r.Context()
	client, err := s.clientFor(ctx, owner)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	res, err := client.SearchRides(ctx, q)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- places ---

func (s *Server) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		httpError(w, http.StatusBadRequest, "q required")
		return
	}
	pts, err := s.complete.Query(r.Context(), owner, q)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// superseded by a newer query; nothing to show
			httpError(w, http.StatusConflict, "superseded")
			return
		}
		httpError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pts)
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Pickup  models.LocationPoint `json:"pickup"`
		Dropoff models.LocationPoint `json:"dropoff"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	routes, err := s.places.Routes(r.Context(), body.Pickup, body.Dropoff)
	if err != nil {
		httpError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, routes)
}

func (s *Server) handlePopular(w http.ResponseWriter, r *http.Request) {
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, err2 := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if err1 != nil || err2 != nil {
		httpError(w, http.StatusBadRequest, "lat and lng required")
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	pts, err := s.popular.Near(r.Context(), lat, lng, 25000, limit)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "popular places unavailable")
		return
	}
	writeJSON(w, http.StatusOK, pts)
}

// --- payments ---

func (s *Server) handleHoldPayment(w http.ResponseWriter, r *http.Request) {
	if s.payments == nil {
		httpError(w, http.StatusServiceUnavailable, "payments not configured")
		return
	}
	var body struct {
		AmountHalalas int64  `json:"amount_halalas"`
		CustomerID    string `json:"customer_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.AmountHalalas <= 0 {
		httpError(w, http.StatusBadRequest, "amount_halalas must be positive")
		return
	}
	id, err := s.payments.HoldSeat(r.Context(), body.AmountHalalas, body.CustomerID)
	if err != nil {
		httpError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"intent_id": id})
}

func (s *Server) handleCapturePayment(w http.ResponseWriter, r *http.Request) {
	if s.payments == nil {
		httpError(w, http.StatusServiceUnavailable, "payments not configured")
		return
	}
	if err := s.payments.CaptureSeat(r.Context(), mux.Vars(r)["intent_id"]); err != nil {
		httpError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancelPayment(w http.ResponseWriter, r *http.Request) {
	if s.payments == nil {
		httpError(w, http.StatusServiceUnavailable, "payments not configured")
		return
	}
	if err := s.payments.ReleaseSeat(r.Context(), mux.Vars(r)["intent_id"]); err != nil {
		httpError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- watch ---

var upgrader = websocket.Upgrader{}

func (s *Server) handleWatchDraft(w http.ResponseWriter, r *http.Request) {
	owner := r.Header.Get(ownerHeader)
	if owner == "" {
		owner = r.URL.Query().Get("owner")
	}
	if owner == "" {
		httpError(w, http.StatusBadRequest, "owner required")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own error response
		s.logger.Warn("watch upgrade failed", "owner", owner, "error", err)
		return
	}
	s.watch.Watch(owner, conn)
}

// respondUpstreamError maps an upstream failure onto this surface: the
// platform's own message and status pass through, anything else is a 502.
func respondUpstreamError(w http.ResponseWriter, err error) {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		httpError(w, apiErr.Status, apiErr.Message)
		return
	}
	httpError(w, http.StatusBadGateway, err.Error())
}
