// Package api exposes the HTTP interface for the monitoring service.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/autotrack/autotrack/internal/hub"
	"github.com/autotrack/autotrack/internal/metrics"
	"github.com/autotrack/autotrack/internal/query"
	"github.com/autotrack/autotrack/internal/session"
	"github.com/autotrack/autotrack/internal/store"

	"go.uber.org/zap"
)

// Server wires HTTP handlers to the store, the query engine, and the hub.
type Server struct {
	router   chi.Router
	listings *store.Store
	engine   *query.Engine
	hub      *hub.Hub
	sessions *session.Controller
	logger   *zap.Logger
	started  time.Time
}

// NewServer constructs a Server with middleware and routes.
func NewServer(listings *store.Store, engine *query.Engine, h *hub.Hub, sessions *session.Controller, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		listings: listings,
		engine:   engine,
		hub:      h,
		sessions: sessions,
		logger:   logger,
		started:  time.Now().UTC(),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	// The stream endpoint holds its connection open, so it stays outside
	// the timeout handler (http.TimeoutHandler buffers responses).
	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(30 * time.Second))
		r.Get("/", s.root)
		r.Get("/healthz", s.healthz)
		r.Get("/readyz", s.readyz)
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
		r.Get("/api/vehicles", s.listVehicles)
		r.Get("/api/stats", s.stats)
	})
	r.Get("/api/stream", s.stream)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":        "autotrack",
		"status":         "running",
		"total_vehicles": s.listings.Len(),
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// In-memory dependencies are always ready once constructed.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listVehicles(w http.ResponseWriter, r *http.Request) {
	filters, sortKey, page, pageSize, err := parseVehiclesQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.engine.Run(s.listings.Snapshot(), filters, sortKey, page, pageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	st := s.sessions.Snapshot()

	var lastUpdated *string
	if t := s.listings.LastUpdated(); !t.IsZero() {
		formatted := t.Format(time.RFC3339)
		lastUpdated = &formatted
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_vehicles":    s.listings.Len(),
		"total_seen":        s.listings.TotalSeen(),
		"last_updated":      lastUpdated,
		"stream_clients":    s.hub.ClientCount(),
		"sessions_created":  st.SessionsCreated,
		"requests_total":    st.RequestsTotal,
		"blocks_total":      st.BlocksTotal,
		"success_rate":      st.SuccessRate,
		"adaptive_delay_ms": st.AdaptiveDelayMs,
		"session_state":     st.State,
	})
}

func parseVehiclesQuery(r *http.Request) (query.Filters, string, int, int, error) {
	q := r.URL.Query()
	var f query.Filters

	f.Brand = q.Get("brand")
	f.Model = q.Get("model")
	f.Location = q.Get("location")
	f.Fuel = q.Get("fuel")
	f.Gearbox = q.Get("gearbox")
	f.Near = q.Get("near")

	var err error
	if f.MinPrice, err = intParam(q.Get("min_price")); err != nil {
		return f, "", 0, 0, err
	}
	if f.MaxPrice, err = intParam(q.Get("max_price")); err != nil {
		return f, "", 0, 0, err
	}
	if f.MinYear, err = intParam(q.Get("min_year")); err != nil {
		return f, "", 0, 0, err
	}
	if f.MaxYear, err = intParam(q.Get("max_year")); err != nil {
		return f, "", 0, 0, err
	}
	if f.MaxMileage, err = intParam(q.Get("max_mileage")); err != nil {
		return f, "", 0, 0, err
	}
	if f.MinScore, err = floatParam(q.Get("min_score")); err != nil {
		return f, "", 0, 0, err
	}
	if f.RadiusKm, err = floatParam(q.Get("radius_km")); err != nil {
		return f, "", 0, 0, err
	}

	page, err := intParam(q.Get("page"))
	if err != nil {
		return f, "", 0, 0, err
	}
	pageSize, err := intParam(q.Get("limit"))
	if err != nil {
		return f, "", 0, 0, err
	}
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = 50
	}
	return f, q.Get("sort"), page, pageSize, nil
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errInvalidParam(raw)
	}
	return n, nil
}

func floatParam(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return 0, errInvalidParam(raw)
	}
	return f, nil
}
