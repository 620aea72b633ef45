package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/autotrack/autotrack/internal/geo"
	"github.com/autotrack/autotrack/internal/hub"
	"github.com/autotrack/autotrack/internal/metrics"
	"github.com/autotrack/autotrack/internal/query"
	"github.com/autotrack/autotrack/internal/session"
	"github.com/autotrack/autotrack/internal/store"
	"github.com/autotrack/autotrack/internal/vehicle"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

func testServer(t *testing.T) (*Server, *store.Store, *hub.Hub) {
	t.Helper()
	listings := store.New(100, nil, nil)
	h := hub.New(8, nil)
	sessions := session.NewController(session.Config{UserAgents: []string{"test"}}, nil)
	t.Cleanup(sessions.Close)
	s := NewServer(listings, query.New(geo.NewGazetteer()), h, sessions, nil)
	return s, listings, h
}

func seed(t *testing.T, listings *store.Store) {
	t.Helper()
	for _, l := range []vehicle.Listing{
		{ID: "a", Title: "Dacia Sandero", Brand: "Dacia", Price: 7000, Location: "Versailles"},
		{ID: "b", Title: "Peugeot 208", Brand: "Peugeot", Price: 14000, Year: 2021, QualityScore: 75, Location: "Paris", Coordinates: &vehicle.Coordinates{Lat: 48.8566, Lon: 2.3522}},
		{ID: "c", Title: "Tesla Model 3", Brand: "Tesla", Price: 32000, Fuel: vehicle.FuelElectric, QualityScore: 90, Location: "Lyon"},
	} {
		require.True(t, listings.Add(context.Background(), l))
	}
}

func TestListVehicles(t *testing.T) {
	t.Parallel()

	s, listings, _ := testServer(t)
	seed(t, listings)

	req := httptest.NewRequest(http.MethodGet, "/api/vehicles?brand=peugeot", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var page query.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 1, page.Total)
	require.Equal(t, "b", page.Vehicles[0].ID)
}

func TestListVehiclesGeoRadius(t *testing.T) {
	t.Parallel()

	s, listings, _ := testServer(t)
	seed(t, listings)

	req := httptest.NewRequest(http.MethodGet, "/api/vehicles?near=Paris&radius_km=10&sort=distance", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var page query.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 1, page.Total)
	require.Equal(t, "b", page.Vehicles[0].ID)
	require.NotNil(t, page.Vehicles[0].DistanceKm)
}

func TestListVehiclesRejectsBadParams(t *testing.T) {
	t.Parallel()

	s, listings, _ := testServer(t)
	seed(t, listings)

	for _, target := range []string{
		"/api/vehicles?min_price=abc",
		"/api/vehicles?sort=alphabetical",
		"/api/vehicles?near=Atlantis&radius_km=5",
		"/api/vehicles?sort=distance",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, target)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.NotEmpty(t, body["error"])
	}
}

func TestListVehiclesEmptyStoreReturnsValidPage(t *testing.T) {
	t.Parallel()

	s, _, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/vehicles", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var page query.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Zero(t, page.Total)
	require.Empty(t, page.Vehicles)
}

func TestStats(t *testing.T) {
	t.Parallel()

	s, listings, _ := testServer(t)
	seed(t, listings)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.EqualValues(t, 3, stats["total_vehicles"])
	require.EqualValues(t, 3, stats["total_seen"])
	require.EqualValues(t, 0, stats["stream_clients"])
	require.Contains(t, stats, "success_rate")
	require.Contains(t, stats, "adaptive_delay_ms")
	require.NotEmpty(t, stats["last_updated"])
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	s, _, _ := testServer(t)
	for _, target := range []string{"/", "/healthz", "/readyz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, target)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestStreamDeliversEvents(t *testing.T) {
	t.Parallel()

	s, _, h := testServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)

	// First line is the connection comment.
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, ":"))

	// Wait for the subscription to register before publishing.
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	h.Publish(vehicle.Listing{ID: "lbc_9", Title: "Renault Clio"})

	var data string
	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(strings.TrimSpace(line), "data: ")
			break
		}
	}

	var evt struct {
		Type    string          `json:"type"`
		Vehicle vehicle.Listing `json:"vehicle"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &evt))
	require.Equal(t, "new_vehicle", evt.Type)
	require.Equal(t, "lbc_9", evt.Vehicle.ID)
}
