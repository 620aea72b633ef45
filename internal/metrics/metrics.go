// Package metrics exposes Prometheus collectors for the scraping service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scrapeCyclesTotal        *prometheus.CounterVec
	scrapePagesTotal         *prometheus.CounterVec
	listingsIngestedTotal    prometheus.Counter
	extractionFailuresTotal  prometheus.Counter
	blocksDetectedTotal      *prometheus.CounterVec
	sessionRotationsTotal    prometheus.Counter
	adaptiveDelaySeconds     prometheus.Gauge
	connectedStreamClients   prometheus.Gauge
	storedListings           prometheus.Gauge
	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDurationSecs  *prometheus.HistogramVec
	cycleDurationSeconds     prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scrapeCyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autotrack_scrape_cycles_total",
				Help: "Total number of scrape cycles run, labeled by result.",
			},
			[]string{"result"},
		)

		scrapePagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autotrack_scrape_pages_total",
				Help: "Total number of listing pages fetched, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		listingsIngestedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "autotrack_listings_ingested_total",
				Help: "Total number of new listings accepted into the store.",
			},
		)

		extractionFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "autotrack_extraction_failures_total",
				Help: "Total number of cards that failed extraction entirely.",
			},
		)

		blocksDetectedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autotrack_blocks_detected_total",
				Help: "Total number of block responses, labeled by kind.",
			},
			[]string{"kind"},
		)

		sessionRotationsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "autotrack_session_rotations_total",
				Help: "Total number of scraping session rotations.",
			},
		)

		adaptiveDelaySeconds = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "autotrack_adaptive_delay_seconds",
				Help: "Current inter-request delay chosen by the pacing controller.",
			},
		)

		connectedStreamClients = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "autotrack_stream_clients",
				Help: "Number of connected realtime stream subscribers.",
			},
		)

		storedListings = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "autotrack_stored_listings",
				Help: "Number of listings currently held in the store.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSecs = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		cycleDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "autotrack_cycle_duration_seconds",
				Help:    "Histogram of full scrape cycle durations.",
				Buckets: []float64{1, 2, 5, 10, 30, 60, 120},
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCycle records one completed scrape cycle.
func ObserveCycle(result string, duration time.Duration) {
	scrapeCyclesTotal.WithLabelValues(result).Inc()
	cycleDurationSeconds.Observe(duration.Seconds())
}

// ObservePage records the outcome of one page fetch.
func ObservePage(outcome string) {
	scrapePagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveNewListings adds to the ingested-listings counter.
func ObserveNewListings(n int) {
	if n > 0 {
		listingsIngestedTotal.Add(float64(n))
	}
}

// ObserveExtractionFailure increments the per-card failure counter.
func ObserveExtractionFailure() {
	extractionFailuresTotal.Inc()
}

// ObserveBlock records a detected block, kind is "soft" or "hard".
func ObserveBlock(kind string) {
	blocksDetectedTotal.WithLabelValues(kind).Inc()
}

// ObserveRotation increments the session rotation counter.
func ObserveRotation() {
	sessionRotationsTotal.Inc()
}

// SetAdaptiveDelay reports the pacing controller's current delay.
func SetAdaptiveDelay(d time.Duration) {
	adaptiveDelaySeconds.Set(d.Seconds())
}

// SetStreamClients reports the number of realtime subscribers.
func SetStreamClients(n int) {
	connectedStreamClients.Set(float64(n))
}

// SetStoredListings reports the current store size.
func SetStoredListings(n int) {
	storedListings.Set(float64(n))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSecs.WithLabelValues(method, route).Observe(duration.Seconds())
}
