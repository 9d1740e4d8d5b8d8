// Package metrics provides Prometheus instrumentation for the tracker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FetchCyclesTotal counts fetch cycles by direction and outcome
	// (success, upstream_error, aggregate_error, store_error, skipped).
	FetchCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "p2p_fetch_cycles_total",
		Help: "Fetch cycles run, by trade direction and outcome",
	}, []string{"direction", "outcome"})

	// FetchDuration tracks upstream fetch+aggregate latency.
	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "p2p_fetch_duration_seconds",
		Help:    "Fetch cycle duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"direction"})

	// MergesTotal counts points merged into the series.
	MergesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "p2p_series_merges_total",
		Help: "Price points merged into the time series",
	}, []string{"direction"})

	// PrunedPointsTotal counts points dropped by retention pruning.
	PrunedPointsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "p2p_series_pruned_points_total",
		Help: "Raw points pruned from the retention window",
	}, []string{"direction"})

	// CurrentPrice exposes the last aggregated price per direction.
	CurrentPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "p2p_current_price",
		Help: "Last aggregated price per trade direction",
	}, []string{"direction"})

	// HTTPRequestsTotal counts API requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "p2p_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request metrics around an HTTP handler.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(wrapped.status)).Inc()
	})
}

// ObserveFetch records one completed fetch cycle.
func ObserveFetch(direction string, outcome string, elapsed time.Duration) {
	FetchCyclesTotal.WithLabelValues(direction, outcome).Inc()
	FetchDuration.WithLabelValues(direction).Observe(elapsed.Seconds())
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
