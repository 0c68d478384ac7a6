// Package metrics holds the process-wide Prometheus collectors for
// pagesync: HTTP request counters/latency, job phase gauges, workspace
// client call outcomes, and validator coverage scores.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts inbound requests by route and status class.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagesync_http_requests_total",
			Help: "Total number of HTTP requests by route and status code.",
		},
		[]string{"route", "status"},
	)

	// HTTPRequestDuration observes request latency by route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagesync_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// JobsInPhase is a gauge of in-flight jobs per phase.
	JobsInPhase = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pagesync_jobs_in_phase",
			Help: "Number of in-flight upload jobs currently in each phase.",
		},
		[]string{"phase"},
	)

	// WorkspaceCallsTotal counts workspace client calls by operation and
	// the error-kind taxonomy they resolved to ("ok" on success).
	WorkspaceCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagesync_workspace_calls_total",
			Help: "Total workspace API calls by operation and outcome kind.",
		},
		[]string{"operation", "kind"},
	)

	// WorkspaceRetriesTotal counts retry attempts issued by the workspace
	// client, by operation.
	WorkspaceRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagesync_workspace_retries_total",
			Help: "Total retry attempts issued by the workspace client.",
		},
		[]string{"operation"},
	)

	// ValidatorCoverage observes the raw coverage score produced by the
	// validator.
	ValidatorCoverage = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pagesync_validator_coverage",
			Help:    "Raw text-coverage score produced by the validator.",
			Buckets: []float64{0.5, 0.7, 0.85, 0.9, 0.95, 0.97, 0.99, 1.0},
		},
	)
)

// Handler returns the HTTP handler exposing the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
