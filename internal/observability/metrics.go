package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	RequestsThrottledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "http_requests_throttled_total",
			Help: "Requests rejected by the per-IP request limiter",
		},
	)

	// Login metrics
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"}, // ok, invalid, locked_out
	)

	// Edit lock metrics
	LockRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edit_lock_requests_total",
			Help: "Edit lock actions by outcome",
		},
		[]string{"action", "outcome"}, // acquire|release|heartbeat, ok|conflict|not_owned
	)

	// Document metrics
	DocumentCommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_commits_total",
			Help: "Document commit attempts by outcome",
		},
		[]string{"outcome"}, // ok, rejected, storage_error
	)

	DocumentBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "document_bytes",
			Help: "Size of the committed document in bytes",
		},
	)

	// Event stream metrics
	EventClientsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "event_clients_active",
			Help: "WebSocket clients subscribed to the event stream",
		},
	)

	EventsBroadcastTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_broadcast_total",
			Help: "Events pushed to the event stream",
		},
		[]string{"type"},
	)
)
