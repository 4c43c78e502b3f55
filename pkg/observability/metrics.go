// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring move resolution.
package observability

import "github.com/prometheus/client_golang/prometheus"

// VendorBuckets covers vendor latencies from 100ms to 120s. Reasoning models
// routinely take tens of seconds per move.
var VendorBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts HTTP requests by method, status class, and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schach_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "schach_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: VendorBuckets,
		},
		[]string{"method", "route"},
	)

	// StreamingConnections tracks active SSE responses.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "schach_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// ProviderRequestsTotal counts vendor calls. status is "ok" or an error kind.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schach_provider_requests_total",
			Help: "Vendor requests",
		},
		[]string{"provider", "model", "status"},
	)

	// ProviderLatency records vendor latency in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "schach_provider_latency_seconds",
			Help:    "Vendor latency",
			Buckets: VendorBuckets,
		},
		[]string{"provider", "model"},
	)

	// ResolutionsTotal counts finished resolutions by outcome status.
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schach_resolutions_total",
			Help: "Move resolutions",
		},
		[]string{"provider", "outcome"},
	)

	// AttemptsTotal counts individual attempts. result is "accepted" or the
	// rejection kind.
	AttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schach_attempts_total",
			Help: "Resolution attempts",
		},
		[]string{"provider", "result"},
	)

	// EscalationsTotal counts retries that raised temperature or token budget.
	EscalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schach_escalations_total",
			Help: "Parameter escalations",
		},
		[]string{"provider"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schach_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		ProviderRequestsTotal,
		ProviderLatency,
		ResolutionsTotal,
		AttemptsTotal,
		EscalationsTotal,
		RateLimitRejectedTotal,
	)
}
