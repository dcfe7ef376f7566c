// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the precisionBOM authentication service.
package observability

import "github.com/prometheus/client_golang/prometheus"

// ExternalCallBuckets defines histogram buckets suited for the outbound
// facilitator and OIDC discovery calls, ranging from 10ms to 30s.
var ExternalCallBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pbom_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pbom_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// AuthAttemptsTotal counts authentication outcomes by provider.
	// The outcome label is "success" or the typed failure kind.
	AuthAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pbom_auth_attempts_total",
			Help: "Authentication attempts",
		},
		[]string{"provider", "outcome"},
	)

	// AuthChallengesTotal counts 402 payment challenges issued.
	AuthChallengesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pbom_auth_challenges_total",
			Help: "Payment challenges issued",
		},
		[]string{"kind"},
	)

	// FacilitatorRequestsTotal counts calls to the payment facilitator.
	FacilitatorRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pbom_facilitator_requests_total",
			Help: "Facilitator requests",
		},
		[]string{"endpoint", "status"},
	)

	// FacilitatorLatency records facilitator call latency in seconds.
	FacilitatorLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pbom_facilitator_request_duration_seconds",
			Help:    "Facilitator request latency",
			Buckets: ExternalCallBuckets,
		},
		[]string{"endpoint"},
	)

	// JWKSRefreshTotal counts JWKS fetches by outcome.
	JWKSRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pbom_jwks_refresh_total",
			Help: "JWKS cache refreshes",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		AuthAttemptsTotal,
		AuthChallengesTotal,
		FacilitatorRequestsTotal,
		FacilitatorLatency,
		JWKSRefreshTotal,
	)
}
