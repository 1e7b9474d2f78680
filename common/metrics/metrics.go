// Package metrics exposes the gateway's Prometheus instrumentation.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// AuthCacheLookups counts auth-cache lookups by namespace and outcome (hit/miss).
	AuthCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nexusgate_auth_cache_lookups_total",
		Help: "Auth cache lookups by namespace and outcome.",
	}, []string{"namespace", "outcome"})

	// ThrottledRequests counts requests rejected by the coil admission check.
	ThrottledRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nexusgate_throttled_requests_total",
		Help: "Requests rejected by the coil admission check, by dimension (rpm/tpm).",
	}, []string{"dimension"})

	// TelemetryDropped counts usage records dropped by the telemetry dispatcher.
	TelemetryDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nexusgate_telemetry_dropped_total",
		Help: "Usage records dropped by the telemetry dispatcher, by reason.",
	}, []string{"reason"})

	// UpstreamLatencySeconds observes upstream call latency by outcome.
	UpstreamLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nexusgate_upstream_latency_seconds",
		Help:    "Upstream POST latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(AuthCacheLookups, ThrottledRequests, TelemetryDropped, UpstreamLatencySeconds)
}
