// Package metricsstore provides both the gateway's ambient Prometheus
// counters (promauto, scraped externally) and the rolling 1m/5m/1h
// sample windows the Control API's GET /metrics endpoint reads directly
// (spec §4.4 Metrics Store — these are deliberately two different things:
// Prometheus for long-term/external observability, the rolling store for
// the gateway's own admission/alerting decisions).
package metricsstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus ambient metrics, grounded on the promauto Counter/Histogram/
// GaugeVec definitions in kubilitics-ai/internal/metrics/metrics.go,
// renamed from the AI-investigation domain to the gateway's own.
var (
	SelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_gateway_selections_total",
			Help: "Total number of tool selections performed, by method.",
		},
		[]string{"method"},
	)

	SelectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcp_gateway_selection_duration_seconds",
			Help:    "Hybrid Selector decision duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method"},
	)

	InvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_gateway_invocations_total",
			Help: "Total number of tool invocations, by result kind.",
		},
		[]string{"service", "result"},
	)

	InvocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcp_gateway_invocation_duration_seconds",
			Help:    "End-to-end invocation duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"service"},
	)

	WakeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcp_gateway_wake_latency_seconds",
			Help:    "Time spent waking a SLEEPING service before invocation.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"service"},
	)

	ServicePhase = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mcp_gateway_service_phase",
			Help: "1 for the service's current phase, 0 otherwise.",
		},
		[]string{"service", "phase"},
	)

	VirtualServerToolsTruncated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_gateway_virtual_server_tools_truncated_total",
			Help: "Number of tools dropped from a virtual server by the 60-tool cap.",
		},
		[]string{"virtual_server"},
	)

	AdvisorUnavailableTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mcp_gateway_advisor_unavailable_total",
			Help: "Total number of advisor calls that fell back to keyword-only selection.",
		},
	)
)
