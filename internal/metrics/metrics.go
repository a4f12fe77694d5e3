// Package metrics is the C12 Prometheus registry: request counters and
// latency histograms plus a small set of domain counters and gauges (cache
// hit/miss outcomes, outbox backlog and dead letters, open SSE streams,
// search index degradation, circuit-breaker state) exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamchat_http_requests_total",
		Help: "HTTP requests processed, labeled by route, method and status code.",
	}, []string{"route", "method", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "teamchat_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	CacheOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamchat_cache_outcomes_total",
		Help: "Cache gateway outcomes, labeled hit or miss.",
	}, []string{"outcome"})

	OutboxBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "teamchat_outbox_backlog",
		Help: "Unpublished outbox rows observed at the last drain tick.",
	})

	SSEConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "teamchat_sse_connections",
		Help: "Currently open SSE streams.",
	})

	OutboxDeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teamchat_outbox_dead_lettered_total",
		Help: "Outbox entries that exhausted publish retries and were dead-lettered.",
	})

	SearchIndexDegraded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamchat_search_index_degraded_total",
		Help: "Search index operations that exhausted retries, labeled by operation (index or remove).",
	}, []string{"operation"})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "teamchat_circuit_breaker_state",
		Help: "Circuit breaker state per dependency: 0=closed, 1=half-open, 2=open.",
	}, []string{"dependency"})
)
