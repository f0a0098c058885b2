package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchesExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firewatch_searches_total",
			Help: "Total number of search operations executed",
		},
		[]string{"entity", "status"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "firewatch_search_duration_seconds",
			Help:    "Time taken to execute a search end to end",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entity"},
	)

	CorrelationsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firewatch_correlations_total",
			Help: "Total number of correlation operations executed",
		},
		[]string{"status"},
	)

	CorrelationMatches = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "firewatch_correlation_matches",
			Help:    "Matches produced per correlation request",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firewatch_upstream_requests_total",
			Help: "Total number of requests sent to the MSP API",
		},
		[]string{"entity", "code"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "firewatch_upstream_duration_seconds",
			Help:    "MSP API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entity"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firewatch_cache_hits_total",
			Help: "Upstream response cache hits",
		},
		[]string{"entity"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firewatch_cache_misses_total",
			Help: "Upstream response cache misses",
		},
		[]string{"entity"},
	)

	ValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firewatch_validation_failures_total",
			Help: "Queries rejected by validation",
		},
		[]string{"entity"},
	)
)
