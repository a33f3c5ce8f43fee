package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DraftMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_wizard", Name: "draft_mutations_total", Help: "Draft store mutations by operation"},
		[]string{"op"},
	)
	PersistFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_wizard", Name: "persist_failures_total", Help: "Storage writes that failed after an in-memory mutation"})
	SearchesTriggered    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_wizard", Name: "searches_triggered_total", Help: "Search trigger increments"})
	RidesPublished       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_wizard", Name: "rides_published_total", Help: "Drafts successfully published upstream"})

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_wizard",
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of upstream platform calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_wizard", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_wizard",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
