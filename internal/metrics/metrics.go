package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Cache behavior of the article repository
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "article_cache_hits_total",
			Help: "Repository reads served from the local store",
		},
		[]string{"operation"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "article_cache_misses_total",
			Help: "Repository reads that fell through to Wikipedia",
		},
		[]string{"operation"},
	)

	WikipediaRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikipedia_requests_total",
			Help: "Outbound Wikipedia API calls",
		},
		[]string{"kind", "status"},
	)

	SummariesGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ai_summaries_generated_total",
			Help: "AI summaries generated and persisted",
		},
	)

	ArticlesEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "articles_evicted_total",
			Help: "Articles removed by the age-based cleanup sweep",
		},
	)

	SnapshotsTaken = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshots_taken_total",
			Help: "Offline page snapshots taken by the worker",
		},
		[]string{"status"},
	)
)
