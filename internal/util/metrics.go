package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProductsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "products_created_total",
		Help: "Total number of products created",
	})

	ProductsUpdatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "products_updated_total",
		Help: "Total number of products updated",
	})

	ProductsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "products_deleted_total",
		Help: "Total number of products logically deleted",
	})

	ProductWritesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "product_writes_failed_total",
		Help: "Total number of rejected product mutations",
	}, []string{"reason"})

	ProductCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "product_cache_hits_total",
		Help: "Total number of product cache hits",
	})

	ProductCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "product_cache_misses_total",
		Help: "Total number of product cache misses",
	})

	EventsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "change_events_published_total",
		Help: "Total number of change events relayed from the outbox",
	})

	EventsAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "change_events_applied_total",
		Help: "Total number of change events applied to the search index",
	})

	EventsSkippedStaleTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "change_events_skipped_stale_total",
		Help: "Total number of change events skipped as stale duplicates",
	})

	EventsDeadLetteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "change_events_dead_lettered_total",
		Help: "Total number of change events moved to the dead-letter table",
	})

	IndexApplyLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "index_apply_latency_seconds",
		Help:    "Latency of search index apply operations",
		Buckets: prometheus.DefBuckets,
	})

	SearchQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_queries_total",
		Help: "Total number of search queries served",
	}, []string{"kind"})

	SessionValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_validations_total",
		Help: "Total number of session validation calls",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
