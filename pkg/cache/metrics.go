package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits across all service instances
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wishlist_cache_hits_total",
			Help: "Total number of wishlist cache hits",
		},
	)

	// CacheMisses tracks cache misses across all service instances
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wishlist_cache_misses_total",
			Help: "Total number of wishlist cache misses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wishlist_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "invalidate", "clear"
	)

	// CacheInvalidations tracks invalidation sweeps by scope
	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wishlist_cache_invalidations_total",
			Help: "Total number of cache invalidations",
		},
		[]string{"scope"}, // "wishlist", "customer", "all"
	)

	// CacheComputeSeconds tracks time spent computing values on miss
	CacheComputeSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wishlist_cache_compute_seconds",
			Help:    "Time spent computing cache values on miss",
			Buckets: prometheus.DefBuckets,
		},
	)
)
