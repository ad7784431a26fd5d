// Package metrics provides the centralized Prometheus metrics registry for
// the wishlist core. All metrics are defined in their respective packages
// (cache, ratelimit) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the wishlist core.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - wishlist_cache_hits_total (Counter): Cache hits across all service instances
//   - wishlist_cache_misses_total (Counter): Cache misses across all service instances
//   - wishlist_cache_errors_total{operation} (Counter): Cache operation errors
//     (operation: get, set, invalidate, clear)
//   - wishlist_cache_invalidations_total{scope} (Counter): Invalidation sweeps
//     (scope: wishlist, customer, all)
//   - wishlist_cache_compute_seconds (Histogram): Time spent computing values on miss
//
// Rate Limit Metrics (pkg/ratelimit):
//   - wishlist_ratelimit_allowed_total{class} (Counter): Requests allowed by the limiter
//   - wishlist_ratelimit_rejected_total{class} (Counter): Requests rejected by the limiter
//   - wishlist_ratelimit_store_errors_total (Counter): Window store failures (fail open)
//
// Origin Metrics (pkg/origin):
//   - wishlist_origin_requests_total{endpoint,status} (Counter): Requests to the wishlist backend
//   - wishlist_origin_request_duration_seconds{endpoint} (Histogram): Backend request latency
//   - wishlist_origin_errors_total{class} (Counter): Backend errors by class
//     (class: client, server, rate_limit, network)
//   - wishlist_origin_retries_total{error_class} (Counter): Retry attempts against the backend
//   - wishlist_origin_retry_backoff_seconds (Histogram): Backoff delay before each retry
//   - wishlist_origin_retry_exhausted_total{error_class} (Counter): Fetches that ran out of attempts
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(wishlist_cache_hits_total[5m])) /
//   (sum(rate(wishlist_cache_hits_total[5m])) + sum(rate(wishlist_cache_misses_total[5m])))
//
//   # Rejection Rate By Class
//   sum by (class) (rate(wishlist_ratelimit_rejected_total[5m]))
//
//   # P95 Compute Latency On Miss
//   histogram_quantile(0.95, rate(wishlist_cache_compute_seconds_bucket[5m]))
//
//   # Limiter Failing Open
//   rate(wishlist_ratelimit_store_errors_total[5m]) > 0
