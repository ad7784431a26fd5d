// Package cache provides wishlist caching with bucketed TTLs and
// tag-based invalidation.
//
// The cache service wraps a kv.Store (Redis or in-memory) with the
// following features:
//
// - Get-or-compute reads that fall back to a caller-supplied loader
// - Four TTL buckets (default, customer, wishlist, default_wishlist)
// - Tag-based invalidation sweeping whole entry groups at once
// - Per-instance hit/miss statistics with a formatted hit rate
// - Per-operation timing and memory-delta metrics
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	// Create the backing store
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//	store := kv.NewRedisStore(redisClient)
//
//	// Create the cache service
//	svc := cache.New(store, cache.WithLogger(logger))
//
//	// Read through the cache
//	data, err := svc.GetOrCompute(ctx, cache.WishlistKey("123"),
//		func(ctx context.Context) ([]byte, error) {
//			return loadWishlistJSON(ctx, "123")
//		})
//
// # Invalidation
//
//	// Store tagged entries
//	svc.CacheWishlist(ctx, "123", wishlist)
//	svc.CacheCustomer(ctx, "c-9", profile)
//
//	// Drop one wishlist and everything derived from it
//	svc.InvalidateWishlist(ctx, "123")
//
//	// Drop a customer's profile, default wishlist and listings
//	svc.InvalidateCustomer(ctx, "c-9")
//
// # Statistics
//
// Each service instance counts its own hits and misses and reports
// them via Stats(), including a hit rate formatted as a percentage
// string ("50%", "33.33%"). ClearAll() flushes the store and resets
// the counters. Every GetOrCompute call additionally records its
// duration and heap delta under the label "cache_get_{key}",
// retrievable through Metric().
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - wishlist_cache_hits_total - Cache hits
//   - wishlist_cache_misses_total - Cache misses
//   - wishlist_cache_errors_total{operation} - Cache operation errors
//   - wishlist_cache_invalidations_total{scope} - Invalidation sweeps
//   - wishlist_cache_compute_seconds - Loader time on miss
//
// # Consistency
//
// Concurrent GetOrCompute callers missing on the same key each run
// their loader; the last write wins. This is acceptable for wishlist
// payloads, which are cheap to compute and idempotent. Serialize above
// this layer if a loader is expensive enough to need single-flight.
package cache
