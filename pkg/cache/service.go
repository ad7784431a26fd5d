package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/openwishlist/wishcore/pkg/kv"
)

// ComputeFunc produces the value for a key on a cache miss.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Service is the wishlist caching facade. It wraps a kv.Store with
// bucketed TTLs, tag-based invalidation and per-instance statistics.
type Service struct {
	store  kv.Store
	clock  clockwork.Clock
	logger zerolog.Logger
	stats  *Statistics

	mu  sync.RWMutex
	ttl TTLPolicy
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock injects the time source used for operation timing.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithTTLPolicy sets the initial bucket lifetimes.
// Invalid policies are ignored in favor of the defaults.
func WithTTLPolicy(policy TTLPolicy) Option {
	return func(s *Service) {
		if policy.Validate() == nil {
			s.ttl = policy
		}
	}
}

// New creates a cache service on top of the given store.
func New(store kv.Store, opts ...Option) *Service {
	if store == nil {
		panic("kv store cannot be nil")
	}
	s := &Service{
		store:  store,
		clock:  clockwork.NewRealClock(),
		logger: zerolog.Nop(),
		stats:  NewStatistics(),
		ttl:    DefaultTTLPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCompute returns the cached value for key, or runs compute and
// caches its result under the default bucket. Compute failures
// propagate to the caller and nothing is cached for them. Every call
// records an operation metric labeled "cache_get_{key}" covering the
// full call, compute included.
//
// Concurrent callers missing on the same key each run compute; the last
// write wins. Callers needing single-flight semantics must serialize
// above this layer.
func (s *Service) GetOrCompute(ctx context.Context, key string, compute ComputeFunc) ([]byte, error) {
	start := s.clock.Now()
	var before runtime.MemStats
	runtime.ReadMemStats(&before)

	defer func() {
		var after runtime.MemStats
		runtime.ReadMemStats(&after)
		end := s.clock.Now()
		s.stats.RecordOperation("cache_get_"+key, OperationMetric{
			Duration:    end.Sub(start),
			MemoryDelta: int64(after.HeapAlloc) - int64(before.HeapAlloc),
			StartedAt:   start,
			EndedAt:     end,
		})
	}()

	entry, err := s.store.Get(ctx, key)
	if err == nil {
		s.stats.RecordHit()
		CacheHits.Inc()
		s.logger.Debug().Str("key", key).Msg("cache hit")
		return entry.Value, nil
	}
	if !errors.Is(err, kv.ErrNotFound) {
		CacheErrors.WithLabelValues("get").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
	}

	s.stats.RecordMiss()
	CacheMisses.Inc()
	s.logger.Debug().Str("key", key).Msg("cache miss")

	computeStart := s.clock.Now()
	value, err := compute(ctx)
	CacheComputeSeconds.Observe(s.clock.Since(computeStart).Seconds())
	if err != nil {
		return nil, err
	}

	s.storeEntry(ctx, key, value, nil, BucketDefault)
	return value, nil
}

// SetOption configures a single Set call.
type SetOption func(*setConfig)

type setConfig struct {
	tags   []string
	bucket Bucket
}

// WithTags attaches invalidation tags to the entry.
func WithTags(tags ...string) SetOption {
	return func(c *setConfig) {
		c.tags = append(c.tags, tags...)
	}
}

// WithBucket stores the entry under the given TTL bucket.
func WithBucket(bucket Bucket) SetOption {
	return func(c *setConfig) {
		c.bucket = bucket
	}
}

// Set stores a value directly. Write failures are logged and swallowed;
// caching is best-effort and never blocks the path it shadows.
func (s *Service) Set(ctx context.Context, key string, value []byte, opts ...SetOption) {
	cfg := setConfig{bucket: BucketDefault}
	for _, opt := range opts {
		opt(&cfg)
	}
	s.storeEntry(ctx, key, value, cfg.tags, cfg.bucket)
}

// CacheWishlist stores a wishlist under its conventional key, tagged
// for wishlist invalidation, with the wishlist bucket lifetime.
func (s *Service) CacheWishlist(ctx context.Context, wishlistID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal wishlist %s: %w", wishlistID, err)
	}
	s.storeEntry(ctx, WishlistKey(wishlistID), data, []string{WishlistTag(wishlistID)}, BucketWishlist)
	return nil
}

// CacheCustomer stores a customer profile under its conventional key,
// tagged for customer invalidation, with the customer bucket lifetime.
func (s *Service) CacheCustomer(ctx context.Context, customerID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal customer %s: %w", customerID, err)
	}
	s.storeEntry(ctx, CustomerKey(customerID), data, []string{CustomerTag(customerID)}, BucketCustomer)
	return nil
}

// CacheDefaultWishlist stores a customer's default wishlist, tagged to
// the owning customer, with the longer default-wishlist lifetime.
func (s *Service) CacheDefaultWishlist(ctx context.Context, customerID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal default wishlist for %s: %w", customerID, err)
	}
	s.storeEntry(ctx, DefaultWishlistKey(customerID), data, []string{CustomerTag(customerID)}, BucketDefaultWishlist)
	return nil
}

// InvalidateWishlist removes a wishlist's cached entry and every entry
// tagged with it. Subsequent reads recompute.
func (s *Service) InvalidateWishlist(ctx context.Context, wishlistID string) error {
	delErr := s.store.Delete(ctx, WishlistKey(wishlistID))
	removed, tagErr := s.store.DeleteByTag(ctx, WishlistTag(wishlistID))
	if err := errors.Join(delErr, tagErr); err != nil {
		CacheErrors.WithLabelValues("invalidate").Inc()
		s.logger.Error().Err(err).Str("wishlist_id", wishlistID).Msg("wishlist invalidation failed")
		return fmt.Errorf("invalidate wishlist %s: %w", wishlistID, err)
	}
	CacheInvalidations.WithLabelValues("wishlist").Inc()
	s.logger.Debug().Str("wishlist_id", wishlistID).Int("removed", removed).Msg("wishlist cache invalidated")
	return nil
}

// InvalidateCustomer removes a customer's profile, default wishlist and
// every entry tagged to the customer.
func (s *Service) InvalidateCustomer(ctx context.Context, customerID string) error {
	err := errors.Join(
		s.store.Delete(ctx, CustomerKey(customerID)),
		s.store.Delete(ctx, DefaultWishlistKey(customerID)),
	)
	removed, tagErr := s.store.DeleteByTag(ctx, CustomerTag(customerID))
	if err := errors.Join(err, tagErr); err != nil {
		CacheErrors.WithLabelValues("invalidate").Inc()
		s.logger.Error().Err(err).Str("customer_id", customerID).Msg("customer invalidation failed")
		return fmt.Errorf("invalidate customer %s: %w", customerID, err)
	}
	CacheInvalidations.WithLabelValues("customer").Inc()
	s.logger.Debug().Str("customer_id", customerID).Int("removed", removed).Msg("customer cache invalidated")
	return nil
}

// ClearAll flushes the backing store and resets statistics. Statistics
// survive when the flush fails.
func (s *Service) ClearAll(ctx context.Context) error {
	removed, err := s.store.DeleteAll(ctx)
	if err != nil {
		CacheErrors.WithLabelValues("clear").Inc()
		s.logger.Error().Err(err).Msg("cache clear failed")
		return fmt.Errorf("clear cache: %w", err)
	}
	s.stats.Reset()
	CacheInvalidations.WithLabelValues("all").Inc()
	s.logger.Info().Int("removed", removed).Msg("cache cleared")
	return nil
}

// SetTTL replaces the bucket lifetimes. Entries already stored keep the
// lifetime they were written with; the new policy applies from the next
// write on.
func (s *Service) SetTTL(policy TTLPolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.ttl = policy
	s.mu.Unlock()

	s.logger.Info().
		Dur("default", policy.Default).
		Dur("customer", policy.Customer).
		Dur("wishlist", policy.Wishlist).
		Dur("default_wishlist", policy.DefaultWishlist).
		Msg("cache ttl updated")
	return nil
}

// TTL returns the current bucket lifetimes.
func (s *Service) TTL() TTLPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ttl
}

// Stats returns a snapshot of hits, misses and the current TTL policy.
func (s *Service) Stats() Summary {
	hits := s.stats.Hits()
	misses := s.stats.Misses()
	return Summary{
		Hits:    hits,
		Misses:  misses,
		Total:   hits + misses,
		HitRate: HitRate(hits, misses),
		TTL:     s.TTL(),
	}
}

// Metric returns the most recent operation metric for a label, e.g.
// "cache_get_wishlist_123".
func (s *Service) Metric(label string) (OperationMetric, bool) {
	return s.stats.Operation(label)
}

// Metrics returns a snapshot of all recorded operation metrics.
func (s *Service) Metrics() map[string]OperationMetric {
	return s.stats.Operations()
}

func (s *Service) storeEntry(ctx context.Context, key string, value []byte, tags []string, bucket Bucket) {
	ttl := s.ttlFor(bucket)
	if err := s.store.Set(ctx, key, value, tags, ttl); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		s.logger.Warn().Err(err).Str("key", key).Str("bucket", string(bucket)).Msg("cache write failed")
	}
}

func (s *Service) ttlFor(bucket Bucket) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ttl.For(bucket)
}
