package kv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/jonboulle/clockwork"
)

const (
	defaultMemoryMaxBytes   = 64 << 20
	defaultMemoryMaxEntries = 100_000
)

// MemoryStore implements Store on a ristretto LRU cache. It serves
// single-process deployments and tests; use RedisStore when several
// instances must share one cache.
//
// Ristretto has no key iteration, so the store maintains its own tag
// index under a mutex. The index may briefly list keys ristretto has
// already evicted; lookups prune such leftovers lazily.
type MemoryStore struct {
	cache *ristretto.Cache
	clock clockwork.Clock

	mu      sync.Mutex
	tags    map[string]map[string]struct{}
	keyTags map[string][]string
}

type memoryConfig struct {
	maxBytes   int64
	maxEntries int64
	clock      clockwork.Clock
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*memoryConfig)

// WithMaxBytes bounds the total payload size held in memory.
func WithMaxBytes(n int64) MemoryOption {
	return func(c *memoryConfig) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithMaxEntries sizes the admission frequency sketch.
func WithMaxEntries(n int64) MemoryOption {
	return func(c *memoryConfig) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithMemoryClock injects the time source used for expiry checks.
func WithMemoryClock(clock clockwork.Clock) MemoryOption {
	return func(c *memoryConfig) {
		c.clock = clock
	}
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(opts ...MemoryOption) (*MemoryStore, error) {
	cfg := memoryConfig{
		maxBytes:   defaultMemoryMaxBytes,
		maxEntries: defaultMemoryMaxEntries,
		clock:      clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	// NumCounters should be ~10x the number of entries for optimal
	// admission decisions.
	numCounters := cfg.maxEntries * 10
	if numCounters < 1000 {
		numCounters = 1000
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     cfg.maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}

	return &MemoryStore{
		cache:   cache,
		clock:   cfg.clock,
		tags:    make(map[string]map[string]struct{}),
		keyTags: make(map[string][]string),
	}, nil
}

// Get retrieves an entry by key.
// Returns ErrNotFound if the key doesn't exist or the entry is expired.
func (s *MemoryStore) Get(ctx context.Context, key string) (*Entry, error) {
	val, found := s.cache.Get(key)
	if !found {
		s.forget(key)
		return nil, ErrNotFound
	}

	entry, ok := val.(*Entry)
	if !ok {
		s.cache.Del(key)
		s.forget(key)
		return nil, ErrInvalidEntry
	}

	if entry.IsExpired(s.clock.Now()) {
		s.cache.Del(key)
		s.forget(key)
		return nil, ErrNotFound
	}

	return entry, nil
}

// Set stores a value under key with the given tags and TTL.
// Entries with a non-positive TTL are not stored. Entries rejected by
// the admission policy are silently dropped; caching is best-effort.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, tags []string, ttl time.Duration) error {
	if key == "" {
		return fmt.Errorf("cache key cannot be empty")
	}
	if ttl <= 0 {
		return nil
	}

	now := s.clock.Now()
	entry := &Entry{
		Value:     value,
		Tags:      tags,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	cost := int64(len(value))
	if cost == 0 {
		cost = 1
	}

	// The native ristretto TTL is a safety net under the real clock; the
	// explicit ExpiresAt check in Get is authoritative.
	if !s.cache.SetWithTTL(key, entry, cost, ttl) {
		s.forget(key)
		return nil
	}
	s.cache.Wait()

	s.mu.Lock()
	s.removeIndexLocked(key)
	s.keyTags[key] = tags
	for _, tag := range tags {
		set, ok := s.tags[tag]
		if !ok {
			set = make(map[string]struct{})
			s.tags[tag] = set
		}
		set[key] = struct{}{}
	}
	s.mu.Unlock()

	return nil
}

// Delete removes a single entry.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.cache.Del(key)
	s.forget(key)
	return nil
}

// DeleteByTag removes every entry carrying the tag.
// Returns the number of live entries removed.
func (s *MemoryStore) DeleteByTag(ctx context.Context, tag string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.tags[tag] {
		if _, found := s.cache.Get(key); found {
			removed++
		}
		s.cache.Del(key)
		s.removeIndexLocked(key)
	}
	delete(s.tags, tag)
	return removed, nil
}

// DeleteAll flushes the whole store.
// Returns the number of live entries removed.
func (s *MemoryStore) DeleteAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.keyTags {
		if _, found := s.cache.Get(key); found {
			removed++
		}
	}
	s.cache.Clear()
	s.tags = make(map[string]map[string]struct{})
	s.keyTags = make(map[string][]string)
	return removed, nil
}

// Close releases the underlying cache.
func (s *MemoryStore) Close() error {
	s.cache.Close()
	return nil
}

// forget drops a key from the tag index.
func (s *MemoryStore) forget(key string) {
	s.mu.Lock()
	s.removeIndexLocked(key)
	s.mu.Unlock()
}

func (s *MemoryStore) removeIndexLocked(key string) {
	for _, tag := range s.keyTags[key] {
		if set, ok := s.tags[tag]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(s.tags, tag)
			}
		}
	}
	delete(s.keyTags, key)
}
