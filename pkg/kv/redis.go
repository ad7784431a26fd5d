package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultNamespace prefixes all Redis keys written by a RedisStore.
	DefaultNamespace = "wishlist"

	// defaultTagIndexTTL bounds the lifetime of tag index sets. It must
	// exceed the longest entry TTL so that tag membership outlives every
	// entry it points at; entries themselves expire via their own TTL.
	defaultTagIndexTTL = 24 * time.Hour

	// deleteAllBatch is how many keys a DeleteAll unlinks per DEL call.
	deleteAllBatch = 512
)

// deleteByTagScript removes every entry listed in a tag set together with
// the set itself, so invalidation is atomic with respect to concurrent
// writers. KEYS[1] is the tag set, ARGV[1] the entry key prefix.
var deleteByTagScript = redis.NewScript(`
	local members = redis.call("SMEMBERS", KEYS[1])
	local removed = 0
	for _, m in ipairs(members) do
		removed = removed + redis.call("DEL", ARGV[1] .. m)
	end
	redis.call("DEL", KEYS[1])
	return removed
`)

// RedisStore implements Store on a shared Redis instance. Entries are
// stored as JSON under "{namespace}:entry:{key}" with a native Redis TTL;
// each tag maintains a set of member keys under "{namespace}:tag:{tag}".
type RedisStore struct {
	client      *redis.Client
	namespace   string
	tagIndexTTL time.Duration
	clock       clockwork.Clock
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithNamespace overrides the key prefix. Use distinct namespaces when
// several services share one Redis instance.
func WithNamespace(ns string) RedisOption {
	return func(s *RedisStore) {
		if ns != "" {
			s.namespace = ns
		}
	}
}

// WithTagIndexTTL overrides the tag set lifetime. Raise this if entry
// TTLs are configured beyond 24h.
func WithTagIndexTTL(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.tagIndexTTL = d
		}
	}
}

// WithClock injects the time source used for expiry checks.
func WithClock(c clockwork.Clock) RedisOption {
	return func(s *RedisStore) {
		s.clock = c
	}
}

// NewRedisStore creates a Redis-backed store. The client's lifecycle
// remains owned by the caller.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	s := &RedisStore{
		client:      client,
		namespace:   DefaultNamespace,
		tagIndexTTL: defaultTagIndexTTL,
		clock:       clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) entryKey(key string) string {
	return s.namespace + ":entry:" + key
}

func (s *RedisStore) tagKey(tag string) string {
	return s.namespace + ":tag:" + tag
}

// Get retrieves an entry by key.
// Returns ErrNotFound if the key doesn't exist or the entry is expired.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := s.client.Get(ctx, s.entryKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	// Redis expires entries on its own; the explicit check covers clock
	// skew and injected clocks.
	if entry.IsExpired(s.clock.Now()) {
		_ = s.Delete(ctx, key)
		return nil, ErrNotFound
	}

	return &entry, nil
}

// Set stores a value under key with the given tags and TTL.
// Entries with a non-positive TTL are not stored.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, tags []string, ttl time.Duration) error {
	if key == "" {
		return fmt.Errorf("cache key cannot be empty")
	}
	if ttl <= 0 {
		return nil
	}

	now := s.clock.Now()
	entry := Entry{
		Value:     value,
		Tags:      tags,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	data, err := json.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.entryKey(key), data, ttl)
	for _, tag := range tags {
		tk := s.tagKey(tag)
		pipe.SAdd(ctx, tk, key)
		pipe.Expire(ctx, tk, s.tagIndexTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes a single entry. The key stays listed in its tag sets
// until those are invalidated or lapse; DeleteByTag tolerates members
// whose entry is already gone.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.entryKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// DeleteByTag removes every entry carrying the tag and the tag set itself
// in one atomic script call. Returns the number of entries removed.
func (s *RedisStore) DeleteByTag(ctx context.Context, tag string) (int, error) {
	removed, err := deleteByTagScript.Run(ctx, s.client,
		[]string{s.tagKey(tag)}, s.namespace+":entry:").Int()
	if err != nil {
		return 0, fmt.Errorf("redis delete by tag: %w", err)
	}
	return removed, nil
}

// DeleteAll removes every key in the namespace, entries and tag sets
// alike. Returns the number of entries removed.
func (s *RedisStore) DeleteAll(ctx context.Context) (int, error) {
	var (
		batch   []string
		entries int
	)
	entryPrefix := s.namespace + ":entry:"

	iter := s.client.Scan(ctx, 0, s.namespace+":*", deleteAllBatch).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasPrefix(key, entryPrefix) {
			entries++
		}
		batch = append(batch, key)
		if len(batch) >= deleteAllBatch {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return 0, fmt.Errorf("redis flush: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		if err := s.client.Del(ctx, batch...).Err(); err != nil {
			return 0, fmt.Errorf("redis flush: %w", err)
		}
	}
	return entries, nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (s *RedisStore) Close() error {
	return nil
}
