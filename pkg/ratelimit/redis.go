package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultWindowNamespace prefixes all Redis keys written by a
// RedisWindowStore.
const DefaultWindowNamespace = "ratelimit"

// consumeScript prunes aged entries, checks the quota and records the
// request in one atomic step, so concurrent requests cannot overshoot.
// KEYS[1] is the window zset; ARGV: now-ms, window-ms, limit, member.
// Returns {allowed, remaining, oldest-score}.
var consumeScript = redis.NewScript(`
	local cutoff = tonumber(ARGV[1]) - tonumber(ARGV[2])
	redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", cutoff)
	local count = redis.call("ZCARD", KEYS[1])
	local limit = tonumber(ARGV[3])
	if count >= limit then
		local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
		return {0, 0, oldest[2]}
	end
	redis.call("ZADD", KEYS[1], ARGV[1], ARGV[4])
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
	local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
	return {1, limit - count - 1, oldest[2]}
`)

// peekScript answers the same question without writing anything, so
// reads cannot affect later decisions. Returns {remaining, reset-ms}.
var peekScript = redis.NewScript(`
	local cutoff = tonumber(ARGV[1]) - tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local count = redis.call("ZCOUNT", KEYS[1], "(" .. cutoff, "+inf")
	local remaining = limit - count
	if remaining < 0 then
		remaining = 0
	end
	local oldest = redis.call("ZRANGEBYSCORE", KEYS[1], "(" .. cutoff, "+inf", "LIMIT", 0, 1, "WITHSCORES")
	if oldest[2] then
		return {remaining, oldest[2]}
	end
	return {remaining, ARGV[1]}
`)

// RedisWindowStore implements WindowStore on a shared Redis instance.
// Each key keeps a zset of request timestamps under
// "{namespace}:window:{key}", scored in epoch milliseconds.
type RedisWindowStore struct {
	client    *redis.Client
	namespace string
}

// RedisWindowOption configures a RedisWindowStore.
type RedisWindowOption func(*RedisWindowStore)

// WithWindowNamespace overrides the key prefix.
func WithWindowNamespace(ns string) RedisWindowOption {
	return func(s *RedisWindowStore) {
		if ns != "" {
			s.namespace = ns
		}
	}
}

// NewRedisWindowStore creates a Redis-backed window store. The client's
// lifecycle remains owned by the caller.
func NewRedisWindowStore(client *redis.Client, opts ...RedisWindowOption) *RedisWindowStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	s := &RedisWindowStore{
		client:    client,
		namespace: DefaultWindowNamespace,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisWindowStore) windowKey(key string) string {
	return s.namespace + ":window:" + key
}

// Consume implements WindowStore.
func (s *RedisWindowStore) Consume(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Decision, error) {
	nowMs := now.UnixMilli()
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	reply, err := consumeScript.Run(ctx, s.client,
		[]string{s.windowKey(key)},
		nowMs, window.Milliseconds(), limit, member).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis consume: %w", err)
	}
	if len(reply) != 3 {
		return Decision{}, fmt.Errorf("redis consume: unexpected reply %v", reply)
	}

	allowed, err := asInt64(reply[0])
	if err != nil {
		return Decision{}, fmt.Errorf("redis consume: %w", err)
	}
	remaining, err := asInt64(reply[1])
	if err != nil {
		return Decision{}, fmt.Errorf("redis consume: %w", err)
	}
	oldestMs, err := asInt64(reply[2])
	if err != nil {
		return Decision{}, fmt.Errorf("redis consume: %w", err)
	}

	return Decision{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
		ResetAt:   time.UnixMilli(oldestMs).Add(window),
	}, nil
}

// Peek implements WindowStore.
func (s *RedisWindowStore) Peek(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Decision, error) {
	reply, err := peekScript.Run(ctx, s.client,
		[]string{s.windowKey(key)},
		now.UnixMilli(), window.Milliseconds(), limit).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis peek: %w", err)
	}
	if len(reply) != 2 {
		return Decision{}, fmt.Errorf("redis peek: unexpected reply %v", reply)
	}

	remaining, err := asInt64(reply[0])
	if err != nil {
		return Decision{}, fmt.Errorf("redis peek: %w", err)
	}
	oldestMs, err := asInt64(reply[1])
	if err != nil {
		return Decision{}, fmt.Errorf("redis peek: %w", err)
	}

	resetAt := now
	if remaining < int64(limit) {
		resetAt = time.UnixMilli(oldestMs).Add(window)
	}
	return Decision{
		Allowed:   remaining > 0,
		Remaining: int(remaining),
		ResetAt:   resetAt,
	}, nil
}

// asInt64 reads a Lua script reply value. Counters arrive as int64,
// zset scores as strings.
func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("parse script reply %q: %w", n, err)
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("unexpected script reply type %T", v)
	}
}
