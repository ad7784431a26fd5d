// Package kv provides the key-value storage layer for wishlist caching,
// with a Redis backend for shared deployments and an in-memory backend
// for single-process setups and tests. Entries carry tags so that whole
// groups of keys can be invalidated together.
package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the requested key does not exist or has expired
	ErrNotFound = errors.New("kv: entry not found")

	// ErrInvalidEntry indicates the stored entry is invalid or corrupted
	ErrInvalidEntry = errors.New("kv: invalid entry")
)

// Entry is a stored value together with its tag set and lifetime.
type Entry struct {
	// Value is the cached payload
	Value []byte `json:"value"`

	// Tags are the invalidation groups this entry belongs to
	Tags []string `json:"tags,omitempty"`

	// StoredAt is when the entry was written
	StoredAt time.Time `json:"stored_at"`

	// ExpiresAt is when the entry becomes stale
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired returns true if the entry is stale at the given time.
func (e *Entry) IsExpired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// TTL returns the remaining lifetime at the given time.
// Returns 0 if already expired.
func (e *Entry) TTL(now time.Time) time.Duration {
	ttl := e.ExpiresAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Store is the storage contract shared by the Redis and memory backends.
//
// Get returns ErrNotFound for missing or expired keys. Set overwrites any
// existing entry under the same key, replacing its tag memberships.
// DeleteByTag removes every live entry carrying the tag and reports how
// many were removed; DeleteAll flushes the whole namespace.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, value []byte, tags []string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByTag(ctx context.Context, tag string) (int, error)
	DeleteAll(ctx context.Context) (int, error)
	Close() error
}
