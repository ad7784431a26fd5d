package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a test Redis client for testing.
// Unit tests connect to a local Redis and skip when none is running;
// tests/integration covers the same paths against testcontainers.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewRedisStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStore should panic with nil redis client")
		}
	}()
	NewRedisStore(nil)
}

func TestRedisStore_SetAndGet(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	value := []byte(`{"id":"wl-1","items":3}`)
	tags := []string{"wishlist_wl-1", "customer_c1"}
	if err := store.Set(ctx, "wishlist_wl-1", value, tags, time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	entry, err := store.Get(ctx, "wishlist_wl-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(entry.Value) != string(value) {
		t.Errorf("Value mismatch: got %s, want %s", entry.Value, value)
	}
	if len(entry.Tags) != 2 {
		t.Errorf("Tags mismatch: got %v, want %v", entry.Tags, tags)
	}
	if entry.ExpiresAt.Sub(entry.StoredAt) != time.Hour {
		t.Errorf("Lifetime mismatch: got %v, want 1h", entry.ExpiresAt.Sub(entry.StoredAt))
	}
}

func TestRedisStore_Get_NotFound(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client)

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRedisStore_Get_InvalidEntry(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	if err := client.Set(ctx, store.entryKey("broken"), "not json", time.Minute).Err(); err != nil {
		t.Fatalf("raw set failed: %v", err)
	}

	_, err := store.Get(ctx, "broken")
	if !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Expected ErrInvalidEntry, got %v", err)
	}
}

func TestRedisStore_Get_ExpiredEntry(t *testing.T) {
	client := setupTestRedis(t)
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := NewRedisStore(client, WithClock(clock))
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("x"), nil, 30*time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	clock.Advance(31 * time.Minute)

	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after expiry, got %v", err)
	}
	// The expired entry is removed eagerly, not just on the Redis TTL.
	if err := client.Get(ctx, store.entryKey("k")).Err(); err != redis.Nil {
		t.Errorf("Expired entry should be deleted from Redis, got %v", err)
	}
}

func TestRedisStore_Set_NonPositiveTTL(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("x"), nil, 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Entry with zero TTL should not be stored, got %v", err)
	}
}

func TestRedisStore_Delete(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("x"), nil, time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after Delete, got %v", err)
	}
}

func TestRedisStore_DeleteByTag(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	seed := map[string][]string{
		"wishlist_a":          {"wishlist_a"},
		"customer_c1":         {"customer_c1"},
		"default_wishlist_c1": {"customer_c1"},
	}
	for key, tags := range seed {
		if err := store.Set(ctx, key, []byte(key), tags, time.Hour); err != nil {
			t.Fatalf("Set %s failed: %v", key, err)
		}
	}

	removed, err := store.DeleteByTag(ctx, "customer_c1")
	if err != nil {
		t.Fatalf("DeleteByTag failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("DeleteByTag removed %d entries, want 2", removed)
	}

	for _, key := range []string{"customer_c1", "default_wishlist_c1"} {
		if _, err := store.Get(ctx, key); !errors.Is(err, ErrNotFound) {
			t.Errorf("Key %s should be gone, got %v", key, err)
		}
	}
	if _, err := store.Get(ctx, "wishlist_a"); err != nil {
		t.Errorf("Key wishlist_a should survive, got %v", err)
	}

	// The tag set itself is cleaned up.
	n, err := client.Exists(ctx, store.tagKey("customer_c1")).Result()
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if n != 0 {
		t.Error("Tag set should be deleted after DeleteByTag")
	}
}

func TestRedisStore_DeleteByTag_UnknownTag(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client)

	removed, err := store.DeleteByTag(context.Background(), "nope")
	if err != nil {
		t.Fatalf("DeleteByTag failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("DeleteByTag removed %d entries, want 0", removed)
	}
}

func TestRedisStore_DeleteAll(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		if err := store.Set(ctx, key, []byte(key), []string{"t"}, time.Hour); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	removed, err := store.DeleteAll(ctx)
	if err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("DeleteAll removed %d entries, want 3", removed)
	}

	keys, err := client.Keys(ctx, DefaultNamespace+":*").Result()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Namespace should be empty after DeleteAll, found %v", keys)
	}
}

func TestRedisStore_NamespaceIsolation(t *testing.T) {
	client := setupTestRedis(t)
	first := NewRedisStore(client, WithNamespace("svc-a"))
	second := NewRedisStore(client, WithNamespace("svc-b"))
	ctx := context.Background()

	if err := first.Set(ctx, "k", []byte("a"), nil, time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := second.Set(ctx, "k", []byte("b"), nil, time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := first.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}

	if _, err := first.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("svc-a entry should be gone, got %v", err)
	}
	entry, err := second.Get(ctx, "k")
	if err != nil {
		t.Fatalf("svc-b entry should survive: %v", err)
	}
	if string(entry.Value) != "b" {
		t.Errorf("svc-b value mismatch: got %s", entry.Value)
	}
}
