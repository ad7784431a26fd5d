package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of consulting a rate limit window.
type Decision struct {
	// Allowed is whether the request fits the quota. For Peek it means
	// a request made now would fit.
	Allowed bool

	// Remaining is how many further requests fit in the current window.
	Remaining int

	// ResetAt is when the current window clears: the moment the oldest
	// counted request ages out.
	ResetAt time.Time
}

// WindowStore records request timestamps per key and answers quota
// questions over a trailing window.
//
// Consume atomically checks the quota and, only when the request fits,
// records it. Peek answers without recording; calling it any number of
// times never changes a later Consume.
type WindowStore interface {
	Consume(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Decision, error)
	Peek(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Decision, error)
}

// memorySweepEvery is how many Consume calls pass between sweeps of
// idle keys in the memory store.
const memorySweepEvery = 512

// MemoryWindowStore keeps sliding windows in process memory. Suitable
// for single-instance deployments and tests; quotas are per process.
type MemoryWindowStore struct {
	mu       sync.Mutex
	windows  map[string][]time.Time
	consumes int

	// maxWindow is the longest window any consume has used. Sweeping
	// with it cannot drop timestamps another class still counts.
	maxWindow time.Duration
}

// NewMemoryWindowStore creates an empty in-memory window store.
func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{
		windows: make(map[string][]time.Time),
	}
}

// Consume implements WindowStore.
func (s *MemoryWindowStore) Consume(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if window > s.maxWindow {
		s.maxWindow = window
	}

	times := prune(s.windows[key], now.Add(-window))

	if len(times) >= limit {
		s.windows[key] = times
		return Decision{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   times[0].Add(window),
		}, nil
	}

	times = append(times, now)
	s.windows[key] = times

	s.consumes++
	if s.consumes%memorySweepEvery == 0 {
		s.sweepLocked(now.Add(-s.maxWindow))
	}

	return Decision{
		Allowed:   true,
		Remaining: limit - len(times),
		ResetAt:   times[0].Add(window),
	}, nil
}

// Peek implements WindowStore.
func (s *MemoryWindowStore) Peek(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	times := prune(s.windows[key], now.Add(-window))

	remaining := limit - len(times)
	if remaining < 0 {
		remaining = 0
	}
	resetAt := now
	if len(times) > 0 {
		resetAt = times[0].Add(window)
	}
	return Decision{
		Allowed:   remaining > 0,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// prune drops timestamps at or before the cutoff. Input slices are
// sorted by insertion time, so the first kept index is a prefix cut.
func prune(times []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(times) && !times[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return times
	}
	return append([]time.Time(nil), times[idx:]...)
}

// sweepLocked drops keys whose every timestamp has aged out, so idle
// fingerprints do not accumulate.
func (s *MemoryWindowStore) sweepLocked(cutoff time.Time) {
	for key, times := range s.windows {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(s.windows, key)
		}
	}
}
