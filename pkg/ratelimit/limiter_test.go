package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// downStore always fails, for exercising fail-open behavior.
type downStore struct{}

func (downStore) Consume(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Decision, error) {
	return Decision{}, errors.New("connection refused")
}

func (downStore) Peek(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Decision, error) {
	return Decision{}, errors.New("connection refused")
}

func newTestLimiter(t *testing.T, opts ...LimiterOption) (*Limiter, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	opts = append([]LimiterOption{WithClock(clock)}, opts...)
	limiter, err := New(NewMemoryWindowStore(), opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return limiter, clock
}

func clientRequest() Request {
	return Request{
		ClientAddr: "203.0.113.9",
		UserAgent:  "shop-app/2.1",
		Path:       "/api/v1/wishlists/1",
		Method:     http.MethodPost,
	}
}

func TestLimiter_AllowUpToQuota(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()
	req := clientRequest()

	for i := 0; i < 50; i++ {
		if !limiter.Allow(ctx, ClassWrite, req) {
			t.Fatalf("Write %d of 50 should be allowed", i+1)
		}
	}
	if limiter.Allow(ctx, ClassWrite, req) {
		t.Error("Write 51 should be rejected")
	}
	if got := limiter.Remaining(ctx, ClassWrite, req); got != 0 {
		t.Errorf("Remaining = %d, want 0", got)
	}
}

func TestLimiter_QuotaFreesAfterWindow(t *testing.T) {
	limiter, clock := newTestLimiter(t)
	ctx := context.Background()
	req := clientRequest()

	for i := 0; i < 20; i++ {
		if !limiter.Allow(ctx, ClassAuth, req) {
			t.Fatalf("Auth attempt %d of 20 should be allowed", i+1)
		}
	}
	if limiter.Allow(ctx, ClassAuth, req) {
		t.Error("Auth attempt 21 should be rejected")
	}

	clock.Advance(15*time.Minute + time.Second)

	if !limiter.Allow(ctx, ClassAuth, req) {
		t.Error("Auth attempt should be allowed after the window cleared")
	}
}

func TestLimiter_ClassesAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()
	req := clientRequest()

	for i := 0; i < 10; i++ {
		if !limiter.Allow(ctx, ClassBulk, req) {
			t.Fatalf("Bulk %d of 10 should be allowed", i+1)
		}
	}
	if limiter.Allow(ctx, ClassBulk, req) {
		t.Error("Bulk 11 should be rejected")
	}

	// The same client still has read quota.
	if !limiter.Allow(ctx, ClassRead, req) {
		t.Error("Read should be unaffected by exhausted bulk quota")
	}
}

func TestLimiter_ClientsAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	first := clientRequest()
	second := clientRequest()
	second.ClientAddr = "203.0.113.10"

	for i := 0; i < 10; i++ {
		if !limiter.Allow(ctx, ClassBulk, first) {
			t.Fatalf("Bulk %d of 10 should be allowed", i+1)
		}
	}
	if limiter.Allow(ctx, ClassBulk, first) {
		t.Error("First client over quota should be rejected")
	}
	if !limiter.Allow(ctx, ClassBulk, second) {
		t.Error("Second client must have their own quota")
	}
}

func TestLimiter_UnknownClassUsesReadPolicy(t *testing.T) {
	limiter, _ := newTestLimiter(t, WithPolicy(ClassRead, Policy{Limit: 3, Window: time.Hour}))
	ctx := context.Background()
	req := clientRequest()

	// Unknown classes normalize to read and share one bucket, so they
	// cannot mint fresh quota.
	if !limiter.Allow(ctx, Class("frontend"), req) {
		t.Error("First request should be allowed")
	}
	if !limiter.Allow(ctx, Class("backend"), req) {
		t.Error("Second request should be allowed")
	}
	if !limiter.Allow(ctx, ClassRead, req) {
		t.Error("Third request should be allowed")
	}
	if limiter.Allow(ctx, Class("whatever"), req) {
		t.Error("Fourth request should be rejected: unknown classes share the read bucket")
	}
}

func TestLimiter_UnattributableAlwaysAllowed(t *testing.T) {
	limiter, _ := newTestLimiter(t, WithPolicy(ClassWrite, Policy{Limit: 1, Window: time.Hour}))
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		if !limiter.Allow(ctx, ClassWrite, Request{}) {
			t.Fatal("Requests without client context must never be limited")
		}
	}
	if got := limiter.Remaining(ctx, ClassWrite, Request{}); got != 1 {
		t.Errorf("Remaining = %d, want full limit for unattributable requests", got)
	}
}

func TestLimiter_FailsOpenOnStoreError(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	limiter, err := New(downStore{}, WithClock(clock))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()
	req := clientRequest()

	for i := 0; i < 100; i++ {
		if !limiter.Allow(ctx, ClassAuth, req) {
			t.Fatal("Requests must be allowed while the store is down")
		}
	}
	if got := limiter.Remaining(ctx, ClassAuth, req); got != 20 {
		t.Errorf("Remaining = %d, want full limit while the store is down", got)
	}

	headers := limiter.Headers(ctx, ClassAuth, req)
	if headers.Remaining != 20 || headers.Limit != 20 {
		t.Errorf("Headers = %+v, want full quota while the store is down", headers)
	}
}

func TestLimiter_RemainingDoesNotConsume(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()
	req := clientRequest()

	limiter.Allow(ctx, ClassWrite, req)

	for i := 0; i < 10; i++ {
		if got := limiter.Remaining(ctx, ClassWrite, req); got != 49 {
			t.Fatalf("Remaining = %d, want 49 on every call", got)
		}
	}
}

func TestLimiter_Headers(t *testing.T) {
	limiter, clock := newTestLimiter(t)
	ctx := context.Background()
	req := clientRequest()

	start := clock.Now()
	for i := 0; i < 3; i++ {
		limiter.Allow(ctx, ClassAuth, req)
	}

	h := limiter.Headers(ctx, ClassAuth, req)
	if h.Limit != 20 {
		t.Errorf("Limit = %d, want 20", h.Limit)
	}
	if h.Remaining != 17 {
		t.Errorf("Remaining = %d, want 17", h.Remaining)
	}
	if want := start.Add(15 * time.Minute).Unix(); h.Reset != want {
		t.Errorf("Reset = %d, want %d", h.Reset, want)
	}

	rec := http.Header{}
	h.Apply(rec)
	if got := rec.Get(HeaderLimit); got != "20" {
		t.Errorf("%s = %q, want \"20\"", HeaderLimit, got)
	}
	if got := rec.Get(HeaderRemaining); got != "17" {
		t.Errorf("%s = %q, want \"17\"", HeaderRemaining, got)
	}
	if rec.Get(HeaderReset) == "" {
		t.Errorf("%s header missing", HeaderReset)
	}
}

func TestHeaders_RetryAfter(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		reset int64
		want  int
	}{
		{"five minutes out", now.Add(5 * time.Minute).Unix(), 300},
		{"already passed", now.Add(-time.Minute).Unix(), 1},
		{"right now", now.Unix(), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Headers{Reset: tt.reset}
			if got := h.RetryAfter(now); got != tt.want {
				t.Errorf("RetryAfter = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNew_RejectsInvalidPolicies(t *testing.T) {
	_, err := New(NewMemoryWindowStore(), WithPolicies(map[Class]Policy{
		ClassWrite: {Limit: 50, Window: time.Hour},
	}))
	if err == nil {
		t.Error("New should reject a policy table without the read class")
	}

	_, err = New(NewMemoryWindowStore(), WithPolicy(ClassRead, Policy{Limit: -1, Window: time.Hour}))
	if err == nil {
		t.Error("New should reject non-positive limits")
	}
}
