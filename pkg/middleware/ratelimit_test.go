package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openwishlist/wishcore/pkg/ratelimit"
)

func newTestLimiter(t *testing.T, opts ...ratelimit.LimiterOption) *ratelimit.Limiter {
	t.Helper()

	limiter, err := ratelimit.New(ratelimit.NewMemoryWindowStore(), opts...)
	if err != nil {
		t.Fatalf("ratelimit.New failed: %v", err)
	}
	return limiter
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(t *testing.T, handler http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	r := httptest.NewRequest(method, path, nil)
	r.RemoteAddr = "203.0.113.9:54021"
	r.Header.Set("User-Agent", "shop-app/2.1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	return rec
}

func TestRateLimit_SetsHeaders(t *testing.T) {
	limiter := newTestLimiter(t, ratelimit.WithPolicy(ratelimit.ClassRead, ratelimit.Policy{Limit: 5, Window: time.Hour}))
	handler := RateLimit(limiter)(okHandler())

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/wishlists")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get(ratelimit.HeaderLimit); got != "5" {
		t.Errorf("%s = %q, want \"5\"", ratelimit.HeaderLimit, got)
	}
	if got := rec.Header().Get(ratelimit.HeaderRemaining); got != "4" {
		t.Errorf("%s = %q, want \"4\"", ratelimit.HeaderRemaining, got)
	}
	if rec.Header().Get(ratelimit.HeaderReset) == "" {
		t.Errorf("%s header missing", ratelimit.HeaderReset)
	}
}

func TestRateLimit_RejectsOverQuota(t *testing.T) {
	limiter := newTestLimiter(t, ratelimit.WithPolicy(ratelimit.ClassWrite, ratelimit.Policy{Limit: 1, Window: time.Hour}))
	handler := RequestID(RateLimit(limiter)(okHandler()))

	if rec := doRequest(t, handler, http.MethodPost, "/api/v1/wishlists"); rec.Code != http.StatusOK {
		t.Fatalf("first write: status = %d, want 200", rec.Code)
	}

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/wishlists")

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second write: status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get(ratelimit.HeaderRemaining); got != "0" {
		t.Errorf("%s = %q, want \"0\"", ratelimit.HeaderRemaining, got)
	}
	if rec.Header().Get(ratelimit.HeaderRetryAfter) == "" {
		t.Error("Retry-After header missing")
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Error == nil {
		t.Fatal("response has no error envelope")
	}
	if resp.Error.Code != ErrRateLimitExceeded {
		t.Errorf("error code = %q, want %q", resp.Error.Code, ErrRateLimitExceeded)
	}
	if resp.Error.Details["class"] != "write" {
		t.Errorf("details.class = %v, want \"write\"", resp.Error.Details["class"])
	}
	if resp.Error.RequestID == "" {
		t.Error("error envelope should carry the request id")
	}
	if resp.Error.RequestID != rec.Header().Get(RequestIDHeader) {
		t.Error("envelope request id should match the response header")
	}
}

func TestRateLimit_GlobalBackstop(t *testing.T) {
	limiter := newTestLimiter(t)
	handler := RateLimit(limiter, WithGlobalLimit(0.001, 1))(okHandler())

	if rec := doRequest(t, handler, http.MethodGet, "/api/v1/wishlists"); rec.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want 200", rec.Code)
	}

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/wishlists")

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want 429", rec.Code)
	}
	if rec.Header().Get(ratelimit.HeaderRetryAfter) == "" {
		t.Error("Retry-After header missing")
	}

	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Error.Details["scope"] != "global" {
		t.Errorf("details.scope = %v, want \"global\"", resp.Error.Details["scope"])
	}
}

func TestRateLimit_CustomClassifier(t *testing.T) {
	limiter := newTestLimiter(t, ratelimit.WithPolicy(ratelimit.ClassAuth, ratelimit.Policy{Limit: 1, Window: time.Hour}))
	everythingIsAuth := func(*http.Request) ratelimit.Class { return ratelimit.ClassAuth }
	handler := RateLimit(limiter, WithClassifier(everythingIsAuth))(okHandler())

	if rec := doRequest(t, handler, http.MethodGet, "/api/v1/wishlists"); rec.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want 200", rec.Code)
	}
	if rec := doRequest(t, handler, http.MethodGet, "/api/v1/wishlists"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request: status = %d, want 429 under the auth policy", rec.Code)
	}
}

func TestRateLimit_ClassesSeparatedPerClient(t *testing.T) {
	limiter := newTestLimiter(t, ratelimit.WithPolicy(ratelimit.ClassWrite, ratelimit.Policy{Limit: 1, Window: time.Hour}))
	handler := RateLimit(limiter)(okHandler())

	if rec := doRequest(t, handler, http.MethodPost, "/api/v1/wishlists"); rec.Code != http.StatusOK {
		t.Fatalf("write: status = %d, want 200", rec.Code)
	}
	if rec := doRequest(t, handler, http.MethodPost, "/api/v1/wishlists"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second write: status = %d, want 429", rec.Code)
	}
	// Reads keep flowing while writes are exhausted.
	if rec := doRequest(t, handler, http.MethodGet, "/api/v1/wishlists"); rec.Code != http.StatusOK {
		t.Errorf("read: status = %d, want 200", rec.Code)
	}
}
