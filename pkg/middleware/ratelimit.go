package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/openwishlist/wishcore/pkg/ratelimit"
)

type rateLimitConfig struct {
	classifier Classifier
	global     *rate.Limiter
	logger     zerolog.Logger
}

// RateLimitOption configures the rate limit middleware.
type RateLimitOption func(*rateLimitConfig)

// WithClassifier overrides the endpoint classifier.
func WithClassifier(c Classifier) RateLimitOption {
	return func(cfg *rateLimitConfig) {
		cfg.classifier = c
	}
}

// WithGlobalLimit adds a token bucket ahead of the per-client windows.
// It caps total throughput so one deployment cannot be saturated by many
// distinct clients that are each within their own quota.
func WithGlobalLimit(perSecond float64, burst int) RateLimitOption {
	return func(cfg *rateLimitConfig) {
		cfg.global = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithRequestLogger sets the middleware logger.
func WithRequestLogger(logger zerolog.Logger) RateLimitOption {
	return func(cfg *rateLimitConfig) {
		cfg.logger = logger
	}
}

// RateLimit enforces per-client quotas. Every response carries the
// X-RateLimit headers; rejected requests get a 429 with Retry-After and
// a structured error body.
func RateLimit(limiter *ratelimit.Limiter, opts ...RateLimitOption) func(http.Handler) http.Handler {
	cfg := rateLimitConfig{
		classifier: DefaultClassifier,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.global != nil && !cfg.global.Allow() {
				cfg.logger.Warn().
					Str("path", r.URL.Path).
					Msg("global rate limit exceeded")
				w.Header().Set(ratelimit.HeaderRetryAfter, "1")
				WriteError(w, r, RateLimited("Rate limit exceeded - service is at capacity").
					WithDetails(map[string]any{"scope": "global"}))
				return
			}

			class := cfg.classifier(r)
			req := DescribeRequest(r)

			allowed := limiter.Allow(r.Context(), class, req)

			// Headers reflect the post-decision window state.
			headers := limiter.Headers(r.Context(), class, req)
			headers.Apply(w.Header())

			if !allowed {
				retryAfter := headers.RetryAfter(time.Now())
				w.Header().Set(ratelimit.HeaderRetryAfter, strconv.Itoa(retryAfter))
				WriteError(w, r, RateLimited("").WithDetails(map[string]any{
					"class":       string(class),
					"retry_after": retryAfter,
				}))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
