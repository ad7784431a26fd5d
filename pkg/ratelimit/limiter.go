package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit decisions.
var (
	requestsAllowedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wishlist_ratelimit_allowed_total",
		Help: "Total number of requests allowed by the rate limiter",
	}, []string{"class"})

	requestsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wishlist_ratelimit_rejected_total",
		Help: "Total number of requests rejected by the rate limiter",
	}, []string{"class"})

	storeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wishlist_ratelimit_store_errors_total",
		Help: "Total number of window store failures (requests fail open)",
	})
)

// Standard rate limit header names.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Limiter makes allow/reject decisions per endpoint class and client.
type Limiter struct {
	store    WindowStore
	policies map[Class]Policy
	clock    clockwork.Clock
	logger   zerolog.Logger
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithPolicies replaces the whole quota table.
func WithPolicies(policies map[Class]Policy) LimiterOption {
	return func(l *Limiter) {
		l.policies = policies
	}
}

// WithPolicy overrides the quota for one class.
func WithPolicy(class Class, policy Policy) LimiterOption {
	return func(l *Limiter) {
		l.policies[class] = policy
	}
}

// WithClock injects the time source for window arithmetic.
func WithClock(clock clockwork.Clock) LimiterOption {
	return func(l *Limiter) {
		l.clock = clock
	}
}

// WithLogger sets the limiter logger.
func WithLogger(logger zerolog.Logger) LimiterOption {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// New creates a limiter over the given window store.
func New(store WindowStore, opts ...LimiterOption) (*Limiter, error) {
	if store == nil {
		panic("window store cannot be nil")
	}
	l := &Limiter{
		store:    store,
		policies: DefaultPolicies(),
		clock:    clockwork.NewRealClock(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := validatePolicies(l.policies); err != nil {
		return nil, err
	}
	return l, nil
}

// resolve maps a class to its policy. Unknown classes use the read
// policy and are normalized to it, so they cannot mint fresh quota
// buckets.
func (l *Limiter) resolve(class Class) (Class, Policy) {
	if p, ok := l.policies[class]; ok && class.Valid() {
		return class, p
	}
	return ClassRead, l.policies[ClassRead]
}

// Allow decides whether the request may proceed, consuming quota when
// it does. Unattributable requests are always allowed. When the window
// store fails, the limiter fails open: throttling protects capacity,
// and an unavailable store must not take the API down with it.
func (l *Limiter) Allow(ctx context.Context, class Class, req Request) bool {
	class, policy := l.resolve(class)

	if !req.Attributable() {
		l.logger.Debug().
			Str("endpoint_class", string(class)).
			Msg("request without client context, skipping rate limit")
		return true
	}

	fp := Fingerprint(class, req)
	decision, err := l.store.Consume(ctx, windowKey(class, fp), policy.Limit, policy.Window, l.clock.Now())
	if err != nil {
		storeErrorsTotal.Inc()
		l.logger.Error().Err(err).
			Str("endpoint_class", string(class)).
			Str("fingerprint", shortFingerprint(fp)).
			Msg("window store unavailable, failing open")
		return true
	}

	if !decision.Allowed {
		requestsRejectedTotal.WithLabelValues(string(class)).Inc()
		l.logger.Warn().
			Str("endpoint_class", string(class)).
			Str("fingerprint", shortFingerprint(fp)).
			Str("client_addr", req.ClientAddr).
			Str("user_agent", req.UserAgent).
			Str("path", req.Path).
			Str("method", req.Method).
			Time("reset_at", decision.ResetAt).
			Msg("rate limit exceeded")
		return false
	}

	requestsAllowedTotal.WithLabelValues(string(class)).Inc()
	l.logger.Debug().
		Str("endpoint_class", string(class)).
		Str("fingerprint", shortFingerprint(fp)).
		Int("remaining", decision.Remaining).
		Msg("request within rate limit")
	return true
}

// Remaining reports how many requests the client has left in the
// current window without consuming quota. Unattributable requests and
// store failures report the full limit.
func (l *Limiter) Remaining(ctx context.Context, class Class, req Request) int {
	class, policy := l.resolve(class)

	if !req.Attributable() {
		return policy.Limit
	}

	fp := Fingerprint(class, req)
	decision, err := l.store.Peek(ctx, windowKey(class, fp), policy.Limit, policy.Window, l.clock.Now())
	if err != nil {
		storeErrorsTotal.Inc()
		l.logger.Error().Err(err).
			Str("endpoint_class", string(class)).
			Msg("window store unavailable, reporting full quota")
		return policy.Limit
	}
	return decision.Remaining
}

// Headers is the rate limit response header set for one client and
// class.
type Headers struct {
	// Limit is the class quota.
	Limit int

	// Remaining is how many requests are left in the current window.
	Remaining int

	// Reset is the epoch second the current window clears.
	Reset int64
}

// Apply writes the three X-RateLimit headers.
func (h Headers) Apply(header http.Header) {
	header.Set(HeaderLimit, strconv.Itoa(h.Limit))
	header.Set(HeaderRemaining, strconv.Itoa(h.Remaining))
	header.Set(HeaderReset, strconv.FormatInt(h.Reset, 10))
}

// RetryAfter returns the whole seconds until the window clears, at
// least 1. Used for the Retry-After header on rejected requests.
func (h Headers) RetryAfter(now time.Time) int {
	secs := h.Reset - now.Unix()
	if secs < 1 {
		return 1
	}
	return int(secs)
}

// Headers reports the standard rate limit headers for the client's
// current window state, without consuming quota.
func (l *Limiter) Headers(ctx context.Context, class Class, req Request) Headers {
	class, policy := l.resolve(class)
	now := l.clock.Now()

	if !req.Attributable() {
		return Headers{Limit: policy.Limit, Remaining: policy.Limit, Reset: now.Unix()}
	}

	fp := Fingerprint(class, req)
	decision, err := l.store.Peek(ctx, windowKey(class, fp), policy.Limit, policy.Window, now)
	if err != nil {
		storeErrorsTotal.Inc()
		l.logger.Error().Err(err).
			Str("endpoint_class", string(class)).
			Msg("window store unavailable, reporting full quota")
		return Headers{Limit: policy.Limit, Remaining: policy.Limit, Reset: now.Unix()}
	}

	return Headers{
		Limit:     policy.Limit,
		Remaining: decision.Remaining,
		Reset:     decision.ResetAt.Unix(),
	}
}

// Policy returns the effective policy for a class, after unknown-class
// normalization.
func (l *Limiter) Policy(class Class) Policy {
	_, p := l.resolve(class)
	return p
}

func windowKey(class Class, fingerprint string) string {
	return string(class) + ":" + fingerprint
}
