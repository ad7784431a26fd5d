// Package origin provides the HTTP client for the upstream wishlist
// backend. Cache misses are computed through it: the gateway fetches the
// JSON payload here, stores it, and serves it until invalidation or
// expiry. Transient upstream failures are retried with exponential
// backoff; client errors are surfaced immediately.
package origin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for origin requests.
var (
	originRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wishlist_origin_requests_total",
		Help: "Total origin requests by endpoint and status",
	}, []string{"endpoint", "status"})

	originRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wishlist_origin_request_duration_seconds",
		Help:    "Origin request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	originErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wishlist_origin_errors_total",
		Help: "Total origin errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of origin failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses from the origin.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// maxBodyBytes bounds origin payloads so a misbehaving upstream cannot
// balloon cache entries.
const maxBodyBytes = 4 << 20

// Config holds the origin client configuration.
type Config struct {
	// BaseURL of the upstream wishlist backend.
	BaseURL string

	// Timeout per HTTP round trip.
	Timeout time.Duration

	// UserAgent sent with every request.
	UserAgent string

	// Retry behavior; a zero value takes DefaultRetryConfig.
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		Timeout:   10 * time.Second,
		UserAgent: "wishcore-gateway/1.0",
		Retry:     DefaultRetryConfig(),
	}
}

// Client fetches wishlist payloads from the upstream backend.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates an origin client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("origin base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logger,
	}, nil
}

// FetchJSON retrieves one JSON document from the origin. Server and
// network failures are retried; 4xx responses return an *Error without
// retrying, with 404 unwrapping to ErrNotFound.
func (c *Client) FetchJSON(ctx context.Context, endpoint string) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		originRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	var body []byte
	err := retryWithBackoff(ctx, c.config.Retry, c.logger, func() error {
		b, fetchErr := c.fetchOnce(ctx, endpoint)
		if fetchErr != nil {
			return fetchErr
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Send forwards a mutation to the origin. Mutations are not assumed
// idempotent, so there is exactly one attempt. The origin's status code
// is returned alongside the body so callers can relay it.
func (c *Client) Send(ctx context.Context, method, endpoint string, payload []byte) ([]byte, int, error) {
	startTime := time.Now()
	defer func() {
		originRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	return c.roundTrip(ctx, method, endpoint, payload)
}

// fetchOnce performs a single GET round trip.
func (c *Client) fetchOnce(ctx context.Context, endpoint string) ([]byte, error) {
	body, _, err := c.roundTrip(ctx, http.MethodGet, endpoint, nil)
	return body, err
}

// roundTrip performs one HTTP exchange and classifies any failure.
func (c *Client) roundTrip(ctx context.Context, method, endpoint string, payload []byte) ([]byte, int, error) {
	var body io.Reader
	if len(payload) > 0 {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+endpoint, body)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if len(payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("origin request failed")
		originErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		originRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, 0, &Error{
			ErrorClass: ErrorClassNetwork,
			Message:    "origin unreachable",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	originRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		class := classifyStatus(resp.StatusCode)
		originErrorsTotal.WithLabelValues(string(class)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("origin request error")

		originErr := &Error{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    resp.Status,
		}
		if resp.StatusCode == http.StatusNotFound {
			originErr.Err = ErrNotFound
		}
		return nil, resp.StatusCode, originErr
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		originErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, resp.StatusCode, &Error{
			ErrorClass: ErrorClassNetwork,
			Message:    "read origin response",
			Err:        err,
		}
	}
	return respBody, resp.StatusCode, nil
}

// classifyStatus categorizes an HTTP status for observability and retry
// handling.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
