// Package config loads gateway configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/openwishlist/wishcore/pkg/cache"
	"github.com/openwishlist/wishcore/pkg/logging"
	"github.com/openwishlist/wishcore/pkg/ratelimit"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Store     StoreConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Origin    OriginConfig
	Log       LogConfig
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"wishcore-gateway"`
	Environment string `envconfig:"APP_ENV" default:"development"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// StoreConfig selects and configures the shared storage backend.
type StoreConfig struct {
	// Backend is "redis" or "memory". Memory keeps cache entries and
	// rate limit windows process-local, for development and tests.
	Backend   string `envconfig:"STORE_BACKEND" default:"redis"`
	Namespace string `envconfig:"STORE_NAMESPACE" default:"wishlist"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// CacheConfig holds the TTL bucket durations.
type CacheConfig struct {
	DefaultTTL         time.Duration `envconfig:"CACHE_DEFAULT_TTL" default:"1h"`
	CustomerTTL        time.Duration `envconfig:"CACHE_CUSTOMER_TTL" default:"30m"`
	WishlistTTL        time.Duration `envconfig:"CACHE_WISHLIST_TTL" default:"1h"`
	DefaultWishlistTTL time.Duration `envconfig:"CACHE_DEFAULT_WISHLIST_TTL" default:"2h"`
}

// RateLimitConfig holds the per-class quotas and the optional global
// backstop.
type RateLimitConfig struct {
	ReadLimit       int           `envconfig:"RATELIMIT_READ_LIMIT" default:"200"`
	ReadWindow      time.Duration `envconfig:"RATELIMIT_READ_WINDOW" default:"1h"`
	WriteLimit      int           `envconfig:"RATELIMIT_WRITE_LIMIT" default:"50"`
	WriteWindow     time.Duration `envconfig:"RATELIMIT_WRITE_WINDOW" default:"1h"`
	BulkLimit       int           `envconfig:"RATELIMIT_BULK_LIMIT" default:"10"`
	BulkWindow      time.Duration `envconfig:"RATELIMIT_BULK_WINDOW" default:"1h"`
	AnalyticsLimit  int           `envconfig:"RATELIMIT_ANALYTICS_LIMIT" default:"100"`
	AnalyticsWindow time.Duration `envconfig:"RATELIMIT_ANALYTICS_WINDOW" default:"1h"`
	AuthLimit       int           `envconfig:"RATELIMIT_AUTH_LIMIT" default:"20"`
	AuthWindow      time.Duration `envconfig:"RATELIMIT_AUTH_WINDOW" default:"15m"`

	// GlobalPerSecond caps total gateway throughput; 0 disables the
	// backstop.
	GlobalPerSecond float64 `envconfig:"RATELIMIT_GLOBAL_PER_SECOND" default:"0"`
	GlobalBurst     int     `envconfig:"RATELIMIT_GLOBAL_BURST" default:"0"`
}

// OriginConfig points at the upstream wishlist backend that cache misses
// are computed from.
type OriginConfig struct {
	BaseURL string        `envconfig:"ORIGIN_BASE_URL" default:""`
	Timeout time.Duration `envconfig:"ORIGIN_TIMEOUT" default:"10s"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (s *StoreConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", s.RedisHost, s.RedisPort)
}

// UseRedis reports whether the redis backend is selected.
func (s *StoreConfig) UseRedis() bool {
	return s.Backend == "redis"
}

// TTLPolicy converts the cache settings into the service's bucket policy.
func (c *CacheConfig) TTLPolicy() cache.TTLPolicy {
	return cache.TTLPolicy{
		Default:         c.DefaultTTL,
		Customer:        c.CustomerTTL,
		Wishlist:        c.WishlistTTL,
		DefaultWishlist: c.DefaultWishlistTTL,
	}
}

// Policies converts the rate limit settings into the limiter's quota
// table.
func (r *RateLimitConfig) Policies() map[ratelimit.Class]ratelimit.Policy {
	return map[ratelimit.Class]ratelimit.Policy{
		ratelimit.ClassRead:      {Limit: r.ReadLimit, Window: r.ReadWindow},
		ratelimit.ClassWrite:     {Limit: r.WriteLimit, Window: r.WriteWindow},
		ratelimit.ClassBulk:      {Limit: r.BulkLimit, Window: r.BulkWindow},
		ratelimit.ClassAnalytics: {Limit: r.AnalyticsLimit, Window: r.AnalyticsWindow},
		ratelimit.ClassAuth:      {Limit: r.AuthLimit, Window: r.AuthWindow},
	}
}

// GlobalEnabled reports whether the global backstop is configured.
func (r *RateLimitConfig) GlobalEnabled() bool {
	return r.GlobalPerSecond > 0
}

// Logging converts the log settings for pkg/logging. The service name
// is stamped on every log line.
func (l *LogConfig) Logging(service string) logging.Config {
	return logging.Config{
		Level:   logging.LogLevel(l.Level),
		Pretty:  l.Pretty,
		Service: service,
		Output:  os.Stderr,
	}
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
