// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Service is stamped on every log line when set, so aggregated logs
	// from several deployments stay attributable.
	Service string

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it. Loggers
// created through NewLogger afterwards inherit this configuration.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	builder := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		builder = builder.Str("service", cfg.Service)
	}
	logger := builder.Logger()

	log.Logger = logger
	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, key, bucket, TTL)
//   - Rate limit decisions within quota
//   - Requests skipped by the limiter (no client context)
//
// Info: Normal operation events
//   - Cache warmed, cache cleared
//   - TTL policy changes
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Rate limit exceeded (request rejected)
//   - Cache store read failures (degraded to compute)
//   - Cache store write failures (entry not stored)
//
// Error: Error conditions requiring attention
//   - Window store unavailability (limiter failing open)
//   - Cache flush failures
//   - Configuration errors
//
// Context Fields:
//   - key: Cache key
//   - bucket: TTL bucket name
//   - tag: Invalidation tag
//   - ttl: Cache entry TTL
//   - hit_rate: Cache hit rate at time of logging
//   - endpoint_class: Rate limit endpoint class
//   - fingerprint: Truncated client fingerprint (never raw address data)
//   - remaining: Requests left in the current window
//   - reset_at: When the current window clears
