// Package logging configures zerolog for the restaurant directory.
package logging

import (
	"context"
	"errors"
	"fmt"
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

// ErrUnknownLevel is returned by ParseLevel for names outside the LogLevel set.
var ErrUnknownLevel = errors.New("unknown log level")

var zerologLevels = map[LogLevel]zerolog.Level{
	LevelDebug: zerolog.DebugLevel,
	LevelInfo:  zerolog.InfoLevel,
	LevelWarn:  zerolog.WarnLevel,
	LevelError: zerolog.ErrorLevel,
}

// ParseLevel validates a level name such as LOG_LEVEL. Matching ignores
// case, and "warning" is accepted for LevelWarn.
func ParseLevel(raw string) (LogLevel, error) {
	level := LogLevel(strings.ToLower(strings.TrimSpace(raw)))
	if level == "warning" {
		level = LevelWarn
	}
	if _, ok := zerologLevels[level]; !ok {
		return "", fmt.Errorf("%w %q (want debug, info, warn or error)", ErrUnknownLevel, raw)
	}
	return level, nil
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// Service, when set, is attached to every entry as "service".
	Service string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup installs the global zerolog logger and level. Unknown levels log at
// info; validate them with ParseLevel first.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(zerologLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()

	log.Logger = logger
	return logger
}

func zerologLevel(level LogLevel) zerolog.Level {
	if parsed, err := ParseLevel(string(level)); err == nil {
		return zerologLevels[parsed]
	}
	return zerolog.InfoLevel
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithContext returns a copy of ctx carrying logger.
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// FromContext returns the logger stored in ctx, or fallback when ctx has none.
func FromContext(ctx context.Context, fallback zerolog.Logger) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return fallback
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, write-through, invalidation)
//   - Record store calls on the miss path
//   - Rating conflict retries
//
// Info: Normal operation events
//   - Completed HTTP requests
//   - Server startup/shutdown
//   - Load test phase summaries
//
// Warn: Warning conditions that don't prevent operation
//   - Swallowed cache failures (write-through, invalidate, read fallback)
//   - Client retry attempts
//   - Rating updates that exhausted their attempts
//
// Error: Error conditions requiring attention
//   - Backend failures surfaced to clients
//   - Readiness check failures
//   - Configuration errors
//
// Context Fields:
//   - component: emitting package ("directory", "api", "loadtest", ...)
//   - request_id: X-Request-ID of the inbound request
//   - name: restaurant name
//   - operation: create, get, delete, rate, query
//   - cache_hit: Boolean indicating cache hit
//   - status: HTTP status code
//   - duration: Request duration
