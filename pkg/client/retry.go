package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var (
	clientRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restaurant_client_retries_total",
		Help: "Read requests sent again after a retryable failure",
	}, []string{"operation", "error_class"})

	clientRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "restaurant_client_retry_backoff_seconds",
		Help:    "Wait before each repeated read request",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"operation", "error_class"})

	clientRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restaurant_client_retry_exhausted_total",
		Help: "Read requests that failed on every attempt",
	}, []string{"operation", "error_class"})
)

// RetryConfig bounds how read requests (point reads, queries, health) are
// repeated after server or network failures. Writes are never repeated.
type RetryConfig struct {
	// MaxAttempts counts the first request; 1 disables retries.
	MaxAttempts int

	// InitialBackoff is the wait after the first failure.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between attempts, before jitter.
	MaxBackoff time.Duration

	// BackoffMultiplier grows the wait after each failure.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// backoff returns the wait after the given failed attempt (1-based). jitter
// in [0, 1) spreads the nominal wait over ±20%.
func (c RetryConfig) backoff(attempt int, jitter float64) time.Duration {
	wait := float64(c.InitialBackoff)
	for i := 1; i < attempt; i++ {
		wait *= c.BackoffMultiplier
		if wait >= float64(c.MaxBackoff) {
			wait = float64(c.MaxBackoff)
			break
		}
	}
	return time.Duration(wait * (0.8 + jitter*0.4))
}

// retryRead runs read until it succeeds, fails with a non-retryable class,
// or uses up config.MaxAttempts.
func retryRead(ctx context.Context, config RetryConfig, operation string, read func() error) error {
	var (
		lastErr error
		class   ErrorClass
	)

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		lastErr = read()
		if lastErr == nil {
			if attempt > 1 {
				log.Info().
					Str("operation", operation).
					Int("attempt", attempt).
					Msg("Read succeeded after retry")
			}
			return nil
		}

		class = classifyError(lastErr)
		if !shouldRetry(class) {
			return lastErr
		}
		if attempt == config.MaxAttempts {
			break
		}

		wait := config.backoff(attempt, rand.Float64())
		clientRetriesTotal.WithLabelValues(operation, string(class)).Inc()
		clientRetryBackoffSeconds.WithLabelValues(operation, string(class)).Observe(wait.Seconds())

		log.Warn().
			Err(lastErr).
			Str("operation", operation).
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Restaurant API read failed, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}
	}

	clientRetryExhaustedTotal.WithLabelValues(operation, string(class)).Inc()
	log.Warn().
		Str("operation", operation).
		Str("error_class", string(class)).
		Int("max_attempts", config.MaxAttempts).
		Msg("Restaurant API read failed on every attempt")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, config.MaxAttempts, lastErr)
}
