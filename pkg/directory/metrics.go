package directory

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/restaurant-directory/pkg/restaurant"
)

// Prometheus metrics for directory operations.
var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restaurant_operations_total",
		Help: "Total directory operations by operation and outcome",
	}, []string{"operation", "outcome"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "restaurant_operation_duration_seconds",
		Help:    "Directory operation duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"operation"})

	ratingConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restaurant_rating_conflicts_total",
		Help: "Total conditional rating updates rejected by a concurrent write",
	})

	cacheFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restaurant_cache_fallbacks_total",
		Help: "Cache failures swallowed by the directory, by operation",
	}, []string{"operation"})
)

// outcome classifies an operation result for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, restaurant.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, restaurant.ErrNotFound):
		return "not_found"
	case errors.Is(err, restaurant.ErrInvalid):
		return "invalid"
	default:
		return "backend_error"
	}
}

func observe(operation string, start time.Time, err error) {
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	operationsTotal.WithLabelValues(operation, outcome(err)).Inc()
}
