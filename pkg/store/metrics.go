package store

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationDuration tracks backend call latency by operation
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "restaurant_store_operation_duration_seconds",
			Help:    "Duration of record store operations in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"backend", "operation"},
	)

	// OperationErrors tracks backend failures by operation
	OperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restaurant_store_errors_total",
			Help: "Total number of record store operation errors",
		},
		[]string{"backend", "operation"}, // "get", "put", "update", "delete", "scan"
	)
)

// observe records duration and, for unexpected errors, an error count.
// ErrNotFound and ErrConflict are expected outcomes and not counted.
func observe(backend, operation string, start time.Time, err error) {
	OperationDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrConflict) {
		OperationErrors.WithLabelValues(backend, operation).Inc()
	}
}
