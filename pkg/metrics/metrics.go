// Package metrics provides the Prometheus registry and exposition handler for
// the restaurant directory. All metrics are defined in their respective packages
// (store, cache, directory, api, client) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects everything registered on Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the metrics gathered from g in the Prometheus text format.
// A nil g serves Gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = Gatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Store Metrics (pkg/store):
//   - restaurant_store_operation_duration_seconds{backend, operation} (Histogram): Store call latency
//   - restaurant_store_errors_total{backend, operation} (Counter): Failed store calls
//
// Cache Metrics (pkg/cache):
//   - restaurant_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - restaurant_cache_misses_total (Counter): Cache misses
//   - restaurant_cache_writes_total (Counter): Write-through updates
//   - restaurant_cache_invalidations_total (Counter): Keys removed on delete
//   - restaurant_cache_errors_total{operation} (Counter): Cache operation errors
//
// Directory Metrics (pkg/directory):
//   - restaurant_operations_total{operation, outcome} (Counter): Directory operations by outcome
//   - restaurant_operation_duration_seconds{operation} (Histogram): Directory operation latency
//   - restaurant_rating_conflicts_total (Counter): Rating updates lost to a concurrent writer
//   - restaurant_cache_fallbacks_total{operation} (Counter): Cache failures absorbed by the store path
//
// HTTP Metrics (pkg/api):
//   - restaurant_http_requests_total{route, status} (Counter): Requests by route pattern and status
//   - restaurant_http_request_duration_seconds{route} (Histogram): Handler latency
//
// Client Metrics (pkg/client):
//   - restaurant_client_requests_total{operation, status} (Counter): Requests sent by the API client
//   - restaurant_client_request_duration_seconds{operation} (Histogram): Round-trip latency
//   - restaurant_client_errors_total{class} (Counter): Errors by class (client, server, network)
//   - restaurant_client_retries_total{operation, error_class} (Counter): Repeated read requests
//   - restaurant_client_retry_backoff_seconds{operation, error_class} (Histogram): Wait before each repeated read
//   - restaurant_client_retry_exhausted_total{operation, error_class} (Counter): Reads that failed on every attempt
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(restaurant_cache_hits_total[5m])) /
//   (sum(rate(restaurant_cache_hits_total[5m])) + sum(rate(restaurant_cache_misses_total[5m])))
//
//   # Rating Contention
//   rate(restaurant_rating_conflicts_total[5m])
//
//   # Cache Outage Absorbed
//   sum by (operation) (rate(restaurant_cache_fallbacks_total[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, sum by (le, route) (rate(restaurant_http_request_duration_seconds_bucket[5m])))
