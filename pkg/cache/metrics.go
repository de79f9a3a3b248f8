package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer (redis)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restaurant_cache_hits_total",
			Help: "Total number of restaurant cache hits",
		},
		[]string{"layer"}, // "redis"
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "restaurant_cache_misses_total",
			Help: "Total number of restaurant cache misses",
		},
	)

	// CacheWrites tracks successful write-through updates
	CacheWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "restaurant_cache_writes_total",
			Help: "Total number of restaurant records written to cache",
		},
	)

	// CacheInvalidations tracks successful deletes
	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "restaurant_cache_invalidations_total",
			Help: "Total number of restaurant cache invalidations",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restaurant_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
