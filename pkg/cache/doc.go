// Package cache mirrors restaurant records in Redis.
//
// The cache holds full denormalized copies of restaurant records keyed by
// name. It is a mirror, not an LRU: entries carry no TTL and change only
// when the directory writes through (create, rate) or invalidates (delete).
// Filtered queries are never cached.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	// Write through after a durable write
//	if err := manager.Set(ctx, r); err != nil {
//		// best-effort: log and continue
//	}
//
//	// Point read
//	cached, err := manager.Get(ctx, "Pasta House")
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fall through to the record store
//	}
//
// # Keys
//
// Keys have the form namespace:name, e.g. "restaurant:Pasta House". Use
// NewManagerWithNamespace to isolate deployments that share a Redis.
//
// # Metrics
//
//   - restaurant_cache_hits_total{layer="redis"} - Cache hits
//   - restaurant_cache_misses_total - Cache misses
//   - restaurant_cache_writes_total - Write-through updates
//   - restaurant_cache_invalidations_total - Deletes
//   - restaurant_cache_errors_total{operation} - Cache operation errors
package cache
