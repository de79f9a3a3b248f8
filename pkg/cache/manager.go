package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/restaurant-directory/pkg/restaurant"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager mirrors restaurant records in Redis.
// Entries never expire; they are overwritten or deleted by the directory.
type Manager struct {
	redis     *redis.Client
	namespace string
}

// NewManager creates a new cache manager with Redis backend.
func NewManager(redisClient *redis.Client) *Manager {
	return NewManagerWithNamespace(redisClient, DefaultNamespace)
}

// NewManagerWithNamespace creates a cache manager whose keys use namespace.
func NewManagerWithNamespace(redisClient *redis.Client, namespace string) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis:     redisClient,
		namespace: namespace,
	}
}

func (m *Manager) key(name string) string {
	return CacheKey{Namespace: m.namespace, Name: name}.String()
}

// Get retrieves the cached record for name.
// Returns ErrCacheMiss if the key doesn't exist.
func (m *Manager) Get(ctx context.Context, name string) (*restaurant.Restaurant, error) {
	data, err := m.redis.Get(ctx, m.key(name)).Bytes()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var r restaurant.Restaurant
	if err := json.Unmarshal(data, &r); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	CacheHits.WithLabelValues("redis").Inc()
	return &r, nil
}

// Set stores r under its name without expiry, replacing any prior entry.
func (m *Manager) Set(ctx context.Context, r restaurant.Restaurant) error {
	if r.Name == "" {
		return fmt.Errorf("%w: empty restaurant name", ErrInvalidEntry)
	}

	data, err := json.Marshal(r)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, m.key(r.Name), data, 0).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheWrites.Inc()
	return nil
}

// Delete removes the cached record for name. Deleting a missing key is not an error.
func (m *Manager) Delete(ctx context.Context, name string) error {
	if err := m.redis.Del(ctx, m.key(name)).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	CacheInvalidations.Inc()
	return nil
}

// Ping checks the Redis connection.
func (m *Manager) Ping(ctx context.Context) error {
	return m.redis.Ping(ctx).Err()
}
