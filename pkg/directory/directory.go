// Package directory coordinates the record store and the cache for
// restaurant operations.
//
// Point operations follow a cache-aside protocol:
//
//   - Create: a cache hit is reported as a duplicate without consulting the
//     store; otherwise the store decides. The new record is written through.
//   - Get: a cache hit is returned as-is. A miss reads the store and does not
//     repopulate the cache.
//   - Delete: the cache entry is removed before the store record.
//   - Rate: read-modify-write against the store only, guarded by the previous
//     rating count, then written through.
//
// Cache writes and invalidations are best-effort: failures are logged and
// counted, never returned. Queries scan the store and never use the cache.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/Sternrassler/restaurant-directory/pkg/cache"
	"github.com/Sternrassler/restaurant-directory/pkg/logging"
	"github.com/Sternrassler/restaurant-directory/pkg/restaurant"
	"github.com/Sternrassler/restaurant-directory/pkg/store"
)

// Cache is the cache contract consumed by the directory. Get must return
// cache.ErrCacheMiss for absent keys.
type Cache interface {
	Get(ctx context.Context, name string) (*restaurant.Restaurant, error)
	Set(ctx context.Context, r restaurant.Restaurant) error
	Delete(ctx context.Context, name string) error
}

// Directory is the cache-aside coordinator and query service.
type Directory struct {
	store  store.Store
	cache  Cache
	config Config
	reads  singleflight.Group
	logger zerolog.Logger
}

// New creates a directory over st. c may be nil when cfg.UseCache is false.
func New(st store.Store, c Cache, cfg Config) (*Directory, error) {
	if st == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if cfg.UseCache && c == nil {
		return nil, fmt.Errorf("cache is required when use_cache is enabled")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Directory{
		store:  st,
		cache:  c,
		config: cfg,
		logger: log.With().Str("component", "directory").Logger(),
	}, nil
}

// UseCache reports whether the cache is consulted.
func (d *Directory) UseCache() bool {
	return d.config.UseCache
}

func (d *Directory) log(ctx context.Context) *zerolog.Logger {
	l := logging.FromContext(ctx, d.logger)
	return &l
}

// Create stores a new unrated restaurant.
// Returns restaurant.ErrDuplicate if the name is taken.
func (d *Directory) Create(ctx context.Context, name, cuisine, region string) error {
	start := time.Now()
	err := d.create(ctx, name, cuisine, region)
	observe("create", start, err)
	return err
}

func (d *Directory) create(ctx context.Context, name, cuisine, region string) error {
	r, err := restaurant.New(name, cuisine, region)
	if err != nil {
		return err
	}
	logger := d.log(ctx)

	if d.config.UseCache {
		_, err := d.cache.Get(ctx, name)
		switch {
		case err == nil:
			logger.Debug().Str("name", name).Bool("cache_hit", true).Msg("Create rejected by cache hit")
			return restaurant.ErrDuplicate
		case !errors.Is(err, cache.ErrCacheMiss):
			cacheFallbacksTotal.WithLabelValues("create").Inc()
			logger.Warn().Err(err).Str("name", name).Msg("Cache get failed, checking store")
		}
	}

	_, err = d.store.Get(ctx, name)
	switch {
	case err == nil:
		return restaurant.ErrDuplicate
	case !errors.Is(err, store.ErrNotFound):
		return restaurant.Backend("create", err)
	}

	if err := d.store.Put(ctx, r); err != nil {
		return restaurant.Backend("create", err)
	}
	d.settled(name)

	d.writeThrough(ctx, "create", r)
	return nil
}

// Get returns the view of the named restaurant.
// Returns restaurant.ErrNotFound if it does not exist.
func (d *Directory) Get(ctx context.Context, name string) (restaurant.View, error) {
	start := time.Now()
	v, err := d.get(ctx, name)
	observe("get", start, err)
	return v, err
}

func (d *Directory) get(ctx context.Context, name string) (restaurant.View, error) {
	logger := d.log(ctx)

	if d.config.UseCache {
		cached, err := d.cache.Get(ctx, name)
		switch {
		case err == nil:
			logger.Debug().Str("name", name).Bool("cache_hit", true).Msg("Served from cache")
			return cached.View(), nil
		case !errors.Is(err, cache.ErrCacheMiss):
			cacheFallbacksTotal.WithLabelValues("get").Inc()
			logger.Warn().Err(err).Str("name", name).Msg("Cache get failed, reading store")
		}
	}

	// Concurrent misses for one name share a single store read. The shared
	// read outlives any one caller's cancellation; each caller waits on its own.
	shared := context.WithoutCancel(ctx)
	flight := d.reads.DoChan(name, func() (any, error) {
		return d.store.Get(shared, name)
	})

	var res singleflight.Result
	select {
	case res = <-flight:
	case <-ctx.Done():
		return restaurant.View{}, restaurant.Backend("get", ctx.Err())
	}
	if res.Err != nil {
		if errors.Is(res.Err, store.ErrNotFound) {
			return restaurant.View{}, restaurant.ErrNotFound
		}
		return restaurant.View{}, restaurant.Backend("get", res.Err)
	}

	logger.Debug().Str("name", name).Bool("cache_hit", false).Bool("shared", res.Shared).Msg("Served from store")
	return res.Val.(restaurant.Restaurant).View(), nil
}

// settled detaches name from any store read still in flight, so reads
// issued after a completed write observe it.
func (d *Directory) settled(name string) {
	d.reads.Forget(name)
}

// Delete removes the named restaurant, invalidating the cache first.
// Returns restaurant.ErrNotFound if the store has no such record.
func (d *Directory) Delete(ctx context.Context, name string) error {
	start := time.Now()
	err := d.delete(ctx, name)
	observe("delete", start, err)
	return err
}

func (d *Directory) delete(ctx context.Context, name string) error {
	if d.config.UseCache {
		if err := d.cache.Delete(ctx, name); err != nil {
			cacheFallbacksTotal.WithLabelValues("delete").Inc()
			d.log(ctx).Warn().Err(err).Str("name", name).Msg("Cache invalidation failed")
		}
	}

	if err := d.store.Delete(ctx, name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return restaurant.ErrNotFound
		}
		return restaurant.Backend("delete", err)
	}
	d.settled(name)
	return nil
}

// Rate folds rating into the named restaurant's running mean.
// Returns restaurant.ErrNotFound if it does not exist.
func (d *Directory) Rate(ctx context.Context, name string, rating float64) error {
	start := time.Now()
	err := d.rate(ctx, name, rating)
	observe("rate", start, err)
	return err
}

func (d *Directory) rate(ctx context.Context, name string, rating float64) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", restaurant.ErrInvalid)
	}
	if err := restaurant.ValidateRating(rating); err != nil {
		return err
	}
	logger := d.log(ctx)

	for attempt := 1; ; attempt++ {
		// The store is the source of truth for the running count.
		current, err := d.store.Get(ctx, name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return restaurant.ErrNotFound
			}
			return restaurant.Backend("rate", err)
		}

		next := current.WithRating(rating)
		updated, err := d.store.UpdateRating(ctx, name, store.RatingUpdate{
			Rating:             next.Rating,
			NumRatings:         next.NumRatings,
			ExpectedNumRatings: current.NumRatings,
		})
		switch {
		case err == nil:
			d.settled(name)
			d.writeThrough(ctx, "rate", updated)
			return nil
		case errors.Is(err, store.ErrNotFound):
			return restaurant.ErrNotFound
		case errors.Is(err, store.ErrConflict):
			ratingConflictsTotal.Inc()
			if attempt >= d.config.MaxRateAttempts {
				logger.Warn().
					Str("name", name).
					Int("attempts", attempt).
					Msg("Rating update attempts exhausted")
				return restaurant.Backend("rate", fmt.Errorf("%w after %d attempts", store.ErrConflict, attempt))
			}
			logger.Debug().
				Str("name", name).
				Int("attempt", attempt).
				Msg("Rating update conflicted, retrying")
		default:
			return restaurant.Backend("rate", err)
		}
	}
}

// writeThrough mirrors r into the cache. Failures are logged, not returned:
// the durable write already succeeded.
func (d *Directory) writeThrough(ctx context.Context, operation string, r restaurant.Restaurant) {
	if !d.config.UseCache {
		return
	}
	if err := d.cache.Set(ctx, r); err != nil {
		cacheFallbacksTotal.WithLabelValues(operation).Inc()
		d.log(ctx).Warn().Err(err).Str("name", r.Name).Str("operation", operation).Msg("Cache write-through failed")
		return
	}
	d.log(ctx).Debug().Str("name", r.Name).Str("operation", operation).Msg("Cache written through")
}
