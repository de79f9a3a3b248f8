package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/restaurant-directory/pkg/api"
	"github.com/Sternrassler/restaurant-directory/pkg/cache"
	"github.com/Sternrassler/restaurant-directory/pkg/directory"
	"github.com/Sternrassler/restaurant-directory/pkg/logging"
	"github.com/Sternrassler/restaurant-directory/pkg/store"
)

func main() {
	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Setup(logging.Config{
		Level:   logging.LogLevel(cfg.LogLevel),
		Pretty:  cfg.LogPretty,
		Output:  os.Stderr,
		Service: "restaurant-api",
	})
	logger := logging.NewLogger("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// app is the wired service and the resources it owns.
type app struct {
	handler http.Handler
	closers []func() error
}

func (a *app) close(logger zerolog.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn().Err(err).Msg("Failed to release resource")
		}
	}
}

// build opens the store and cache and wires the directory behind the API.
func build(ctx context.Context, cfg Config, logger zerolog.Logger) (*app, error) {
	a := &app{}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st.Close)
	logger.Info().Str("backend", cfg.StoreBackend).Str("path", cfg.DBPath).Msg("Record store opened")

	checks := map[string]api.Pinger{"store": st}

	// A nil interface, not a nil *cache.Manager, when caching is off.
	var c directory.Cache
	if cfg.UseCache {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisURL,
		})
		a.closers = append(a.closers, redisClient.Close)

		// The cache is best-effort, so an unreachable Redis does not stop startup.
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("redis_url", cfg.RedisURL).Msg("Redis not reachable, continuing with store fallback")
		} else {
			logger.Info().Str("redis_url", cfg.RedisURL).Msg("Connected to Redis")
		}

		manager := cache.NewManager(redisClient)
		c = manager
		checks["cache"] = manager
	}

	d, err := directory.New(st, c, cfg.directory())
	if err != nil {
		a.close(logger)
		return nil, fmt.Errorf("create directory: %w", err)
	}

	srv := api.New(d, api.Config{
		Info: api.Info{
			RedisURL:     cfg.RedisURL,
			TableName:    tableName,
			StoreBackend: cfg.StoreBackend,
			UseCache:     cfg.UseCache,
		},
		Checks: checks,
	})
	a.handler = srv.Handler()
	return a, nil
}

func openStore(ctx context.Context, cfg Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case backendMemory:
		return store.NewMemory(), nil
	case backendSQLite:
		st, err := store.NewSQLite(ctx, store.DefaultSQLiteConfig(cfg.DBPath))
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg Config, logger zerolog.Logger) error {
	a, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close(logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", server.Addr).
			Bool("use_cache", cfg.UseCache).
			Msg("Starting restaurant API server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
