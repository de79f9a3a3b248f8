package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Sternrassler/restaurant-directory/pkg/directory"
	"github.com/Sternrassler/restaurant-directory/pkg/logging"
)

// Store backends selectable with STORE_BACKEND.
const (
	backendSQLite = "sqlite"
	backendMemory = "memory"
)

// tableName is the SQLite table holding restaurant records.
const tableName = "restaurants"

// Config is the process configuration read from the environment.
type Config struct {
	Port            string
	RedisURL        string
	UseCache        bool
	StoreBackend    string
	DBPath          string
	LogLevel        string
	LogPretty       bool
	RateMaxAttempts int
	ShutdownTimeout time.Duration
}

// loadConfig reads the configuration through getenv.
func loadConfig(getenv func(string) string) (Config, error) {
	env := func(key, defaultValue string) string {
		if value := getenv(key); value != "" {
			return value
		}
		return defaultValue
	}

	cfg := Config{
		Port:         env("PORT", "80"),
		RedisURL:     env("REDIS_URL", "localhost:6379"),
		UseCache:     getenv("USE_CACHE") == "true",
		StoreBackend: env("STORE_BACKEND", backendSQLite),
		DBPath:       env("DB_PATH", "restaurants.db"),
	}

	level, err := logging.ParseLevel(env("LOG_LEVEL", string(logging.LevelInfo)))
	if err != nil {
		return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = string(level)

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return Config{}, fmt.Errorf("invalid PORT %q: %w", cfg.Port, err)
	}

	switch cfg.StoreBackend {
	case backendSQLite, backendMemory:
	default:
		return Config{}, fmt.Errorf("invalid STORE_BACKEND %q (want %s or %s)", cfg.StoreBackend, backendSQLite, backendMemory)
	}

	pretty, err := strconv.ParseBool(env("LOG_PRETTY", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid LOG_PRETTY: %w", err)
	}
	cfg.LogPretty = pretty

	attempts, err := strconv.Atoi(env("RATE_MAX_ATTEMPTS", strconv.Itoa(directory.DefaultConfig().MaxRateAttempts)))
	if err != nil {
		return Config{}, fmt.Errorf("invalid RATE_MAX_ATTEMPTS: %w", err)
	}
	cfg.RateMaxAttempts = attempts

	timeout, err := time.ParseDuration(env("SHUTDOWN_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}
	cfg.ShutdownTimeout = timeout

	if err := cfg.directory().Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid RATE_MAX_ATTEMPTS: %w", err)
	}
	return cfg, nil
}

func (c Config) directory() directory.Config {
	return directory.Config{
		UseCache:        c.UseCache,
		MaxRateAttempts: c.RateMaxAttempts,
	}
}
