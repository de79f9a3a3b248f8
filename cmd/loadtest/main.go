// Command loadtest runs the standard load scenario against a restaurant API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Sternrassler/restaurant-directory/pkg/client"
	"github.com/Sternrassler/restaurant-directory/pkg/loadtest"
	"github.com/Sternrassler/restaurant-directory/pkg/logging"
)

func main() {
	defaults := loadtest.DefaultConfig()

	baseURL := flag.String("url", getEnv("API_URL", "http://localhost:80"), "restaurant API base URL")
	restaurants := flag.Int("restaurants", getEnvInt("LOADTEST_RESTAURANTS", defaults.Restaurants), "number of restaurants to create")
	workers := flag.Int("workers", getEnvInt("LOADTEST_WORKERS", defaults.MaxConcurrency), "parallel workers per phase")
	timeout := flag.Duration("timeout", defaults.Timeout, "per-request timeout")
	unique := flag.Bool("unique", false, "insert the run ID into restaurant names")
	seed := flag.Int64("seed", 0, "rating generator seed (0: time-based)")
	pretty := flag.Bool("pretty", true, "human-readable log output")
	flag.Parse()

	level, err := logging.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid LOG_LEVEL: %v\n", err)
		os.Exit(2)
	}
	logging.Setup(logging.Config{
		Level:   level,
		Pretty:  *pretty,
		Output:  os.Stderr,
		Service: "loadtest",
	})
	logger := logging.NewLogger("loadtest")

	cfg := client.DefaultConfig(*baseURL)
	cfg.Timeout = *timeout
	apiClient, err := client.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create API client")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = apiClient.Health(healthCtx)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Str("url", *baseURL).Msg("API not healthy")
	}

	runner := loadtest.NewRunner(apiClient, loadtest.Config{
		Restaurants:    *restaurants,
		MaxConcurrency: *workers,
		Timeout:        *timeout,
		UniqueNames:    *unique,
		Seed:           *seed,
	})

	report, err := runner.Run(ctx)

	for _, p := range report.Phases {
		fmt.Printf("%-14s requests=%-5d failures=%-5d duration=%v\n", p.Name, p.Requests, p.Failures, p.Duration)
	}
	if read, ok := report.Phase(loadtest.PhaseRead); ok {
		fmt.Printf("Total time to complete all point reads: %d ms\n", read.Duration.Milliseconds())
	}
	for _, f := range report.Failures {
		fmt.Fprintln(os.Stderr, f.Error())
	}

	if err != nil {
		logger.Error().Err(err).Str("run_id", report.RunID).Msg("Load test failed")
		os.Exit(1)
	}
	logger.Info().Str("run_id", report.RunID).Dur("duration", report.Duration).Msg("Load test passed")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}
