// Package loadtest drives a running restaurant directory through the
// standard load scenario: create N restaurants, rate each once, time point
// reads, check query ordering and limits, then delete one and confirm it is
// gone. Each phase fans out over a bounded worker pool.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/restaurant-directory/pkg/restaurant"
)

// ErrFailed is returned by Run when any request or assertion failed.
var ErrFailed = errors.New("load test failed")

// API is the directory surface exercised by the scenario.
// *client.Client satisfies it.
type API interface {
	Create(ctx context.Context, name, cuisine, region string) error
	Get(ctx context.Context, name string) (restaurant.View, error)
	Delete(ctx context.Context, name string) error
	Rate(ctx context.Context, name string, rating float64) error
	ByCuisine(ctx context.Context, cuisine string, limit int) ([]restaurant.View, error)
	ByRegion(ctx context.Context, region string, limit int) ([]restaurant.View, error)
}

// Config holds load test configuration.
type Config struct {
	// Restaurants is the number of restaurants to create.
	Restaurants int

	// MaxConcurrency is the number of parallel workers per phase.
	MaxConcurrency int

	// Timeout per request.
	Timeout time.Duration

	// Prefix for generated names: Prefix1 .. PrefixN.
	Prefix string

	// UniqueNames inserts the run ID into every name so repeated runs
	// against one deployment do not collide.
	UniqueNames bool

	Cuisine string
	Region  string

	// Limits sent with the cuisine and region queries.
	CuisineLimit int
	RegionLimit  int

	// Seed for generated ratings (0: time-based).
	Seed int64
}

// DefaultConfig returns the standard scenario: 100 Italian restaurants in
// the North region.
func DefaultConfig() Config {
	return Config{
		Restaurants:    100,
		MaxConcurrency: 10,
		Timeout:        15 * time.Second,
		Prefix:         "TestRestaurant",
		Cuisine:        "Italian",
		Region:         "North",
		CuisineLimit:   12,
		RegionLimit:    15,
	}
}

// Failure is one failed request or assertion.
type Failure struct {
	Phase string
	Name  string
	Err   error
}

func (f Failure) Error() string {
	if f.Name == "" {
		return fmt.Sprintf("%s: %v", f.Phase, f.Err)
	}
	return fmt.Sprintf("%s %s: %v", f.Phase, f.Name, f.Err)
}

// PhaseResult summarizes one phase.
type PhaseResult struct {
	Name     string
	Requests int
	Failures int
	Duration time.Duration
}

// Report is the outcome of a run.
type Report struct {
	RunID    string
	Phases   []PhaseResult
	Failures []Failure
	Duration time.Duration
}

// Phase returns the named phase result.
func (r *Report) Phase(name string) (PhaseResult, bool) {
	for _, p := range r.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return PhaseResult{}, false
}

// Runner executes the load scenario against an API.
type Runner struct {
	api    API
	config Config
	logger zerolog.Logger
}

// NewRunner creates a runner. Zero config fields take their defaults.
func NewRunner(api API, config Config) *Runner {
	defaults := DefaultConfig()
	if config.Restaurants <= 0 {
		config.Restaurants = defaults.Restaurants
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.Prefix == "" {
		config.Prefix = defaults.Prefix
	}
	if config.Cuisine == "" {
		config.Cuisine = defaults.Cuisine
	}
	if config.Region == "" {
		config.Region = defaults.Region
	}
	if config.CuisineLimit <= 0 {
		config.CuisineLimit = defaults.CuisineLimit
	}
	if config.RegionLimit <= 0 {
		config.RegionLimit = defaults.RegionLimit
	}

	return &Runner{
		api:    api,
		config: config,
		logger: log.With().Str("component", "loadtest").Logger(),
	}
}

// Phase names.
const (
	PhaseCreate       = "create"
	PhaseRate         = "rate"
	PhaseRead         = "read"
	PhaseQueryCuisine = "query_cuisine"
	PhaseQueryRegion  = "query_region"
	PhaseDelete       = "delete"
)

// Run executes every phase in order. Failures do not stop the run; the
// returned error wraps ErrFailed when any occurred.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.NewString()}
	logger := r.logger.With().Str("run_id", report.RunID).Logger()

	names := r.names(report.RunID)
	ratings := r.ratings(len(names))

	logger.Info().
		Int("restaurants", len(names)).
		Int("workers", r.config.MaxConcurrency).
		Msg("Starting load test")

	phases := []struct {
		name string
		n    int
		fn   func(ctx context.Context, i int) error
	}{
		{PhaseCreate, len(names), func(ctx context.Context, i int) error {
			return r.api.Create(ctx, names[i], r.config.Cuisine, r.config.Region)
		}},
		{PhaseRate, len(names), func(ctx context.Context, i int) error {
			return r.api.Rate(ctx, names[i], ratings[i])
		}},
		{PhaseRead, len(names), func(ctx context.Context, i int) error {
			return r.checkRead(ctx, names[i])
		}},
		{PhaseQueryCuisine, 1, func(ctx context.Context, _ int) error {
			views, err := r.api.ByCuisine(ctx, r.config.Cuisine, r.config.CuisineLimit)
			return checkQuery(views, err, r.config.CuisineLimit)
		}},
		{PhaseQueryRegion, 1, func(ctx context.Context, _ int) error {
			views, err := r.api.ByRegion(ctx, r.config.Region, r.config.RegionLimit)
			return checkQuery(views, err, r.config.RegionLimit)
		}},
		{PhaseDelete, 1, func(ctx context.Context, _ int) error {
			return r.checkDelete(ctx, names[deleteIndex(len(names))])
		}},
	}

	for _, p := range phases {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			return report, fmt.Errorf("load test cancelled before %s: %w", p.name, err)
		}

		result, failures := r.runPhase(ctx, logger, p.name, p.n, p.fn, names)
		report.Phases = append(report.Phases, result)
		report.Failures = append(report.Failures, failures...)
	}

	report.Duration = time.Since(start)
	logger.Info().
		Int("failures", len(report.Failures)).
		Dur("duration", report.Duration).
		Msg("Load test complete")

	if len(report.Failures) > 0 {
		return report, fmt.Errorf("%w: %d failures", ErrFailed, len(report.Failures))
	}
	return report, nil
}

// names returns Prefix1 .. PrefixN.
func (r *Runner) names(runID string) []string {
	prefix := r.config.Prefix
	if r.config.UniqueNames {
		prefix += runID[:8] + "-"
	}
	names := make([]string, r.config.Restaurants)
	for i := range names {
		names[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return names
}

// ratings draws one rating in [0, 5) per restaurant, rounded to one decimal.
func (r *Runner) ratings(n int) []float64 {
	seed := r.config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	ratings := make([]float64, n)
	for i := range ratings {
		ratings[i] = math.Round(rng.Float64()*50) / 10
	}
	return ratings
}

// deleteIndex picks the second-to-last restaurant, or the only one.
func deleteIndex(n int) int {
	if n < 2 {
		return 0
	}
	return n - 2
}

func (r *Runner) checkRead(ctx context.Context, name string) error {
	v, err := r.api.Get(ctx, name)
	if err != nil {
		return err
	}
	if v.Name != name || v.Cuisine != r.config.Cuisine || v.Region != r.config.Region {
		return fmt.Errorf("unexpected view %+v", v)
	}
	return nil
}

func checkQuery(views []restaurant.View, err error, limit int) error {
	if err != nil {
		return err
	}
	if len(views) > limit {
		return fmt.Errorf("expected no more than %d restaurants, got %d", limit, len(views))
	}
	for i := 1; i < len(views); i++ {
		if views[i-1].Rating < views[i].Rating {
			return fmt.Errorf("restaurants not sorted by rating at index %d", i)
		}
	}
	return nil
}

func (r *Runner) checkDelete(ctx context.Context, name string) error {
	if err := r.api.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	_, err := r.api.Get(ctx, name)
	switch {
	case errors.Is(err, restaurant.ErrNotFound):
		return nil
	case err == nil:
		return fmt.Errorf("restaurant still readable after delete")
	default:
		return fmt.Errorf("get after delete: %w", err)
	}
}

type jobResult struct {
	index int
	err   error
}

// runPhase runs fn for indexes [0, n) on the worker pool and collects
// failures. names labels failures of multi-item phases.
func (r *Runner) runPhase(ctx context.Context, logger zerolog.Logger, phase string, n int, fn func(ctx context.Context, i int) error, names []string) (PhaseResult, []Failure) {
	start := time.Now()

	workers := r.config.MaxConcurrency
	if workers > n {
		workers = n
	}

	jobs := make(chan int, n)
	results := make(chan jobResult, n)

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go r.worker(ctx, logger, w, jobs, results, fn, &wg)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var failures []Failure
	done := 0
	for res := range results {
		done++
		if res.err != nil {
			f := Failure{Phase: phase, Err: res.err}
			if n > 1 {
				f.Name = names[res.index]
			}
			logger.Warn().Err(res.err).Str("phase", phase).Str("name", f.Name).Msg("Request failed")
			failures = append(failures, f)
		}

		// Progress logging every 50 requests
		if done%50 == 0 {
			logger.Info().
				Str("phase", phase).
				Int("completed", done).
				Int("total", n).
				Float64("progress_pct", float64(done)/float64(n)*100).
				Msg("Phase progress")
		}
	}

	// Jobs never started because the context was cancelled count as failures.
	if done < n {
		err := ctx.Err()
		if err == nil {
			err = errors.New("not executed")
		}
		failures = append(failures, Failure{Phase: phase, Err: fmt.Errorf("%d of %d requests skipped: %w", n-done, n, err)})
	}

	result := PhaseResult{
		Name:     phase,
		Requests: done,
		Failures: len(failures),
		Duration: time.Since(start),
	}
	logger.Info().
		Str("phase", phase).
		Int("requests", result.Requests).
		Int("failures", result.Failures).
		Dur("duration", result.Duration).
		Msg("Phase complete")

	return result, failures
}

// worker processes job indexes from the queue.
func (r *Runner) worker(ctx context.Context, logger zerolog.Logger, workerID int, jobs <-chan int, results chan<- jobResult, fn func(ctx context.Context, i int) error, wg *sync.WaitGroup) {
	defer wg.Done()
	processed := 0

	for i := range jobs {
		select {
		case <-ctx.Done():
			logger.Debug().
				Int("worker_id", workerID).
				Int("processed", processed).
				Msg("Worker stopping (context cancelled)")
			return
		default:
		}

		reqCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
		err := fn(reqCtx, i)
		cancel()

		results <- jobResult{index: i, err: err}
		processed++
	}

	if processed > 0 {
		logger.Debug().
			Int("worker_id", workerID).
			Int("processed", processed).
			Msg("Worker completed")
	}
}
