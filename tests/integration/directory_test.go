//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/restaurant-directory/pkg/api"
	"github.com/Sternrassler/restaurant-directory/pkg/cache"
	"github.com/Sternrassler/restaurant-directory/pkg/client"
	"github.com/Sternrassler/restaurant-directory/pkg/directory"
	"github.com/Sternrassler/restaurant-directory/pkg/loadtest"
	"github.com/Sternrassler/restaurant-directory/pkg/restaurant"
	"github.com/Sternrassler/restaurant-directory/pkg/store"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// setupSQLite opens a file-backed store under the test's temp dir.
func setupSQLite(t *testing.T) *store.SQLite {
	t.Helper()

	st, err := store.NewSQLite(context.Background(), store.DefaultSQLiteConfig(filepath.Join(t.TempDir(), "restaurants.db")))
	if err != nil {
		t.Fatalf("Failed to open SQLite store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newDirectory(t *testing.T, st store.Store, c directory.Cache, attempts int) *directory.Directory {
	t.Helper()

	cfg := directory.DefaultConfig()
	cfg.MaxRateAttempts = attempts
	d, err := directory.New(st, c, cfg)
	if err != nil {
		t.Fatalf("directory.New failed: %v", err)
	}
	return d
}

func cachedRecord(t *testing.T, rdb *redis.Client, name string) (restaurant.Restaurant, bool) {
	t.Helper()

	data, err := rdb.Get(context.Background(), cache.CacheKey{Namespace: cache.DefaultNamespace, Name: name}.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return restaurant.Restaurant{}, false
	}
	if err != nil {
		t.Fatalf("redis GET failed: %v", err)
	}
	var r restaurant.Restaurant
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("invalid cache entry: %v", err)
	}
	return r, true
}

func TestPastaHouseFlow(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	st := setupSQLite(t)
	d := newDirectory(t, st, cache.NewManager(rdb), 3)
	ctx := context.Background()

	if err := d.Create(ctx, "Pasta House", "Italian", "North"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := d.Create(ctx, "Pasta House", "Italian", "North"); !errors.Is(err, restaurant.ErrDuplicate) {
		t.Fatalf("second Create = %v, want ErrDuplicate", err)
	}

	for _, r := range []float64{4, 2} {
		if err := d.Rate(ctx, "Pasta House", r); err != nil {
			t.Fatalf("Rate(%v) failed: %v", r, err)
		}
	}

	stored, err := st.Get(ctx, "Pasta House")
	if err != nil {
		t.Fatalf("store Get failed: %v", err)
	}
	if stored.Rating != 3 || stored.NumRatings != 2 {
		t.Errorf("stored = %+v, want rating 3 count 2", stored)
	}

	cached, ok := cachedRecord(t, rdb, "Pasta House")
	if !ok || cached != stored {
		t.Errorf("cached = %+v (present %v), want %+v", cached, ok, stored)
	}

	ttl, err := rdb.TTL(ctx, "restaurant:Pasta House").Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl != -1 {
		t.Errorf("cache entry must not expire, TTL = %v", ttl)
	}

	if err := d.Delete(ctx, "Pasta House"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := cachedRecord(t, rdb, "Pasta House"); ok {
		t.Error("cache entry survived delete")
	}
	if _, err := d.Get(ctx, "Pasta House"); !errors.Is(err, restaurant.ErrNotFound) {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}
}

func TestCacheHitShortCircuitsCreate(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	st := setupSQLite(t)
	manager := cache.NewManager(rdb)
	d := newDirectory(t, st, manager, 3)
	ctx := context.Background()

	// An entry only the cache knows about.
	if err := manager.Set(ctx, restaurant.Restaurant{Name: "Phantom", Cuisine: "Greek", Region: "East"}); err != nil {
		t.Fatalf("seed Set failed: %v", err)
	}

	if err := d.Create(ctx, "Phantom", "Greek", "East"); !errors.Is(err, restaurant.ErrDuplicate) {
		t.Errorf("Create = %v, want ErrDuplicate", err)
	}
	if _, err := st.Get(ctx, "Phantom"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("store should not hold Phantom, got %v", err)
	}
}

func TestReadMissDoesNotRepopulate(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	d := newDirectory(t, setupSQLite(t), cache.NewManager(rdb), 3)
	ctx := context.Background()

	if err := d.Create(ctx, "Noodle Hut", "Chinese", "North"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := rdb.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("FlushDB failed: %v", err)
	}

	if _, err := d.Get(ctx, "Noodle Hut"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, ok := cachedRecord(t, rdb, "Noodle Hut"); ok {
		t.Error("read miss repopulated the cache")
	}
}

func TestCacheOutageIsBestEffort(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	// A closed client fails every command.
	down := redis.NewClient(&redis.Options{Addr: rdb.Options().Addr})
	down.Close()

	d := newDirectory(t, setupSQLite(t), cache.NewManager(down), 3)
	ctx := context.Background()

	if err := d.Create(ctx, "Curry Corner", "Indian", "South"); err != nil {
		t.Fatalf("Create with cache down failed: %v", err)
	}
	if err := d.Rate(ctx, "Curry Corner", 5); err != nil {
		t.Fatalf("Rate with cache down failed: %v", err)
	}
	v, err := d.Get(ctx, "Curry Corner")
	if err != nil || v.Rating != 5 {
		t.Fatalf("Get with cache down = %+v, %v", v, err)
	}
	if err := d.Delete(ctx, "Curry Corner"); err != nil {
		t.Fatalf("Delete with cache down failed: %v", err)
	}
}

func TestConcurrentRatingsOnSQLite(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	st := setupSQLite(t)
	d := newDirectory(t, st, cache.NewManager(rdb), 100)
	ctx := context.Background()

	if err := d.Create(ctx, "Busy Cafe", "Cafe", "Center"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- d.Rate(ctx, "Busy Cafe", 2)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Rate failed: %v", err)
		}
	}

	stored, err := st.Get(ctx, "Busy Cafe")
	if err != nil {
		t.Fatalf("store Get failed: %v", err)
	}
	if stored.NumRatings != workers || stored.Rating != 2 {
		t.Errorf("stored = %+v, want %d ratings of 2", stored, workers)
	}
}

func TestLoadScenario(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	d := newDirectory(t, setupSQLite(t), cache.NewManager(rdb), 3)
	server := httptest.NewServer(api.New(d, api.Config{}).Handler())
	defer server.Close()

	apiClient, err := client.New(client.DefaultConfig(server.URL))
	if err != nil {
		t.Fatalf("client.New failed: %v", err)
	}

	cfg := loadtest.DefaultConfig()
	cfg.Restaurants = 50
	report, err := loadtest.NewRunner(apiClient, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("load test failed: %v (%v)", err, report.Failures)
	}

	read, _ := report.Phase(loadtest.PhaseRead)
	t.Logf("50 point reads took %v", read.Duration)
}
