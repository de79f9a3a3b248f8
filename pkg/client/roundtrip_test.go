package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/Sternrassler/restaurant-directory/internal/testutil"
	"github.com/Sternrassler/restaurant-directory/pkg/api"
	"github.com/Sternrassler/restaurant-directory/pkg/directory"
	"github.com/Sternrassler/restaurant-directory/pkg/restaurant"
	"github.com/Sternrassler/restaurant-directory/pkg/store"
)

// newAPIClient returns a client talking to a real API server over an
// in-memory store and cache.
func newAPIClient(t *testing.T) *Client {
	t.Helper()

	d, err := directory.New(store.NewMemory(), testutil.NewMockCache(), directory.DefaultConfig())
	if err != nil {
		t.Fatalf("directory.New failed: %v", err)
	}
	server := httptest.NewServer(api.New(d, api.Config{}).Handler())
	t.Cleanup(server.Close)

	cfg := DefaultConfig(server.URL)
	cfg.Retry = fastRetry()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

func TestRoundTrip_PastaHouse(t *testing.T) {
	c := newAPIClient(t)
	ctx := context.Background()

	if err := c.Create(ctx, "Pasta House", "Italian", "North"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := c.Create(ctx, "Pasta House", "Italian", "North"); !errors.Is(err, restaurant.ErrDuplicate) {
		t.Fatalf("duplicate Create = %v, want ErrDuplicate", err)
	}
	for _, r := range []float64{4, 2} {
		if err := c.Rate(ctx, "Pasta House", r); err != nil {
			t.Fatalf("Rate(%v) failed: %v", r, err)
		}
	}

	v, err := c.Get(ctx, "Pasta House")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v.Rating != 3 {
		t.Errorf("rating = %v, want 3", v.Rating)
	}

	if err := c.Delete(ctx, "Pasta House"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := c.Get(ctx, "Pasta House"); !errors.Is(err, restaurant.ErrNotFound) {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}
	if err := c.Rate(ctx, "Pasta House", 5); !errors.Is(err, restaurant.ErrNotFound) {
		t.Errorf("Rate after Delete = %v, want ErrNotFound", err)
	}
}

func TestRoundTrip_Queries(t *testing.T) {
	c := newAPIClient(t)
	ctx := context.Background()

	seed := []struct {
		name, cuisine, region string
		rating                float64
	}{
		{"Sushi Bar", "Japanese", "North", 4.5},
		{"Ramen Shop", "Japanese", "South", 3},
		{"Pasta House", "Italian", "North", 4},
		{"Pizza Place", "Italian", "North", 2},
	}
	for _, s := range seed {
		if err := c.Create(ctx, s.name, s.cuisine, s.region); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if err := c.Rate(ctx, s.name, s.rating); err != nil {
			t.Fatalf("Rate failed: %v", err)
		}
	}

	north, err := c.ByRegion(ctx, "North", 0)
	if err != nil {
		t.Fatalf("ByRegion failed: %v", err)
	}
	wantOrder := []string{"Sushi Bar", "Pasta House", "Pizza Place"}
	if len(north) != len(wantOrder) {
		t.Fatalf("ByRegion = %+v", north)
	}
	for i, name := range wantOrder {
		if north[i].Name != name {
			t.Errorf("ByRegion[%d] = %s, want %s", i, north[i].Name, name)
		}
	}

	japanese, err := c.ByCuisine(ctx, "Japanese", 10)
	if err != nil {
		t.Fatalf("ByCuisine failed: %v", err)
	}
	if len(japanese) != 2 {
		t.Errorf("ByCuisine = %+v", japanese)
	}

	both, err := c.ByRegionAndCuisine(ctx, "North", "Italian", 0)
	if err != nil {
		t.Fatalf("ByRegionAndCuisine failed: %v", err)
	}
	if len(both) != 2 || both[0].Name != "Pasta House" {
		t.Errorf("ByRegionAndCuisine = %+v", both)
	}

	none, err := c.ByCuisine(ctx, "Ethiopian", 0)
	if err != nil {
		t.Fatalf("ByCuisine failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("ByCuisine(Ethiopian) = %+v", none)
	}

	if err := c.Health(ctx); err != nil {
		t.Errorf("Health failed: %v", err)
	}
}
