package directory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Sternrassler/restaurant-directory/pkg/restaurant"
	"github.com/Sternrassler/restaurant-directory/pkg/store"
)

// Query result limits.
const (
	MinLimit = 10
	MaxLimit = 100
)

// ClampLimit maps a requested limit into [MinLimit, MaxLimit].
// Zero means no limit and is returned unchanged.
func ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return 0
	case limit < MinLimit:
		return MinLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Query returns restaurants matching f, highest rated first.
// A non-zero limit is clamped with ClampLimit and truncates the sorted result.
// The cache is never consulted.
func (d *Directory) Query(ctx context.Context, f store.Filter, limit int) ([]restaurant.View, error) {
	start := time.Now()
	views, err := d.query(ctx, f, limit)
	observe("query", start, err)
	return views, err
}

func (d *Directory) query(ctx context.Context, f store.Filter, limit int) ([]restaurant.View, error) {
	if f.IsEmpty() {
		return nil, fmt.Errorf("%w: cuisine or region is required", restaurant.ErrInvalid)
	}

	records, err := d.store.Scan(ctx, f)
	if err != nil {
		return nil, restaurant.Backend("query", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Rating > records[j].Rating
	})

	if n := ClampLimit(limit); n > 0 && len(records) > n {
		records = records[:n]
	}

	views := make([]restaurant.View, 0, len(records))
	for _, r := range records {
		views = append(views, r.View())
	}

	d.log(ctx).Debug().
		Str("cuisine", f.Cuisine).
		Str("region", f.Region).
		Int("limit", limit).
		Int("results", len(views)).
		Msg("Query served from store")

	return views, nil
}
