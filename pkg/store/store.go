// Package store provides the durable record store for restaurants.
//
// Records are keyed by restaurant name. Two backends are available: SQLite
// through bun (NewSQLite) and an in-process map (NewMemory).
package store

import (
	"context"
	"errors"

	"github.com/Sternrassler/restaurant-directory/pkg/restaurant"
)

var (
	// ErrNotFound indicates no record exists for the requested name.
	ErrNotFound = errors.New("record not found")

	// ErrConflict indicates a conditional update lost against a concurrent write.
	ErrConflict = errors.New("record changed concurrently")
)

// Filter selects records by attribute equality. Empty fields match anything.
type Filter struct {
	Cuisine string
	Region  string
}

// IsEmpty reports whether the filter constrains nothing.
func (f Filter) IsEmpty() bool {
	return f.Cuisine == "" && f.Region == ""
}

// Match reports whether r satisfies the filter.
func (f Filter) Match(r restaurant.Restaurant) bool {
	if f.Cuisine != "" && r.Cuisine != f.Cuisine {
		return false
	}
	if f.Region != "" && r.Region != f.Region {
		return false
	}
	return true
}

// RatingUpdate is a partial update of the rating fields.
type RatingUpdate struct {
	Rating     float64
	NumRatings int

	// ExpectedNumRatings guards the write: the update is rejected with
	// ErrConflict when the stored count differs.
	ExpectedNumRatings int
}

// Store is the durable key-value contract consumed by the directory.
type Store interface {
	// Get returns the record for name or ErrNotFound.
	Get(ctx context.Context, name string) (restaurant.Restaurant, error)

	// Put writes r unconditionally.
	Put(ctx context.Context, r restaurant.Restaurant) error

	// UpdateRating applies u to the record for name and returns the updated record.
	UpdateRating(ctx context.Context, name string, u RatingUpdate) (restaurant.Restaurant, error)

	// Delete removes the record for name or returns ErrNotFound.
	Delete(ctx context.Context, name string) error

	// Scan returns every record matching f, in no particular order.
	Scan(ctx context.Context, f Filter) ([]restaurant.Restaurant, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
