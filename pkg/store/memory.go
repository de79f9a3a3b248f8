package store

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/restaurant-directory/pkg/restaurant"
)

const backendMemory = "memory"

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string]restaurant.Restaurant
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]restaurant.Restaurant)}
}

// Get returns the record for name or ErrNotFound.
func (m *Memory) Get(ctx context.Context, name string) (r restaurant.Restaurant, err error) {
	defer func(start time.Time) { observe(backendMemory, "get", start, err) }(time.Now())

	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.data[name]
	if !ok {
		return restaurant.Restaurant{}, ErrNotFound
	}
	return r, nil
}

// Put writes r unconditionally.
func (m *Memory) Put(ctx context.Context, r restaurant.Restaurant) error {
	defer func(start time.Time) { observe(backendMemory, "put", start, nil) }(time.Now())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[r.Name] = r
	return nil
}

// UpdateRating applies u if the stored count still equals u.ExpectedNumRatings.
func (m *Memory) UpdateRating(ctx context.Context, name string, u RatingUpdate) (r restaurant.Restaurant, err error) {
	defer func(start time.Time) { observe(backendMemory, "update", start, err) }(time.Now())

	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.data[name]
	if !ok {
		return restaurant.Restaurant{}, ErrNotFound
	}
	if r.NumRatings != u.ExpectedNumRatings {
		return restaurant.Restaurant{}, ErrConflict
	}
	r.Rating = u.Rating
	r.NumRatings = u.NumRatings
	m.data[name] = r
	return r, nil
}

// Delete removes the record for name or returns ErrNotFound.
func (m *Memory) Delete(ctx context.Context, name string) (err error) {
	defer func(start time.Time) { observe(backendMemory, "delete", start, err) }(time.Now())

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[name]; !ok {
		return ErrNotFound
	}
	delete(m.data, name)
	return nil
}

// Scan returns every record matching f.
func (m *Memory) Scan(ctx context.Context, f Filter) ([]restaurant.Restaurant, error) {
	defer func(start time.Time) { observe(backendMemory, "scan", start, nil) }(time.Now())

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]restaurant.Restaurant, 0)
	for _, r := range m.data {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Ping always succeeds.
func (m *Memory) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
