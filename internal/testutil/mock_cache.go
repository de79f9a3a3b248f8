// Package testutil provides in-memory test doubles for the restaurant directory.
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/Sternrassler/restaurant-directory/pkg/cache"
	"github.com/Sternrassler/restaurant-directory/pkg/restaurant"
)

// ErrInjected is returned by test doubles configured to fail.
var ErrInjected = errors.New("injected failure")

// MockCache is an in-memory cache with call tracking and failure injection.
// It satisfies directory.Cache.
type MockCache struct {
	mu      sync.RWMutex
	entries map[string]restaurant.Restaurant

	// Failure injection
	FailGet    bool
	FailSet    bool
	FailDelete bool

	// Tracking
	GetCount    int
	SetCount    int
	DeleteCount int
}

// NewMockCache creates an empty mock cache.
func NewMockCache() *MockCache {
	return &MockCache{entries: make(map[string]restaurant.Restaurant)}
}

// Get returns the cached record or cache.ErrCacheMiss.
func (m *MockCache) Get(ctx context.Context, name string) (*restaurant.Restaurant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCount++
	if m.FailGet {
		return nil, ErrInjected
	}
	r, ok := m.entries[name]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return &r, nil
}

// Set stores r.
func (m *MockCache) Set(ctx context.Context, r restaurant.Restaurant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetCount++
	if m.FailSet {
		return ErrInjected
	}
	m.entries[r.Name] = r
	return nil
}

// Delete removes the entry for name.
func (m *MockCache) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCount++
	if m.FailDelete {
		return ErrInjected
	}
	delete(m.entries, name)
	return nil
}

// Put seeds an entry without counting it as a Set.
func (m *MockCache) Put(r restaurant.Restaurant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[r.Name] = r
}

// Entry returns the cached record for name, if any.
func (m *MockCache) Entry(name string) (restaurant.Restaurant, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.entries[name]
	return r, ok
}

// Flush drops every entry.
func (m *MockCache) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]restaurant.Restaurant)
}
