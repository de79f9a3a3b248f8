package testutil

import (
	"context"
	"sync"

	"github.com/Sternrassler/restaurant-directory/pkg/restaurant"
	"github.com/Sternrassler/restaurant-directory/pkg/store"
)

// MockStore wraps a store.Store with call tracking and failure injection.
type MockStore struct {
	store.Store

	mu sync.Mutex

	// Failure injection
	FailGet    bool
	FailPut    bool
	FailUpdate bool
	FailDelete bool
	FailScan   bool

	hold, held chan struct{}

	// ConflictsRemaining makes the next n UpdateRating calls return
	// store.ErrConflict, simulating concurrent submissions.
	ConflictsRemaining int

	// Tracking
	GetCount    int
	PutCount    int
	UpdateCount int
	DeleteCount int
	ScanCount   int
}

// NewMockStore wraps an in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{Store: store.NewMemory()}
}

// Get tracks and delegates.
func (m *MockStore) Get(ctx context.Context, name string) (restaurant.Restaurant, error) {
	m.mu.Lock()
	m.GetCount++
	fail := m.FailGet
	hold, held := m.hold, m.held
	m.hold, m.held = nil, nil
	m.mu.Unlock()
	if fail {
		return restaurant.Restaurant{}, ErrInjected
	}

	r, err := m.Store.Get(ctx, name)
	if hold == nil {
		return r, err
	}
	close(held)
	select {
	case <-hold:
		return r, err
	case <-ctx.Done():
		return restaurant.Restaurant{}, ctx.Err()
	}
}

// HoldNextGet makes the next Get read its record and then wait until gate is
// closed or its context ends. held is closed once that read is waiting.
func (m *MockStore) HoldNextGet() (gate chan<- struct{}, held <-chan struct{}) {
	g, h := make(chan struct{}), make(chan struct{})
	m.mu.Lock()
	m.hold, m.held = g, h
	m.mu.Unlock()
	return g, h
}

// Put tracks and delegates.
func (m *MockStore) Put(ctx context.Context, r restaurant.Restaurant) error {
	m.mu.Lock()
	m.PutCount++
	fail := m.FailPut
	m.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return m.Store.Put(ctx, r)
}

// UpdateRating tracks, injects conflicts, and delegates.
func (m *MockStore) UpdateRating(ctx context.Context, name string, u store.RatingUpdate) (restaurant.Restaurant, error) {
	m.mu.Lock()
	m.UpdateCount++
	fail := m.FailUpdate
	conflict := m.ConflictsRemaining > 0
	if conflict {
		m.ConflictsRemaining--
	}
	m.mu.Unlock()
	if fail {
		return restaurant.Restaurant{}, ErrInjected
	}
	if conflict {
		return restaurant.Restaurant{}, store.ErrConflict
	}
	return m.Store.UpdateRating(ctx, name, u)
}

// Delete tracks and delegates.
func (m *MockStore) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	m.DeleteCount++
	fail := m.FailDelete
	m.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return m.Store.Delete(ctx, name)
}

// Scan tracks and delegates.
func (m *MockStore) Scan(ctx context.Context, f store.Filter) ([]restaurant.Restaurant, error) {
	m.mu.Lock()
	m.ScanCount++
	fail := m.FailScan
	m.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return m.Store.Scan(ctx, f)
}

// Counts returns a snapshot of the call counters.
func (m *MockStore) Counts() (get, put, update, del, scan int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GetCount, m.PutCount, m.UpdateCount, m.DeleteCount, m.ScanCount
}
