package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/restaurant-directory/pkg/restaurant"
)

// fastRetry keeps retry tests quick.
func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    5 * time.Millisecond,
		MaxBackoff:        20 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig(server.URL)
	cfg.Retry = fastRetry()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid config",
			config: DefaultConfig("http://localhost:8080"),
		},
		{
			name:        "missing base url",
			config:      Config{Retry: DefaultRetryConfig()},
			expectError: true,
			errorMsg:    "base url is required",
		},
		{
			name:        "relative base url",
			config:      Config{BaseURL: "localhost", Retry: DefaultRetryConfig()},
			expectError: true,
			errorMsg:    "invalid base url",
		},
		{
			name:        "zero attempts",
			config:      Config{BaseURL: "http://localhost:8080"},
			expectError: true,
			errorMsg:    "max_attempts must be >= 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
				} else if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if client == nil {
				t.Error("Expected client, got nil")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("http://api")

	if cfg.BaseURL != "http://api" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout)
	}
	if cfg.Retry != DefaultRetryConfig() {
		t.Errorf("Retry = %+v, want default", cfg.Retry)
	}
	if cfg.UserAgent == "" {
		t.Error("UserAgent should have a default")
	}
}

func TestCreate_SendsBody(t *testing.T) {
	var got createBody
	var contentType, userAgent string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/restaurants" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		contentType = r.Header.Get("Content-Type")
		userAgent = r.Header.Get("User-Agent")
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"success":true}`))
	})

	if err := c.Create(context.Background(), "Pasta House", "Italian", "North"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	want := createBody{Name: "Pasta House", Cuisine: "Italian", Region: "North"}
	if got != want {
		t.Errorf("body = %+v, want %+v", got, want)
	}
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q", contentType)
	}
	if userAgent != DefaultConfig("").UserAgent {
		t.Errorf("User-Agent = %q", userAgent)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"success":false,"message":"Restaurant already exists"}`))
	})

	err := c.Create(context.Background(), "Pasta House", "Italian", "North")
	if !errors.Is(err, restaurant.ErrDuplicate) {
		t.Fatalf("Create = %v, want ErrDuplicate", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Message != "Restaurant already exists" || apiErr.Class != ErrorClassClient {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestGet_EscapesName(t *testing.T) {
	var rawPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rawPath = r.URL.EscapedPath()
		w.Write([]byte(`{"name":"Pasta House","cuisine":"Italian","rating":3,"region":"North"}`))
	})

	v, err := c.Get(context.Background(), "Pasta House")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rawPath != "/restaurants/Pasta%20House" {
		t.Errorf("path = %q", rawPath)
	}
	want := restaurant.View{Name: "Pasta House", Cuisine: "Italian", Rating: 3, Region: "North"}
	if v != want {
		t.Errorf("Get = %+v, want %+v", v, want)
	}
}

func TestGet_NotFound(t *testing.T) {
	var attemptCount atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attemptCount.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"message":"Restaurant not found"}`))
	})

	_, err := c.Get(context.Background(), "Nowhere")
	if !errors.Is(err, restaurant.ErrNotFound) {
		t.Errorf("Get = %v, want ErrNotFound", err)
	}
	// Should only attempt once (no retry for client errors)
	if n := attemptCount.Load(); n != 1 {
		t.Errorf("Expected 1 attempt (no retry for 4xx), got %d", n)
	}
}

func TestRate_SendsBody(t *testing.T) {
	var got ratingBody
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/restaurants/rating" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"success":true}`))
	})

	if err := c.Rate(context.Background(), "Diner", 4.5); err != nil {
		t.Fatalf("Rate failed: %v", err)
	}
	if got.Name != "Diner" || got.Rating != 4.5 {
		t.Errorf("body = %+v", got)
	}
}

func TestRate_BackendFailureDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"message":"Error updating rating","error":"rate: backend error: disk full"}`))
	})

	err := c.Rate(context.Background(), "Diner", 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Detail != "rate: backend error: disk full" {
		t.Errorf("APIError = %+v", apiErr)
	}
	if errors.Is(err, restaurant.ErrNotFound) || errors.Is(err, restaurant.ErrDuplicate) {
		t.Error("400 must not match not-found or duplicate")
	}
}

func TestDelete(t *testing.T) {
	var method, path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.Write([]byte(`{"success":true}`))
	})

	if err := c.Delete(context.Background(), "Bistro"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if method != http.MethodDelete || path != "/restaurants/Bistro" {
		t.Errorf("request = %s %s", method, path)
	}
}

func TestQueries(t *testing.T) {
	var gotPath, gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		w.Write([]byte(`[{"name":"A","cuisine":"Italian","rating":5,"region":"North"},{"name":"B","cuisine":"Italian","rating":2,"region":"North"}]`))
	})
	ctx := context.Background()

	tests := []struct {
		name      string
		call      func() ([]restaurant.View, error)
		wantPath  string
		wantQuery string
	}{
		{
			name:      "by cuisine",
			call:      func() ([]restaurant.View, error) { return c.ByCuisine(ctx, "Italian", 12) },
			wantPath:  "/restaurants/cuisine/Italian",
			wantQuery: "limit=12",
		},
		{
			name:     "by region without limit",
			call:     func() ([]restaurant.View, error) { return c.ByRegion(ctx, "North", 0) },
			wantPath: "/restaurants/region/North",
		},
		{
			name:      "by region and cuisine",
			call:      func() ([]restaurant.View, error) { return c.ByRegionAndCuisine(ctx, "North", "Italian", 15) },
			wantPath:  "/restaurants/region/North/cuisine/Italian",
			wantQuery: "limit=15",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			views, err := tt.call()
			if err != nil {
				t.Fatalf("query failed: %v", err)
			}
			if len(views) != 2 || views[0].Name != "A" {
				t.Errorf("views = %+v", views)
			}
			if gotPath != tt.wantPath || gotQuery != tt.wantQuery {
				t.Errorf("request = %s?%s, want %s?%s", gotPath, gotQuery, tt.wantPath, tt.wantQuery)
			}
		})
	}
}

func TestDo_RetryOnServerError(t *testing.T) {
	// Server that fails twice, then succeeds
	var attemptCount atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if attemptCount.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"name":"Diner","cuisine":"American","rating":0,"region":"East"}`))
	})

	v, err := c.Get(context.Background(), "Diner")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v.Name != "Diner" {
		t.Errorf("Get = %+v", v)
	}
	if n := attemptCount.Load(); n != 3 {
		t.Errorf("Expected 3 attempts (2 retries), got %d", n)
	}
}

func TestDo_RetryExhausted(t *testing.T) {
	var attemptCount atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attemptCount.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.ByCuisine(context.Background(), "Italian", 0)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected wrapped 503 APIError, got %v", err)
	}
	if n := attemptCount.Load(); n != 3 {
		t.Errorf("Expected 3 attempts, got %d", n)
	}
}

func TestDo_NoRetryForWrites(t *testing.T) {
	var attemptCount atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attemptCount.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := c.Rate(context.Background(), "Diner", 3)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Class != ErrorClassServer {
		t.Errorf("Expected server APIError, got %v", err)
	}
	if n := attemptCount.Load(); n != 1 {
		t.Errorf("Expected 1 attempt for POST, got %d", n)
	}
}

func TestDo_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	cfg := DefaultConfig(url)
	cfg.Retry = fastRetry()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	err = c.Health(context.Background())
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	if classifyError(err) != ErrorClassNetwork {
		t.Errorf("class = %q, want network", classifyError(err))
	}
}

func TestDo_InvalidResponseBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	if _, err := c.Get(context.Background(), "Diner"); err == nil || !strings.Contains(err.Error(), "decode response") {
		t.Errorf("Expected decode error, got %v", err)
	}
}

func TestSetHTTPClient(t *testing.T) {
	c, err := New(DefaultConfig("http://restaurants.invalid"))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	var seen string
	c.SetHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		seen = req.URL.String()
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("OK")),
			Header:     make(http.Header),
		}, nil
	})})

	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if seen != "http://restaurants.invalid/health" {
		t.Errorf("url = %q", seen)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }
