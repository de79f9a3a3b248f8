// Package client provides a typed HTTP client for the restaurant directory
// API with classified errors and retry for idempotent reads.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/restaurant-directory/pkg/restaurant"
)

// Prometheus metrics for client operations.
var (
	clientRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restaurant_client_requests_total",
		Help: "Total API client requests by operation and status",
	}, []string{"operation", "status"})

	clientRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "restaurant_client_request_duration_seconds",
		Help:    "API client request duration in seconds by operation",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"operation"})

	clientErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restaurant_client_errors_total",
		Help: "Total API client errors by class",
	}, []string{"class"})
)

// Client is the restaurant directory API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API, e.g. "http://localhost:80".
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout per HTTP attempt.
	Timeout time.Duration

	// Retry applies to GET requests only.
	Retry RetryConfig
}

// DefaultConfig returns a default configuration for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: "restaurant-directory-client/0.1.0",
		Timeout:   10 * time.Second,
		Retry:     DefaultRetryConfig(),
	}
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("retry max_attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		config:  cfg,
		logger:  log.With().Str("component", "restaurant-client").Logger(),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

type createBody struct {
	Name    string `json:"name"`
	Cuisine string `json:"cuisine"`
	Region  string `json:"region"`
}

type ratingBody struct {
	Name   string  `json:"name"`
	Rating float64 `json:"rating"`
}

// failureBody is the server's failure response.
type failureBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Create creates a restaurant. A taken name yields an error matching
// restaurant.ErrDuplicate.
func (c *Client) Create(ctx context.Context, name, cuisine, region string) error {
	return c.do(ctx, "create", http.MethodPost, "/restaurants", nil,
		createBody{Name: name, Cuisine: cuisine, Region: region}, nil)
}

// Get fetches a restaurant view. A missing restaurant yields an error
// matching restaurant.ErrNotFound.
func (c *Client) Get(ctx context.Context, name string) (restaurant.View, error) {
	var v restaurant.View
	err := c.do(ctx, "get", http.MethodGet, "/restaurants/"+url.PathEscape(name), nil, nil, &v)
	return v, err
}

// Delete removes a restaurant.
func (c *Client) Delete(ctx context.Context, name string) error {
	return c.do(ctx, "delete", http.MethodDelete, "/restaurants/"+url.PathEscape(name), nil, nil, nil)
}

// Rate submits one rating.
func (c *Client) Rate(ctx context.Context, name string, rating float64) error {
	return c.do(ctx, "rate", http.MethodPost, "/restaurants/rating", nil,
		ratingBody{Name: name, Rating: rating}, nil)
}

// ByCuisine lists restaurants of cuisine, highest rated first.
// A limit of 0 omits the parameter.
func (c *Client) ByCuisine(ctx context.Context, cuisine string, limit int) ([]restaurant.View, error) {
	return c.query(ctx, "by_cuisine", "/restaurants/cuisine/"+url.PathEscape(cuisine), limit)
}

// ByRegion lists restaurants in region, highest rated first.
func (c *Client) ByRegion(ctx context.Context, region string, limit int) ([]restaurant.View, error) {
	return c.query(ctx, "by_region", "/restaurants/region/"+url.PathEscape(region), limit)
}

// ByRegionAndCuisine lists restaurants matching both, highest rated first.
func (c *Client) ByRegionAndCuisine(ctx context.Context, region, cuisine string, limit int) ([]restaurant.View, error) {
	path := "/restaurants/region/" + url.PathEscape(region) + "/cuisine/" + url.PathEscape(cuisine)
	return c.query(ctx, "by_region_cuisine", path, limit)
}

// Health checks GET /health.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, "health", http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) query(ctx context.Context, operation, path string, limit int) ([]restaurant.View, error) {
	var params url.Values
	if limit != 0 {
		params = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var views []restaurant.View
	if err := c.do(ctx, operation, http.MethodGet, path, params, nil, &views); err != nil {
		return nil, err
	}
	return views, nil
}

// do sends one request, retrying GETs on server and network failures, and
// decodes a 2xx body into out when out is non-nil.
func (c *Client) do(ctx context.Context, operation, method, path string, params url.Values, body, out any) error {
	startTime := time.Now()
	defer func() {
		clientRequestDuration.WithLabelValues(operation).Observe(time.Since(startTime).Seconds())
	}()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	attempt := func() error {
		return c.attempt(ctx, operation, method, target, payload, out)
	}

	if method != http.MethodGet {
		return attempt()
	}
	return retryRead(ctx, c.config.Retry, operation, attempt)
}

func (c *Client) attempt(ctx context.Context, operation, method, target string, payload []byte, out any) error {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug().
		Str("operation", operation).
		Str("method", method).
		Str("url", target).
		Msg("Executing API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		clientErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		clientRequestsTotal.WithLabelValues(operation, "network_error").Inc()
		if ctx.Err() != nil {
			return err
		}
		return &APIError{Class: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	clientRequestsTotal.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		class := classifyStatus(resp.StatusCode)
		clientErrorsTotal.WithLabelValues(string(class)).Inc()

		apiErr := &APIError{StatusCode: resp.StatusCode, Class: class, Message: resp.Status}
		var fb failureBody
		if data, err := io.ReadAll(resp.Body); err == nil && json.Unmarshal(data, &fb) == nil && fb.Message != "" {
			apiErr.Message = fb.Message
			apiErr.Detail = fb.Error
		}

		c.logger.Debug().
			Str("operation", operation).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("API request error")
		return apiErr
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("decode response: empty body")
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
