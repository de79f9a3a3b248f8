// Package api exposes the restaurant directory over HTTP.
//
// Routes:
//
//	GET    /                                       configuration echo
//	POST   /restaurants                            create
//	GET    /restaurants/{name}                     point read
//	DELETE /restaurants/{name}                     delete
//	POST   /restaurants/rating                     submit a rating
//	GET    /restaurants/cuisine/{cuisine}          query by cuisine
//	GET    /restaurants/region/{region}            query by region
//	GET    /restaurants/region/{region}/cuisine/{cuisine}
//	GET    /health, /ready, /metrics
//
// Query routes accept ?limit=N, clamped to [10, 100].
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/restaurant-directory/pkg/logging"
	"github.com/Sternrassler/restaurant-directory/pkg/metrics"
	"github.com/Sternrassler/restaurant-directory/pkg/restaurant"
	"github.com/Sternrassler/restaurant-directory/pkg/store"
)

// Service is the directory contract served by the API.
type Service interface {
	Create(ctx context.Context, name, cuisine, region string) error
	Get(ctx context.Context, name string) (restaurant.View, error)
	Delete(ctx context.Context, name string) error
	Rate(ctx context.Context, name string, rating float64) error
	Query(ctx context.Context, f store.Filter, limit int) ([]restaurant.View, error)
}

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Info is the configuration echoed by GET /.
type Info struct {
	RedisURL     string `json:"REDIS_URL"`
	TableName    string `json:"TABLE_NAME"`
	StoreBackend string `json:"STORE_BACKEND"`
	UseCache     bool   `json:"USE_CACHE"`
}

// Config holds the server configuration.
type Config struct {
	// Info is returned by GET /.
	Info Info

	// Checks are pinged by /ready, keyed by dependency name.
	Checks map[string]Pinger

	// ReadyTimeout bounds each readiness check (default: 2s).
	ReadyTimeout time.Duration
}

// Server routes HTTP requests to a Service.
type Server struct {
	svc    Service
	config Config
	logger zerolog.Logger
}

// New creates a server for svc.
func New(svc Service, cfg Config) *Server {
	if svc == nil {
		panic("api: service cannot be nil")
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 2 * time.Second
	}
	return &Server{
		svc:    svc,
		config: cfg,
		logger: logging.NewLogger("api"),
	}
}

// Handler returns the routed handler wrapped in request middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleInfo)
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", metrics.Handler(nil))

	mux.HandleFunc("POST /restaurants", s.handleCreate)
	mux.HandleFunc("POST /restaurants/rating", s.handleRate)
	mux.HandleFunc("GET /restaurants/{name}", s.handleGet)
	mux.HandleFunc("DELETE /restaurants/{name}", s.handleDelete)

	mux.HandleFunc("GET /restaurants/cuisine/{cuisine}", s.handleQuery)
	mux.HandleFunc("GET /restaurants/region/{region}", s.handleQuery)
	mux.HandleFunc("GET /restaurants/region/{region}/cuisine/{cuisine}", s.handleQuery)

	return requestID(s.instrument(mux))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.config.Info)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	for name, check := range s.config.Checks {
		ctx, cancel := context.WithTimeout(r.Context(), s.config.ReadyTimeout)
		err := check.Ping(ctx)
		cancel()
		if err != nil {
			logger := logging.FromContext(r.Context(), s.logger)
			logger.Error().
				Err(err).
				Str("dependency", name).
				Msg("Readiness check failed")
			http.Error(w, name+" not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
