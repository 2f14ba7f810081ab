// Package http exposes the resolver over a small JSON API with health and
// Prometheus endpoints.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"trackbridge/internal/core"
	"trackbridge/internal/flood"
	"trackbridge/internal/store"
)

const (
	// shutdownTimeout bounds graceful shutdown.
	shutdownTimeout = 10 * time.Second
	// dedupFalsePositiveRate is the Bloom filter rate of the message cache.
	dedupFalsePositiveRate = 0.001
	// floodWindow is the rate limiting window for resolve calls.
	floodWindow = time.Minute
)

// Resolver is the part of core.Orchestrator the API needs.
type Resolver interface {
	Resolve(ctx context.Context, text string) (*core.Result, error)
	Playable(ctx context.Context, result *core.Result) map[core.Service][]core.ResourceRef
	Services() []core.Service
}

type Server struct {
	config   *core.ServerConfig
	logger   *zap.Logger
	server   *http.Server
	metrics  *Metrics
	resolver Resolver
	flood    *flood.Floodgate
	// messages replays the answer of a redelivered chat message, keyed by its
	// message id. A message id never seen before is always resolved afresh.
	messages *store.DedupStore[*resolveResponse]
}

func NewServer(config *core.ServerConfig, resolver Resolver, metrics *Metrics, logger *zap.Logger) *Server {
	if metrics == nil {
		metrics = NewMetrics()
	}

	s := &Server{
		config:   config,
		logger:   logger,
		metrics:  metrics,
		resolver: resolver,
		flood:    flood.New(config.RequestsPerMinute, floodWindow),
		messages: store.NewDedupStore[*resolveResponse](config.DedupCapacity, dedupFalsePositiveRate),
	}
	metrics.ObserveFloodgate(s.flood)
	s.server = createHTTPServer(config, s.setupRoutes())
	return s
}

func createHTTPServer(config *core.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           handler,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
	}
}

func (s *Server) setupRoutes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(s.logRequests)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "trackbridge"})
	})
	router.Get("/readyz", s.handleReady)
	router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	router.Post("/v1/resolve", s.handleResolve)

	return router
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("requestID", middleware.GetReqID(r.Context())),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	services := s.resolver.Services()
	if len(services) == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "no catalogs configured"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "services": services})
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
		s.flood.Stop()
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}
