package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/dittosmb/internal/logger"
)

// ServerConfig configures the metrics HTTP server.
type ServerConfig struct {
	// Listen is the HTTP address, e.g. ":9090".
	Listen string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func (c *ServerConfig) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":9090"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
}

// Server exposes Prometheus metrics and health probes over HTTP.
//
// Endpoints:
//   - GET /metrics: Prometheus exposition of reg
//   - GET /health: liveness probe
//   - GET /health/ready: readiness probe backed by a ReadinessFunc
type Server struct {
	server       *http.Server
	config       ServerConfig
	shutdownOnce sync.Once

	addrMu sync.RWMutex
	addr   string
}

// NewServer returns a stopped server. reg may be nil, in which case
// /metrics answers 503.
func NewServer(config ServerConfig, reg *prometheus.Registry, ready ReadinessFunc) *Server {
	config.applyDefaults()

	return &Server{
		server: &http.Server{
			Addr:         config.Listen,
			Handler:      NewRouter(reg, ready),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		config: config,
	}
}

// NewRouter builds the chi router behind Server.
func NewRouter(reg *prometheus.Registry, ready ReadinessFunc) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	if reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			Registry:          reg,
		}))
	} else {
		r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintln(w, "Metrics collection is disabled")
		})
	}

	health := &healthHandler{service: "dittosmb", startTime: time.Now(), ready: ready}
	r.Route("/health", func(r chi.Router) {
		r.Get("/", health.liveness)
		r.Get("/ready", health.readiness)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// Start listens and serves until ctx is cancelled, then shuts down.
//
// Returns nil on graceful shutdown, or an error if the listener cannot be
// created or the server fails.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("metrics server listen on %s: %w", s.config.Listen, err)
	}
	s.addrMu.Lock()
	s.addr = ln.Addr().String()
	s.addrMu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Metrics server listening", "address", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Metrics server shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("metrics server failed: %w", err)
	}
}

// Stop shuts the server down. Only the first call has an effect.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("metrics server shutdown: %w", err)
			logger.Error("Metrics server shutdown error", logger.KeyError, err)
			return
		}
		logger.Info("Metrics server stopped")
	})
	return shutdownErr
}

// Addr returns the bound address once Start has listened, or "".
func (s *Server) Addr() string {
	s.addrMu.RLock()
	defer s.addrMu.RUnlock()
	return s.addr
}

func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}

// requestLogger logs every request through the internal logger. Probe and
// scrape requests are logged at DEBUG.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		args := []any{
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		}
		if isHealthPath(r.URL.Path) || r.URL.Path == "/metrics" {
			logger.Debug("HTTP request completed", args...)
		} else {
			logger.Info("HTTP request completed", args...)
		}
	})
}
