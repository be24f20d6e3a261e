// Package web provides the JSON HTTP API over the cached tables.
package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Jakar510/jakardb/internal/cache"
	"github.com/Jakar510/jakardb/internal/config"
	"github.com/Jakar510/jakardb/internal/core"
	"github.com/Jakar510/jakardb/internal/logging"
	mw "github.com/Jakar510/jakardb/internal/web/middleware"
	"github.com/VictoriaMetrics/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// MaxBodySize bounds request bodies for record writes.
const MaxBodySize = 1 << 20

// Service is what the server needs from core.Service.
type Service interface {
	Tables() []core.TableInfo
	Table(key string) (core.Handle, error)
	Flush(ctx context.Context) error
	Ping(ctx context.Context) error
	Stats() []cache.Stats
	WritePrometheus(w io.Writer)
}

// Server is the HTTP server for the table API.
type Server struct {
	service Service
	cfg     *config.Config
	router  *chi.Mux
	limiter *mw.RateLimiter
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(service Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.limiter = mw.NewRateLimiter(cfg.Rate.RequestsPerMinute, cfg.Rate.Burst)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(securityHeaders)

	if s.limiter != nil {
		s.router.Use(s.limiter.Middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/metrics", s.handleMetrics)

	auth := mw.APIKeyAuth(s.cfg.Security.RequireAPIKey, s.cfg.Security.APIKeys)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/tables", s.handleListTables)
		r.With(auth).Post("/flush", s.handleFlushAll)

		r.Route("/tables/{table}", func(r chi.Router) {
			r.Get("/stats", s.handleTableStats)
			r.With(auth).Post("/flush", s.handleFlushTable)

			r.Get("/records", s.handleListRecords)
			r.With(auth).Post("/records", s.handleCreateRecord)
			r.Get("/records/{id}", s.handleGetRecord)
			r.With(auth).Put("/records/{id}", s.handlePutRecord)
			r.With(auth).Delete("/records/{id}", s.handleDeleteRecord)
		})
	})
}

// Start begins listening for HTTP requests. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	if s.limiter != nil {
		go s.limiter.Run(ctx)
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}

// writeMetrics writes process metrics followed by every cache's series.
func writeMetrics(w io.Writer, svc Service) {
	metrics.WritePrometheus(w, true)
	svc.WritePrometheus(w)
}

// healthTimeout bounds the database ping of /healthz.
const healthTimeout = 2 * time.Second
