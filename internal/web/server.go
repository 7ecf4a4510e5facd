// Package web provides the HTTP console for bulk master-data imports.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/masterdata/internal/config"
	"github.com/JonMunkholm/masterdata/internal/core"
	"github.com/JonMunkholm/masterdata/internal/web/middleware"
)

// errRateLimited is mapped to RATE001.
var errRateLimited = errors.New("rate limit exceeded")

// Server is the HTTP server for the import console.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	limiter *middleware.RateLimiter
	server  *http.Server
}

// NewServer creates a Server for service configured by cfg.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))
	s.router.Use(s.securityHeaders)

	if s.cfg.Rate.Enabled {
		s.limiter = middleware.NewRateLimiter(s.cfg.Rate.RequestsPerMinute, func(w http.ResponseWriter, r *http.Request) {
			s.respondError(w, r, errRateLimited, http.StatusTooManyRequests)
		})
		s.router.Use(s.limiter.Handler)
	}
}

// setupRoutes configures all HTTP routes. Uploads run outside the request
// timeout; they are bounded by the upload timeout instead.
func (s *Server) setupRoutes() {
	s.router.Post("/import/upload", s.handleUpload)
	s.router.Post("/api/import/upload", s.handleUpload)

	s.router.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

		// Pages
		r.Get("/", s.handleImportPage)
		r.Get("/templates", s.handleTemplatesPage)
		r.Get("/history", s.handleHistoryPage)

		// Import actions, as form posts and as JSON API calls
		for _, prefix := range []string{"/import", "/api/import"} {
			r.Post(prefix+"/target", s.handleSelectTarget)
			r.Post(prefix+"/file", s.handleSelectFile)
			r.Post(prefix+"/cancel", s.handleCancel)
			r.Post(prefix+"/parse", s.handleParse)
			r.Post(prefix+"/reset", s.handleReset)
		}

		r.Route("/api", func(r chi.Router) {
			r.Get("/import/state", s.handleState)
			r.Get("/templates/{target}", s.handleDownloadTemplate)
			r.Get("/history", s.handleHistory)
		})

		r.Get("/healthz", s.handleHealth)
	})

	s.router.Handle("/metrics", promhttp.Handler())
}

// StartBackground runs the rate limiter cleanup until ctx is cancelled.
func (s *Server) StartBackground(ctx context.Context) {
	if s.limiter != nil {
		go s.limiter.Cleanup(ctx, time.Minute, 10*time.Minute)
	}
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}

	slog.Info("starting server", "addr", sc.Addr())
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
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if s.cfg.Security.EnableCSP {
			// Pages inline their stylesheet and load nothing else.
			h.Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; form-action 'self'")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.service.SessionCount(),
	})
}

// writeJSON encodes v as JSON with status.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
