// Package server exposes the translation pipeline over HTTP: convert,
// validate and analyze endpoints plus optional conversion history.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/gowl/internal/config"
	"github.com/me/gowl/internal/convert"
	"github.com/me/gowl/internal/store"
)

// Server is the translator's REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.Config
	startTime time.Time
	conv      *convert.Converter
	history   store.Store // optional; nil disables history endpoints
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithHistory enables the conversion-history endpoints backed by st.
func WithHistory(st store.Store) Option {
	return func(s *Server) {
		s.history = st
	}
}

// New creates a Server with all routes registered.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		conv:      convert.New(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/convert", s.handleConvert)
		r.Post("/validate", s.handleValidate)
		r.Post("/stats", s.handleStats)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRun)
				r.Get("/documents", s.handleListRunDocuments)
			})
		})
	})
}
