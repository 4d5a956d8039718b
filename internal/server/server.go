// Package server provides the HTTP API for Kotae.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kotaehq/kotae/internal/config"
	"github.com/kotaehq/kotae/internal/pipeline"
	"github.com/kotaehq/kotae/internal/watcher"
	"go.uber.org/zap"
)

// Server is the HTTP server for the Kotae API.
type Server struct {
	pipeline   *pipeline.Pipeline
	watch      *watcher.Watcher // nil when watching is disabled
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	server     *http.Server

	configMu sync.Mutex // guards config.Save on watch changes
}

// Option configures a Server.
type Option func(*Server)

// WithWatcher enables the watch-directory API. configPath, when non-empty,
// is where directory changes are persisted.
func WithWatcher(w *watcher.Watcher, configPath string) Option {
	return func(s *Server) {
		s.watch = w
		s.configPath = configPath
	}
}

// New creates a server with the given dependencies.
func New(p *pipeline.Pipeline, cfg *config.Config, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		pipeline: p,
		cfg:      cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(middleware.Compress(5))

	r.Post("/api/documents/upload", s.handleUpload)
	r.Get("/api/documents", s.handleListDocuments)
	r.Get("/api/documents/stats", s.handleStats)
	r.Delete("/api/documents/{id}", s.handleDeleteDocument)
	r.Post("/api/query", s.handleQuery)
	r.Post("/api/compare", s.handleCompare)
	r.Get("/api/watch/directories", s.handleWatchList)
	r.Post("/api/watch/directories", s.handleWatchAdd)
	r.Delete("/api/watch/directories", s.handleWatchRemove)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
