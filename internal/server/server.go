// Package server provides the HTTP API the CMS host talks to.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitebrain/sitebrain/internal/config"
	"github.com/sitebrain/sitebrain/internal/indexer"
	"github.com/sitebrain/sitebrain/internal/queue"
	"github.com/sitebrain/sitebrain/internal/search"
	"github.com/sitebrain/sitebrain/internal/storage"
)

// Server is the HTTP server for the sitebrain API.
type Server struct {
	engine  *search.Engine
	indexer *indexer.Indexer
	worker  *queue.Worker
	store   *storage.Store
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *search.Engine,
	ix *indexer.Indexer,
	worker *queue.Worker,
	store *storage.Store,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:  engine,
		indexer: ix,
		worker:  worker,
		store:   store,
		config:  cfg,
		logger:  logger,
	}
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/pages", s.handleIndexPage)
	r.Get("/api/v1/pages/{id}/vectors", s.handleHasVectors)
	r.Delete("/api/v1/pages/{id}/vectors", s.handleDeleteVectors)
	r.Post("/api/v1/queue/pages", s.handleEnqueuePage)
	r.Post("/api/v1/queue/files", s.handleEnqueueFile)
	r.Post("/api/v1/queue/urls", s.handleEnqueueURL)
	r.Get("/api/v1/queue/{id}", s.handleGetDocument)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router(),
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

// requestID tags each request with a UUID for log correlation.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		s.logger.Debug("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}
