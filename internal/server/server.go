// Package server provides the HTTP API for kotaeru: document upload,
// question answering, collection management, and watch administration.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/kotaeru/internal/answer"
	"github.com/hyperjump/kotaeru/internal/config"
	"github.com/hyperjump/kotaeru/internal/extract"
	"github.com/hyperjump/kotaeru/internal/ingest"
	"github.com/hyperjump/kotaeru/internal/keyword"
	"github.com/hyperjump/kotaeru/internal/vector"
	"go.uber.org/zap"
)

// apiVersion is reported by the root endpoint.
const apiVersion = "1.0.0"

// WatchService manages the watched directory set at runtime.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the kotaeru API.
type Server struct {
	engine    *answer.Engine
	pipeline  *ingest.Pipeline
	index     *vector.Collection
	keywords  *keyword.Index
	extractor *extract.Extractor
	config    *config.ServerConfig
	logger    *zap.Logger
	server    *http.Server

	watch      WatchService
	configPath string
	appConfig  *config.Config
	configMu   sync.Mutex
}

// NewServer creates a server with the given dependencies. keywords may be
// nil (document search by ?q= returns 501) and watch may be nil (watch
// endpoints return 501). configPath and appConfig enable watch-directory
// persistence, upload storage, and the status config echo; both may be
// zero in tests.
func NewServer(
	engine *answer.Engine,
	pipeline *ingest.Pipeline,
	index *vector.Collection,
	keywords *keyword.Index,
	extractor *extract.Extractor,
	cfg *config.ServerConfig,
	logger *zap.Logger,
	watch WatchService,
	configPath string,
	appConfig *config.Config,
) *Server {
	return &Server{
		engine:     engine,
		pipeline:   pipeline,
		index:      index,
		keywords:   keywords,
		extractor:  extractor,
		config:     cfg,
		logger:     logger,
		watch:      watch,
		configPath: configPath,
		appConfig:  appConfig,
	}
}

// Routes returns the router with all middleware and endpoints. The request
// timeout must cover a full retrieval plus one generator call.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/api/v1/documents/upload", s.handleUpload)
	r.Post("/api/v1/query", s.handleQuery)
	r.Get("/api/v1/documents", s.handleListDocuments)
	r.Delete("/api/v1/documents", s.handleClearDocuments)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/watch/directories", s.handleWatchDirectoriesList)
	r.Post("/api/v1/watch/directories", s.handleWatchDirectoriesAdd)
	r.Delete("/api/v1/watch/directories", s.handleWatchDirectoriesRemove)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
