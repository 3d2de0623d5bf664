// Package api provides the HTTP surface of the decisioning service.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/credora-labs/credora/internal/domain"
	"github.com/credora-labs/credora/internal/fraud"
	"github.com/credora-labs/credora/internal/rules"
	"github.com/credora-labs/credora/internal/worker"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg *domain.Config, repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, scorer *fraud.Scorer, runner *worker.Runner, cibil domain.CibilProvider, extractor domain.TextExtractor, version string) *Server {
	handler := NewHandler(repo, cache, bus, engine, scorer, runner, cibil, extractor, cfg.UploadDir, cfg.AsyncProcessing, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Application lifecycle
	router.Post("/applications", handler.CreateApplication)
	router.Get("/applications", handler.ListApplications)
	router.Get("/applications/{id}", handler.GetApplication)
	router.Post("/applications/{id}/documents", handler.UploadDocuments)
	router.Get("/applications/{id}/documents", handler.ListDocuments)
	router.Post("/applications/{id}/process", handler.ProcessApplication)
	router.Post("/applications/{id}/review", handler.ReviewApplication)

	// Fraud rule management
	router.Get("/fraud-rules", handler.ListFraudRules)
	router.Post("/fraud-rules", handler.CreateFraudRule)
	router.Post("/fraud-rules/reload", handler.ReloadFraudRules)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg.Server,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
