// Package web exposes the record services over a JSON HTTP API.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/justestif/go-record-collection/internal/auth"
	"github.com/justestif/go-record-collection/internal/catalog"
	"github.com/justestif/go-record-collection/internal/collection"
	"github.com/justestif/go-record-collection/internal/eras"
	"github.com/justestif/go-record-collection/internal/records"
	"github.com/justestif/go-record-collection/internal/store"
)

// DefaultAddr is the default server address.
const DefaultAddr = "127.0.0.1:8080"

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr   string
	Logger *slog.Logger
}

// Deps are the services the handlers call.
type Deps struct {
	Records    *records.Service
	Collection *collection.Service
	Auth       *auth.Service
	Verifier   auth.Verifier
	Catalog    *catalog.Service
	Eras       *eras.Service
	Tags       store.TagStore
	Ping       func(ctx context.Context) error
}

// Server is the HTTP server for the API.
type Server struct {
	router   chi.Router
	server   *http.Server
	handlers *Handlers
	logger   *slog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, deps Deps) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With("component", "web")

	router := chi.NewRouter()

	s := &Server{
		router:   router,
		handlers: NewHandlers(deps, logger),
		logger:   logger,
	}

	s.setupMiddleware()
	s.setupRoutes(deps.Verifier)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures routes for the application.
func (s *Server) setupRoutes(verifier auth.Verifier) {
	h := s.handlers
	requireAuth := auth.Middleware(verifier)

	s.router.Get("/health-check", h.HealthCheck)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(requireAuth).Get("/me", h.Me)
	})

	// Anonymous read through a collection token. The static
	// /records/collection/tokens routes below take precedence over {token}.
	s.router.Get("/records/collection/{token}", h.GetCollection)

	s.router.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/records", h.ListRecords)
		r.Post("/records", h.CreateRecord)
		r.Post("/records/batch", h.CreateRecords)
		r.Post("/records/import", h.ImportRecords)
		r.Get("/records/random", h.RandomRecord)
		r.Get("/records/search", h.SearchCatalog)
		r.Get("/records/eras", h.Eras)

		r.Get("/records/collection/tokens", h.GetToken)
		r.Post("/records/collection/tokens", h.CreateToken)
		r.Delete("/records/collection/tokens", h.RevokeTokens)
		r.Delete("/records/collection/tokens/{token}", h.DeleteToken)

		r.Get("/records/{id}", h.GetRecord)
		r.Delete("/records/{id}", h.DeleteRecord)

		r.Get("/tags", h.ListTags)
	})
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", "http://"+s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt signals.
func (s *Server) Run() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
		s.logger.Info("shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}
