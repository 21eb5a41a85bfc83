package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/traceon/internal/check"
	"github.com/kozaktomas/traceon/internal/config"
	"github.com/kozaktomas/traceon/internal/constants"
	"github.com/kozaktomas/traceon/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	config     *config.Config
	service    *check.Service
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer creates a new web server serving checks through svc.
func NewServer(cfg *config.Config, svc *check.Service) *Server {
	r := chi.NewRouter()

	extractTimeout := cfg.Extractor.Timeout
	if extractTimeout <= 0 {
		extractTimeout = constants.DefaultExtractTimeout
	}

	s := &Server{
		config:  cfg,
		service: svc,
		router:  r,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(2 * extractTimeout))
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2*extractTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Infof("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
