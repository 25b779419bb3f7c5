package httpserver

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/PortNumber53/membership-metrics/internal/config"
	"github.com/PortNumber53/membership-metrics/internal/handlers"
	dashauth "github.com/PortNumber53/membership-metrics/internal/middleware"
	"github.com/PortNumber53/membership-metrics/internal/snapshot"
)

// Server wraps an http.Server with convenience helpers for startup/shutdown.
type Server struct {
	httpServer *http.Server
	scheduler  *snapshot.Scheduler
}

// New constructs an HTTP server serving the dashboard API. scheduler may be
// nil when background refreshes are disabled.
func New(cfg config.Config, dashboard *handlers.DashboardHandler, scheduler *snapshot.Scheduler) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", handlers.Health(dashboard.Source))

	auth := dashauth.NewDashboardAuth(cfg.DashboardPassword)
	router.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware())
		dashboard.RegisterRoutes(r)
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: srv, scheduler: scheduler}
}

// Start begins serving HTTP traffic and starts the refresh scheduler.
func (s *Server) Start() error {
	if s.scheduler != nil {
		log.Println("[server] Starting refresh scheduler...")
		s.scheduler.Start()
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the refresh scheduler and HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.scheduler != nil {
		log.Println("[server] Shutting down refresh scheduler...")
		if err := s.scheduler.Stop(ctx); err != nil {
			log.Printf("[server] Scheduler shutdown error: %v", err)
		}
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
