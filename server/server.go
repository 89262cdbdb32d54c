// Package server provides HTTP server management and lifecycle handling
// for the prescriber API. It includes server setup, middleware
// configuration, route management, and graceful shutdown capabilities
// with proper error handling and logging.
package server

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/medikit/prescriptor-api/config"
	"github.com/medikit/prescriptor-api/finance"
	"github.com/medikit/prescriptor-api/handlers"
	"github.com/medikit/prescriptor-api/interfaces"
	"github.com/medikit/prescriptor-api/logging"
	"github.com/medikit/prescriptor-api/metrics"
	"github.com/medikit/prescriptor-api/prescribing"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps carries the services the routes are built on.
type Deps struct {
	Searcher    interfaces.Searcher
	Learner     interfaces.Learner
	Syncer      interfaces.Syncer
	Health      interfaces.HealthChecker
	Prescribing *prescribing.Service
	Finance     *finance.Service
}

// Server represents the HTTP server
type Server struct {
	server *http.Server
	router chi.Router
	deps   Deps
	config *config.Config
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, deps Deps) *Server {
	router := chi.NewRouter()

	server := &Server{
		server: &http.Server{
			Handler:      router,
			Addr:         cfg.Address + ":" + cfg.Port,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router: router,
		deps:   deps,
		config: cfg,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures all middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(RealIPMiddleware)
	s.router.Use(logging.Middleware(logging.DefaultLoggingService.Logger))
	s.router.Use(middleware.RedirectSlashes)
	s.router.Use(middleware.Recoverer)
	s.router.Use(RequestSizeMiddleware(s.config))
	s.router.Use(NewRateLimiter(s.config.RateLimitRate, s.config.RateLimitBurst).Handler)
	s.router.Use(metrics.Metrics)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/search/medications", handlers.SearchMedications(s.deps.Searcher))
	s.router.Get("/search/diagnoses", handlers.SearchDiagnoses(s.deps.Searcher))
	s.router.Get("/suggestions/{code}", handlers.SuggestTreatments(s.deps.Learner))
	s.router.Post("/learn", handlers.LearnTreatment(s.deps.Learner))
	s.router.Delete("/treatments/{id}", handlers.ForgetTreatment(s.deps.Learner))

	s.router.Post("/prescriptions", handlers.CreatePrescription(s.deps.Prescribing))
	s.router.Get("/prescriptions", handlers.ListPrescriptions(s.deps.Prescribing))
	s.router.Get("/prescriptions/{id}", handlers.GetPrescription(s.deps.Prescribing))
	s.router.Delete("/prescriptions/{id}", handlers.DeletePrescription(s.deps.Prescribing))

	s.router.Post("/patients", handlers.SavePatient(s.deps.Prescribing))
	s.router.Get("/patients", handlers.ListPatients(s.deps.Prescribing))
	s.router.Get("/patients/{id}", handlers.GetPatient(s.deps.Prescribing))
	s.router.Delete("/patients/{id}", handlers.DeletePatient(s.deps.Prescribing))

	s.router.Get("/finance/config", handlers.GetFinanceConfig(s.deps.Finance))
	s.router.Put("/finance/config", handlers.PutFinanceConfig(s.deps.Finance))
	s.router.Get("/finance/summary", handlers.GetFinanceSummary(s.deps.Finance))

	s.router.Post("/sync", handlers.SyncCatalog(s.deps.Syncer))
	s.router.Get("/health", handlers.HealthCheck(s.deps.Health))
	s.router.Handle("/metrics", promhttp.Handler())
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// Start starts the server
func (s *Server) Start() error {
	// Start profiling server if in development mode
	if s.config.Env == "dev" {
		s.startProfilingServer()
	}

	logging.Info(fmt.Sprintf("Starting server at: %s:%s", s.config.Address, s.config.Port))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	if err := s.server.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
		// If graceful shutdown fails, force close
		if err := s.server.Close(); err != nil {
			logging.Error("Server close error", "error", err)
			return err
		}
	}

	logging.Info("Server shutdown complete")
	return nil
}

// startProfilingServer starts the pprof profiling server in development mode
func (s *Server) startProfilingServer() {
	go func() {
		logging.Info("Profiling server started at http://localhost:6060/debug/pprof/")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			logging.Warn("Profiling server failed", "error", err)
		}
	}()
}
