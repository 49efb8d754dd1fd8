// Package server provides the HTTP server and routing for Bastion.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/config"
	"github.com/aristath/bastion/internal/di"
	alertshandlers "github.com/aristath/bastion/internal/modules/alerts/handlers"
	assessmenthandlers "github.com/aristath/bastion/internal/modules/assessment/handlers"
	portfoliohandlers "github.com/aristath/bastion/internal/modules/portfolio/handlers"
	riskhandlers "github.com/aristath/bastion/internal/modules/risk/handlers"
	settingshandlers "github.com/aristath/bastion/internal/modules/settings/handlers"
	stresshandlers "github.com/aristath/bastion/internal/modules/stress/handlers"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Port      int
	DevMode   bool
	Container *di.Container // DI container with all services
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	container      *di.Container
	systemHandlers *SystemHandlers
	statusMonitor  *StatusMonitor
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	// System handlers read straight from the container services
	systemHandlers := NewSystemHandlers(
		cfg.Log,
		cfg.Config.DataDir,
		cfg.Container.ConfigDB,
		cfg.Container.AssessmentsDB,
		cfg.Container.HistoryDB,
		cfg.Container.CacheDB,
		cfg.Container.SettingsRepo,
		cfg.Container.MarketDataClient,
		cfg.Container.PriceStream,
		cfg.Container.Scheduler,
	)

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Config,
		container:      cfg.Container,
		systemHandlers: systemHandlers,
	}

	// Initialize status monitor
	s.statusMonitor = NewStatusMonitor(
		cfg.Container.EventBus,
		cfg.Container.PriceStream,
		cfg.Container.Scheduler,
		cfg.Log,
	)

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.handleHealth)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		// Events stream (SSE) - must be before other routes for proper handling
		eventsStreamHandler := NewEventsStreamHandler(s.container.EventBus, s.log)
		r.Get("/events/stream", eventsStreamHandler.ServeHTTP)

		systemHandlers := s.systemHandlers

		// System monitoring and operations
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", systemHandlers.HandleSystemStatus)
			r.Get("/stream", systemHandlers.HandleStreamStatus)
			r.Get("/jobs", systemHandlers.HandleJobsStatus)
			r.Post("/jobs/{name}/run", systemHandlers.HandleTriggerJob)
			r.Get("/database/stats", systemHandlers.HandleDatabaseStats)
			r.Get("/disk", systemHandlers.HandleDiskUsage)
		})

		// Portfolio module
		portfolioHandler := portfoliohandlers.NewHandler(
			s.container.PortfolioService,
			s.container.ProfileRepo,
			s.log,
		)
		portfolioHandler.RegisterRoutes(r)

		// Risk module
		riskHandler := riskhandlers.NewHandler(
			s.container.RiskService,
			s.container.CorrelationService,
			s.container.HistoryRepo,
			s.container.AssessmentRepo,
			s.container.SettingsService,
			s.log,
		)
		riskHandler.RegisterRoutes(r)

		// Stress module
		stressHandler := stresshandlers.NewHandler(
			s.container.StressCatalog,
			s.container.StressEngine,
			s.container.PortfolioService,
			s.log,
		)
		stressHandler.SetEventBus(s.container.EventBus)
		stressHandler.RegisterRoutes(r)

		// Assessment module
		assessmentHandler := assessmenthandlers.NewHandler(s.container.AssessmentService, s.log)
		assessmentHandler.RegisterRoutes(r)

		// Alerts module
		alertsHandler := alertshandlers.NewHandler(
			s.container.AlertMonitor,
			s.container.AssessmentRepo,
			s.container.PortfolioService,
			s.container.SettingsService,
			s.log,
		)
		alertsHandler.RegisterRoutes(r)

		// Settings module. The system handlers double as the credential
		// refresher so API key updates reach the market data client.
		settingsHandler := settingshandlers.NewHandler(
			s.container.SettingsService,
			s.container.EventBus,
			s.log,
		)
		settingsHandler.SetCredentialRefresher(systemHandlers)
		settingsHandler.SetCacheManager(s.container.CalculationCache)
		settingsHandler.RegisterRoutes(r)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	// Start status monitor (check every 60 seconds)
	if s.statusMonitor != nil {
		s.statusMonitor.Start(60 * time.Second)
		s.log.Info().Msg("Status monitor started")
	}

	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
