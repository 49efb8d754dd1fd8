// Package main is the entry point for the Bastion portfolio risk analytics engine.
// The service continuously assesses portfolio risk: it computes Value at Risk,
// Expected Shortfall and performance ratios, estimates cross-asset correlations,
// scores concentration and liquidity, runs stress scenarios, and raises alerts
// when configured thresholds are breached.
//
// The application follows clean architecture principles:
// - Domain layer is pure (no infrastructure dependencies)
// - Dependency injection via DI container
// - Repository pattern for data access
// - Service layer for business logic
// - HTTP handlers for API endpoints
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/bastion/internal/config"
	"github.com/aristath/bastion/internal/di"
	"github.com/aristath/bastion/internal/reliability"
	"github.com/aristath/bastion/internal/server"
	"github.com/aristath/bastion/pkg/logger"
)

// main orchestrates the system startup sequence:
// 1. Loads configuration from environment variables
// 2. Initializes the logging system
// 3. Checks for and executes pending database restores (if any)
// 4. Wires all dependencies via DI container (databases, repositories, services, jobs)
// 5. Updates configuration from the settings database (credentials, etc.)
// 6. Starts the HTTP server for API endpoints
// 7. Starts the job scheduler and the market data price stream
// 8. Waits for shutdown signal and performs graceful shutdown
//
// The application uses a 4-database architecture:
// - config.db: Application configuration (settings, stress scenarios, asset profiles)
// - assessments.db: Immutable assessment ledger (assessments, alerts)
// - history.db: Historical time-series data (daily prices, portfolio snapshots)
// - cache.db: Ephemeral calculation cache (correlation matrices)
func main() {
	// Load configuration first to get log level
	// Configuration is loaded from environment variables (.env file) and can be
	// updated later from the settings database (for credentials, etc.)
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		// This ensures we can log the configuration error even if config loading fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger with config level
	// Logger uses structured logging (zerolog) with configurable log levels
	// Pretty mode enables human-readable output for development
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().Msg("Starting Bastion")

	// Check for pending restore BEFORE initializing databases
	// Restores are staged by the backup service and executed on next startup so
	// that database files are replaced before any connections are opened. This
	// prevents partial restores that could corrupt a running system.
	restoreSvc := reliability.NewRestoreService(nil, cfg.DataDir, log)
	hasPendingRestore, err := restoreSvc.CheckPendingRestore()
	if err != nil {
		log.Error().Err(err).Msg("Failed to check for pending restore")
	}

	if hasPendingRestore {
		log.Warn().Msg("Pending restore detected, executing staged restore...")
		if err := restoreSvc.ExecuteStagedRestore(); err != nil {
			log.Fatal().Err(err).Msg("Failed to execute staged restore")
		}
		log.Info().Msg("Restore completed successfully, proceeding with normal startup")
	}

	// Wire all dependencies using DI container
	// The DI container follows clean architecture principles:
	// - Databases are initialized first (4-database architecture)
	// - Repositories are created with database connections
	// - Services are created with repository dependencies
	// - Background jobs are registered with the scheduler
	// - All dependencies are injected via constructor injection
	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	// Cleanup databases on exit
	// All databases must be properly closed to ensure WAL checkpoints are written
	// and database integrity is maintained. Using defer ensures cleanup even on panic.
	defer container.ConfigDB.Close()
	defer container.AssessmentsDB.Close()
	defer container.HistoryDB.Close()
	defer container.CacheDB.Close()
	defer container.HistoryBarsConn.Close()

	// Update config from settings DB (credentials, etc.)
	// Settings database takes precedence over environment variables for runtime
	// configuration. This allows users to update the market data API key and R2
	// credentials via the API without restarting the application.
	if err := cfg.UpdateFromSettings(container.SettingsRepo); err != nil {
		log.Warn().Err(err).Msg("Failed to update config from settings DB, using environment variables")
	}

	// Initialize HTTP server
	// The HTTP server provides REST API endpoints for:
	// - Portfolio management (snapshots, asset profiles)
	// - Risk analytics (VaR, Expected Shortfall, performance ratios, correlations)
	// - Stress testing (scenario catalog, scenario application)
	// - Assessments (full risk assessment runs and their history)
	// - Alerts (threshold evaluation and recent alerts)
	// - Settings management (risk parameters, thresholds, credentials)
	// - System operations (health checks, job status, backups, disk usage)
	srv := server.New(server.Config{
		Port:      cfg.Port,
		Log:       log,
		Config:    cfg,
		DevMode:   cfg.DevMode,
		Container: container,
	})

	// Start server in goroutine
	// The HTTP server runs in a separate goroutine so it doesn't block the main
	// thread. This allows the scheduler and price stream to start concurrently.
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Start job scheduler (assessment sweeps, price sync, backups, maintenance)
	// Jobs run on cron schedules registered in di.RegisterJobs. The scheduler
	// emits JobStarted/JobCompleted/JobFailed events for each run.
	container.Scheduler.Start()
	log.Info().Msg("Job scheduler started")

	// Start market data price stream
	// The WebSocket stream feeds live prices into the history database and keeps
	// risk numbers current between sync cycles. The engine remains fully
	// functional without it, assessments then use the latest synced bars.
	if err := container.PriceStream.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start price stream, continuing without live prices")
	} else {
		log.Info().Msg("Price stream started")
	}

	// Wait for interrupt signal
	// The application blocks here until it receives SIGINT (Ctrl+C) or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Stop scheduler first so no new jobs start during shutdown
	if container.Scheduler != nil {
		container.Scheduler.Stop()
		log.Info().Msg("Job scheduler stopped")
	}

	// Stop price stream
	// Stopping it closes the WebSocket connection gracefully.
	if container.PriceStream != nil {
		if err := container.PriceStream.Stop(); err != nil {
			log.Error().Err(err).Msg("Error stopping price stream")
		} else {
			log.Info().Msg("Price stream stopped")
		}
	}

	// Graceful shutdown
	// The HTTP server is given up to 10 seconds to finish processing in-flight
	// requests and close connections gracefully. If the timeout is exceeded, the
	// server is forced to shutdown, which may interrupt active requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
