/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to handlers for access to services.
 */
package di

import (
	"database/sql"

	"github.com/aristath/bastion/internal/clients/marketdata"
	"github.com/aristath/bastion/internal/database"
	"github.com/aristath/bastion/internal/events"
	"github.com/aristath/bastion/internal/modules/alerts"
	"github.com/aristath/bastion/internal/modules/assessment"
	"github.com/aristath/bastion/internal/modules/calculations"
	"github.com/aristath/bastion/internal/modules/correlation"
	"github.com/aristath/bastion/internal/modules/history"
	"github.com/aristath/bastion/internal/modules/portfolio"
	"github.com/aristath/bastion/internal/modules/risk"
	"github.com/aristath/bastion/internal/modules/scoring"
	"github.com/aristath/bastion/internal/modules/settings"
	"github.com/aristath/bastion/internal/modules/stress"
	"github.com/aristath/bastion/internal/reliability"
	"github.com/aristath/bastion/internal/scheduler"
)

/**
 * Container holds all dependencies for the application.
 *
 * This is the single source of truth for all service instances.
 * The container is created by Wire() and passed to handlers for access to services.
 *
 * Architecture:
 * - Databases: 4-database architecture (config, assessments, history, cache)
 * - Clients: External market data integrations (REST client, price stream)
 * - Repositories: Data access layer (settings, profiles, snapshots, bars, assessments)
 * - Services: Business logic layer (risk, correlation, stress, scoring, alerts, assessment)
 * - Reliability: Backups, health checks, R2 offsite copies, staged restore
 * - Scheduler: Cron-driven background jobs
 *
 * All dependencies are injected via constructor injection following clean architecture principles.
 */
type Container struct {
	// Databases (4-database architecture)
	// Each database uses SQLite with WAL mode and profile-specific PRAGMAs for optimal performance
	ConfigDB      *database.DB // Application configuration (settings, asset profiles)
	AssessmentsDB *database.DB // Immutable assessment ledger (assessments, alerts, snapshots)
	HistoryDB     *database.DB // Historical time-series data (daily prices)
	CacheDB       *database.DB // Ephemeral calculation cache (correlation matrices)

	// HistoryBarsConn is a second handle onto history.db, opened through
	// the mattn driver for the bar repository. Both handles point at the
	// same WAL file.
	HistoryBarsConn *sql.DB

	// Clients - External API integrations
	MarketDataClient *marketdata.Client      // Market data REST client (bars, returns)
	PriceStream      *marketdata.PriceStream // Market data websocket stream

	// EventBus distributes domain events to the SSE stream and monitors
	EventBus *events.Bus

	// Repositories - Data access layer
	// Repositories abstract database access and provide clean interfaces for services
	SettingsRepo   *settings.Repository          // Application settings
	ProfileRepo    *portfolio.ProfileRepository  // Per-asset profiles (class, liquidity)
	SnapshotRepo   *portfolio.SnapshotRepository // Portfolio snapshots
	HistoryRepo    *history.Repository           // Daily price bars
	AssessmentRepo *assessment.Repository        // Risk assessment ledger

	// Services - Business logic layer
	// Services implement business logic and coordinate between repositories and domain models
	SettingsService    *settings.Service    // Settings management with typed accessors
	PortfolioService   *portfolio.Service   // Snapshot building and persistence
	SyncService        *history.SyncService // Price history synchronization
	CalculationCache   *calculations.Cache  // Calculation result caching
	CorrelationService *correlation.Service // Correlation matrix estimation
	RiskService        *risk.Service        // VaR, ES and performance metrics
	StressCatalog      *stress.Catalog      // Stress scenario catalog
	StressEngine       *stress.Engine       // Scenario application
	ScoringAggregator  *scoring.Aggregator  // Composite risk score and grading
	AlertMonitor       *alerts.Monitor      // Threshold breach detection
	AssessmentService  *assessment.Service  // Full assessment pipeline

	// Reliability - Backups and recovery
	BackupService   *reliability.BackupService                    // Local database backups
	HealthServices  map[string]*reliability.DatabaseHealthService // Database health checks
	R2Client        *reliability.R2Client                         // Cloudflare R2 client (optional)
	R2BackupService *reliability.R2BackupService                  // R2 cloud backup service (optional)
	RestoreService  *reliability.RestoreService                   // Database restore service

	// Scheduler - Background job system
	Scheduler *scheduler.Scheduler

	// Databases keyed by name, shared by backups, maintenance and the
	// system endpoints
	Databases map[string]*database.DB
}
