// Package di provides dependency injection for service implementations.
package di

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/clients/marketdata"
	"github.com/aristath/bastion/internal/config"
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
)

// InitializeServices creates all services and stores them in the container
// This is the SINGLE SOURCE OF TRUTH for all service creation
// Services are created in dependency order to ensure all dependencies exist
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// ==========================================
	// STEP 1: Initialize Event Bus
	// ==========================================

	container.EventBus = events.NewBus(log)

	// ==========================================
	// STEP 2: Initialize Clients
	// ==========================================

	// Market data REST client. The API key in settings wins over the
	// environment so key rotation doesn't need a restart.
	apiKey := cfg.MarketDataAPIKey
	if container.SettingsRepo != nil {
		if key, err := container.SettingsRepo.Get("market_data_api_key"); err == nil && key != nil && *key != "" {
			apiKey = *key
		}
	}
	container.MarketDataClient = marketdata.NewClient(cfg.MarketDataURL, apiKey, log)
	if apiKey != "" {
		log.Info().Msg("Market data client initialized with API key")
	} else {
		log.Info().Msg("Market data client initialized (no API key configured)")
	}

	// ==========================================
	// STEP 3: Initialize Core Services
	// ==========================================

	// Settings service (typed accessors over the settings repository)
	container.SettingsService = settings.NewService(container.SettingsRepo, log)

	// Portfolio service (snapshot building and persistence)
	container.PortfolioService = portfolio.NewService(
		container.ProfileRepo,
		container.SnapshotRepo,
		log,
	)

	// History sync service (pull bars from the market data feed)
	container.SyncService = history.NewSyncService(
		container.HistoryRepo,
		container.MarketDataClient,
		log,
	)

	// Calculation cache (correlation matrices keyed by input hash)
	container.CalculationCache = calculations.NewCache(container.CacheDB.Conn(), log)

	// ==========================================
	// STEP 4: Initialize Risk Pipeline
	// ==========================================

	// Correlation service (model predictor with identity fallback)
	container.CorrelationService = correlation.NewService(
		correlation.NewSamplePredictor(),
		container.CalculationCache,
		log,
	)

	// Risk engine (VaR, ES, performance ratios, concentration)
	container.RiskService = risk.NewService(
		container.CorrelationService,
		container.ProfileRepo,
		log,
	)

	// Stress scenario catalog. With no path configured the embedded
	// defaults are used.
	stressCatalog, err := stress.NewCatalog(cfg.ScenariosPath, log)
	if err != nil {
		return fmt.Errorf("failed to load stress scenario catalog: %w", err)
	}
	container.StressCatalog = stressCatalog
	container.StressEngine = stress.NewEngine(log)

	// Scoring and threshold monitoring
	container.ScoringAggregator = scoring.NewAggregator(log)
	container.AlertMonitor = alerts.NewMonitor(log)

	// ==========================================
	// STEP 5: Initialize Assessment Service
	// ==========================================

	container.AssessmentService = assessment.NewService(
		container.PortfolioService,
		container.HistoryRepo,
		container.RiskService,
		container.StressEngine,
		container.StressCatalog,
		container.ScoringAggregator,
		container.AlertMonitor,
		container.SettingsService,
		container.AssessmentRepo,
		log,
	)
	container.AssessmentService.SetEventBus(container.EventBus)

	// ==========================================
	// STEP 6: Initialize Price Stream
	// ==========================================

	// The stream subscribes to every held symbol plus the benchmark and
	// writes pushed bars through the sync service.
	streamSymbols := collectStreamSymbols(container, log)
	container.PriceStream = marketdata.NewPriceStream(
		cfg.MarketDataWSURL,
		streamSymbols,
		container.SyncService,
		container.EventBus,
		log,
	)

	// ==========================================
	// STEP 7: Initialize Reliability Services
	// ==========================================

	// Create all database references map for reliability services
	databases := map[string]*database.DB{
		"config":      container.ConfigDB,
		"assessments": container.AssessmentsDB,
		"history":     container.HistoryDB,
		"cache":       container.CacheDB,
	}
	container.Databases = databases

	dataDir := cfg.DataDir
	backupDir := dataDir + "/backups"

	// Initialize health services for each database
	container.HealthServices = make(map[string]*reliability.DatabaseHealthService)
	container.HealthServices["config"] = reliability.NewDatabaseHealthService(container.ConfigDB, backupDir, log)
	container.HealthServices["assessments"] = reliability.NewDatabaseHealthService(container.AssessmentsDB, backupDir, log)
	container.HealthServices["history"] = reliability.NewDatabaseHealthService(container.HistoryDB, backupDir, log)
	container.HealthServices["cache"] = reliability.NewDatabaseHealthService(container.CacheDB, backupDir, log)

	// Initialize backup service
	container.BackupService = reliability.NewBackupService(databases, dataDir, backupDir, log)

	// Initialize R2 cloud backup services (optional - only if credentials are configured)
	r2AccountID := cfg.R2AccountID
	r2AccessKeyID := cfg.R2AccessKeyID
	r2SecretAccessKey := cfg.R2SecretKey
	r2BucketName := cfg.R2Bucket

	if container.SettingsRepo != nil {
		if val, err := container.SettingsRepo.Get("r2_account_id"); err == nil && val != nil && *val != "" {
			r2AccountID = *val
		}
		if val, err := container.SettingsRepo.Get("r2_access_key_id"); err == nil && val != nil && *val != "" {
			r2AccessKeyID = *val
		}
		if val, err := container.SettingsRepo.Get("r2_secret_access_key"); err == nil && val != nil && *val != "" {
			r2SecretAccessKey = *val
		}
		if val, err := container.SettingsRepo.Get("r2_bucket_name"); err == nil && val != nil && *val != "" {
			r2BucketName = *val
		}
	}

	// Only initialize R2 services if all credentials are provided
	if r2AccountID != "" && r2AccessKeyID != "" && r2SecretAccessKey != "" && r2BucketName != "" {
		r2Client, err := reliability.NewR2Client(r2AccountID, r2AccessKeyID, r2SecretAccessKey, r2BucketName, log)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize R2 client - R2 backup disabled")
		} else {
			container.R2Client = r2Client
			container.R2BackupService = reliability.NewR2BackupService(
				r2Client,
				container.BackupService,
				dataDir,
				log,
			)
			container.RestoreService = reliability.NewRestoreService(r2Client, dataDir, log)
			log.Info().Msg("R2 cloud backup services initialized")
		}
	} else {
		log.Debug().Msg("R2 credentials not configured - R2 backup disabled")
	}

	log.Info().Msg("All services initialized")

	return nil
}

// collectStreamSymbols gathers the symbols the price stream should
// subscribe to: every symbol held in a stored snapshot plus the
// benchmark. Symbols already tracked in history are included so a
// cleared portfolio keeps its series current.
func collectStreamSymbols(container *Container, log zerolog.Logger) []string {
	seen := make(map[string]bool)

	ids, err := container.PortfolioService.PortfolioIDs()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list portfolios for stream subscription")
	}
	for _, id := range ids {
		snap, err := container.PortfolioService.LatestSnapshot(id)
		if err != nil || snap == nil {
			continue
		}
		for _, p := range snap.Positions {
			seen[p.Symbol] = true
		}
	}

	tracked, err := container.HistoryRepo.Symbols()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list tracked symbols for stream subscription")
	}
	for _, s := range tracked {
		seen[s] = true
	}

	if benchmark := container.SettingsService.RiskParams().Benchmark; benchmark != "" {
		seen[benchmark] = true
	}

	symbols := make([]string, 0, len(seen))
	for s := range seen {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
