// Package di provides dependency injection for database connections.
package di

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/config"
	"github.com/aristath/bastion/internal/database"
)

// InitializeDatabases initializes all 4 databases and applies schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. config.db - Application configuration (settings, asset profiles)
	configDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/config.db",
		Profile: database.ProfileStandard,
		Name:    "config",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config database: %w", err)
	}
	container.ConfigDB = configDB

	// 2. assessments.db - Immutable assessment ledger (assessments, alerts, snapshots)
	assessmentsDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/assessments.db",
		Profile: database.ProfileLedger, // Maximum safety for the immutable assessment trail
		Name:    "assessments",
	})
	if err != nil {
		configDB.Close()
		return nil, fmt.Errorf("failed to initialize assessments database: %w", err)
	}
	container.AssessmentsDB = assessmentsDB

	// 3. history.db - Historical time-series data (daily prices)
	historyDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/history.db",
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		configDB.Close()
		assessmentsDB.Close()
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}
	container.HistoryDB = historyDB

	// 4. cache.db - Ephemeral calculation cache (correlation matrices)
	cacheDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/cache.db",
		Profile: database.ProfileCache, // Maximum speed for ephemeral data
		Name:    "cache",
	})
	if err != nil {
		configDB.Close()
		assessmentsDB.Close()
		historyDB.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	// Apply schemas to all databases (single source of truth)
	for _, db := range []*database.DB{configDB, assessmentsDB, historyDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			// Cleanup on error
			configDB.Close()
			assessmentsDB.Close()
			historyDB.Close()
			cacheDB.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	// Second handle onto history.db through the mattn driver. The bar
	// repository issues large sequential scans and bulk upserts; keeping
	// them off the lifecycle handle stops a long read from blocking
	// checkpoints.
	historyBarsConn, err := sql.Open("sqlite3", historyDB.Path()+"?_busy_timeout=5000")
	if err != nil {
		configDB.Close()
		assessmentsDB.Close()
		historyDB.Close()
		cacheDB.Close()
		return nil, fmt.Errorf("failed to open history bars connection: %w", err)
	}
	container.HistoryBarsConn = historyBarsConn

	log.Info().Msg("All databases initialized and schemas applied")

	return container, nil
}
