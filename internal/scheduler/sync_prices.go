package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/domain"
	"github.com/aristath/bastion/internal/modules/settings"
)

// syncTimeout bounds one sync sweep, including external feed calls
const syncTimeout = 5 * time.Minute

// SnapshotReader provides the latest snapshot per portfolio
type SnapshotReader interface {
	PortfolioIDs() ([]string, error)
	LatestSnapshot(portfolioID string) (*domain.PortfolioSnapshot, error)
}

// HistorySyncer refreshes stored bars for stale symbols
type HistorySyncer interface {
	SyncStale(ctx context.Context, symbols []string) (synced int, failed int)
}

// SyncPricesJob keeps the history store fresh for every held symbol plus
// the benchmark, so assessments read local data instead of calling the
// market data feed inline
type SyncPricesJob struct {
	log       zerolog.Logger
	snapshots SnapshotReader
	syncer    HistorySyncer
	settings  *settings.Service
}

// SyncPricesConfig holds dependencies for the price sync job
type SyncPricesConfig struct {
	Log             zerolog.Logger
	Snapshots       SnapshotReader
	Syncer          HistorySyncer
	SettingsService *settings.Service
}

// NewSyncPricesJob creates a new price sync job
func NewSyncPricesJob(cfg SyncPricesConfig) *SyncPricesJob {
	return &SyncPricesJob{
		log:       cfg.Log.With().Str("job", "sync_prices").Logger(),
		snapshots: cfg.Snapshots,
		syncer:    cfg.Syncer,
		settings:  cfg.SettingsService,
	}
}

// Name returns the job name for the scheduler
func (j *SyncPricesJob) Name() string {
	return "sync_prices"
}

// Run collects the active symbol set and refreshes every stale entry
func (j *SyncPricesJob) Run() error {
	symbols, err := j.collectSymbols()
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		j.log.Debug().Msg("No symbols to sync")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	synced, failed := j.syncer.SyncStale(ctx, symbols)
	if failed > 0 && synced == 0 {
		return fmt.Errorf("all %d symbol syncs failed", failed)
	}
	return nil
}

// collectSymbols unions the held symbols of every portfolio's latest
// snapshot with the benchmark symbol
func (j *SyncPricesJob) collectSymbols() ([]string, error) {
	ids, err := j.snapshots.PortfolioIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}

	seen := make(map[string]struct{})
	for _, id := range ids {
		snap, err := j.snapshots.LatestSnapshot(id)
		if err != nil {
			j.log.Warn().Err(err).Str("portfolio_id", id).Msg("Failed to load snapshot for sync")
			continue
		}
		if snap == nil {
			continue
		}
		for _, pos := range snap.Positions {
			seen[pos.Symbol] = struct{}{}
		}
	}

	if benchmark := j.settings.RiskParams().Benchmark; benchmark != "" {
		seen[benchmark] = struct{}{}
	}

	symbols := make([]string, 0, len(seen))
	for symbol := range seen {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols, nil
}
