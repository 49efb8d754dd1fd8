package history

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// SyncThresholdHours is how old the latest stored bar must be before a
// symbol requires a refresh (24 hours).
const SyncThresholdHours = 24

// DefaultSyncBars is how many daily bars a full refresh requests.
// Covers the longest supported lookback (365 trading days) with slack.
const DefaultSyncBars = 400

// BarSource provides daily bars for a symbol from an external feed.
// This is implemented by the market data HTTP client.
type BarSource interface {
	GetDailyBars(ctx context.Context, symbol string, limit int) ([]DailyPrice, error)
}

// SyncService keeps stored history current by pulling bars for stale symbols.
type SyncService struct {
	repo   *Repository
	source BarSource
	log    zerolog.Logger
}

// NewSyncService creates a new history sync service.
func NewSyncService(repo *Repository, source BarSource, log zerolog.Logger) *SyncService {
	return &SyncService{
		repo:   repo,
		source: source,
		log:    log.With().Str("service", "history_sync").Logger(),
	}
}

// NeedsSync checks if a symbol's history is stale.
// A symbol needs sync if:
// - it has no stored bars (never synced)
// - its latest bar is older than SyncThresholdHours
func (s *SyncService) NeedsSync(symbol string) bool {
	latest, err := s.repo.LatestDate(symbol)
	if err != nil || latest == "" {
		return true
	}
	t, err := time.Parse("2006-01-02", latest)
	if err != nil {
		return true
	}
	return time.Since(t) > SyncThresholdHours*time.Hour
}

// SyncSymbol refreshes a single symbol from the source.
func (s *SyncService) SyncSymbol(ctx context.Context, symbol string) error {
	bars, err := s.source.GetDailyBars(ctx, symbol, DefaultSyncBars)
	if err != nil {
		return fmt.Errorf("failed to fetch bars for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return fmt.Errorf("no bars returned for %s", symbol)
	}

	if err := s.repo.UpsertDailyPrices(symbol, bars); err != nil {
		return fmt.Errorf("failed to store bars for %s: %w", symbol, err)
	}

	s.log.Debug().Str("symbol", symbol).Int("bars", len(bars)).Msg("Synced symbol history")
	return nil
}

// SyncStale refreshes every stale symbol in the given list.
// Individual failures are logged and do not abort the sweep.
// Returns counts of synced and failed symbols.
func (s *SyncService) SyncStale(ctx context.Context, symbols []string) (synced int, failed int) {
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			s.log.Warn().Err(ctx.Err()).Msg("History sync interrupted")
			return synced, failed
		}
		if !s.NeedsSync(symbol) {
			continue
		}
		if err := s.SyncSymbol(ctx, symbol); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to sync symbol")
			failed++
			continue
		}
		synced++
	}

	if synced > 0 || failed > 0 {
		s.log.Info().Int("synced", synced).Int("failed", failed).Msg("History sync sweep complete")
	}
	return synced, failed
}

// RecordBar stores a single bar pushed from the streaming feed.
func (s *SyncService) RecordBar(symbol string, bar DailyPrice) error {
	return s.repo.UpsertDailyPrices(symbol, []DailyPrice{bar})
}
