package portfolio

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/bastion/internal/domain"
)

// Service validates raw position data and produces valued snapshots.
//
// Validation here is strict: a snapshot with negative quantities, negative
// prices, non-finite numbers, or duplicate symbols is a caller bug and gets
// a hard error. Everything downstream can then trust the snapshot.
type Service struct {
	profiles  *ProfileRepository
	snapshots *SnapshotRepository
	log       zerolog.Logger
}

// NewService creates a new portfolio service.
func NewService(profiles *ProfileRepository, snapshots *SnapshotRepository, log zerolog.Logger) *Service {
	return &Service{
		profiles:  profiles,
		snapshots: snapshots,
		log:       log.With().Str("service", "portfolio").Logger(),
	}
}

// BuildSnapshot validates positions, values them, and fills weights.
// Position values and the total are computed with decimal arithmetic and
// banker's rounding at 8 places so repeated valuations of the same holdings
// always agree to the cent.
func (s *Service) BuildSnapshot(req SnapshotRequest) (*domain.PortfolioSnapshot, error) {
	if req.PortfolioID == "" {
		return nil, fmt.Errorf("portfolio_id is required")
	}
	if err := validatePositions(req.Positions); err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = domain.CurrencyUSD
	}

	positions := make([]domain.AssetPosition, len(req.Positions))
	copy(positions, req.Positions)

	total := decimal.Zero
	for i := range positions {
		value := decimal.NewFromFloat(positions[i].Quantity).
			Mul(decimal.NewFromFloat(positions[i].UnitPrice)).
			RoundBank(8)
		positions[i].Value, _ = value.Float64()
		total = total.Add(value)
	}

	totalValue, _ := total.RoundBank(8).Float64()
	if totalValue > 0 {
		for i := range positions {
			weight := decimal.NewFromFloat(positions[i].Value).Div(total).RoundBank(8)
			positions[i].Weight, _ = weight.Float64()
		}
	}

	s.classifyPositions(positions)

	snap := &domain.PortfolioSnapshot{
		Timestamp:   time.Now().UTC(),
		PortfolioID: req.PortfolioID,
		UserID:      req.UserID,
		Currency:    currency,
		Positions:   positions,
		TotalValue:  totalValue,
	}

	s.log.Debug().
		Str("portfolio_id", snap.PortfolioID).
		Int("positions", len(snap.Positions)).
		Float64("total_value", snap.TotalValue).
		Msg("Built portfolio snapshot")
	return snap, nil
}

// validatePositions enforces the snapshot contract.
func validatePositions(positions []domain.AssetPosition) error {
	seen := make(map[string]bool, len(positions))
	for i, p := range positions {
		if p.Symbol == "" {
			return fmt.Errorf("position %d: symbol is empty", i)
		}
		if seen[p.Symbol] {
			return fmt.Errorf("position %d: duplicate symbol %s", i, p.Symbol)
		}
		seen[p.Symbol] = true

		if math.IsNaN(p.Quantity) || math.IsInf(p.Quantity, 0) {
			return fmt.Errorf("position %s: quantity is not finite", p.Symbol)
		}
		if math.IsNaN(p.UnitPrice) || math.IsInf(p.UnitPrice, 0) {
			return fmt.Errorf("position %s: unit price is not finite", p.Symbol)
		}
		if p.Quantity < 0 {
			return fmt.Errorf("position %s: negative quantity %v", p.Symbol, p.Quantity)
		}
		if p.UnitPrice < 0 {
			return fmt.Errorf("position %s: negative unit price %v", p.Symbol, p.UnitPrice)
		}
	}
	return nil
}

// classifyPositions fills missing asset classes from stored profiles.
// Lookup failures leave the class unknown; classification is advisory and
// must not fail a snapshot build.
func (s *Service) classifyPositions(positions []domain.AssetPosition) {
	if s.profiles == nil {
		return
	}
	for i := range positions {
		if positions[i].AssetClass != "" && positions[i].AssetClass != domain.AssetClassUnknown {
			continue
		}
		profile, err := s.profiles.Get(positions[i].Symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", positions[i].Symbol).Msg("Asset profile lookup failed")
			positions[i].AssetClass = domain.AssetClassUnknown
			continue
		}
		if profile == nil {
			positions[i].AssetClass = domain.AssetClassUnknown
			continue
		}
		positions[i].AssetClass = profile.AssetClass
	}
}

// SaveSnapshot persists a built snapshot.
func (s *Service) SaveSnapshot(snap *domain.PortfolioSnapshot) error {
	if s.snapshots == nil {
		return fmt.Errorf("snapshot repository not configured")
	}
	return s.snapshots.Save(snap)
}

// LatestSnapshot returns the newest stored snapshot for a portfolio,
// or nil when none exists.
func (s *Service) LatestSnapshot(portfolioID string) (*domain.PortfolioSnapshot, error) {
	if s.snapshots == nil {
		return nil, fmt.Errorf("snapshot repository not configured")
	}
	return s.snapshots.GetLatest(portfolioID)
}

// RecentSnapshots returns up to limit stored snapshots, newest first.
func (s *Service) RecentSnapshots(portfolioID string, limit int) ([]domain.PortfolioSnapshot, error) {
	if s.snapshots == nil {
		return nil, fmt.Errorf("snapshot repository not configured")
	}
	if limit <= 0 {
		limit = 20
	}
	return s.snapshots.ListRecent(portfolioID, limit)
}

// PortfolioIDs returns every portfolio with at least one stored snapshot.
func (s *Service) PortfolioIDs() ([]string, error) {
	if s.snapshots == nil {
		return nil, fmt.Errorf("snapshot repository not configured")
	}
	return s.snapshots.ListPortfolioIDs()
}
