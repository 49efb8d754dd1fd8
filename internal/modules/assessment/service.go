package assessment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/domain"
	"github.com/aristath/bastion/internal/events"
	"github.com/aristath/bastion/internal/modules/alerts"
	"github.com/aristath/bastion/internal/modules/portfolio"
	"github.com/aristath/bastion/internal/modules/risk"
	"github.com/aristath/bastion/internal/modules/scoring"
	"github.com/aristath/bastion/internal/modules/settings"
	"github.com/aristath/bastion/internal/modules/stress"
)

// assessTimeout bounds one assessment end to end. Collaborator reads are
// local, so hitting this means something is genuinely wedged.
const assessTimeout = 30 * time.Second

// HistorySource yields recent daily closes per symbol, oldest first.
type HistorySource interface {
	GetCloses(symbol string, limit int) ([]float64, error)
}

// SnapshotSource resolves and builds portfolio snapshots.
type SnapshotSource interface {
	LatestSnapshot(portfolioID string) (*domain.PortfolioSnapshot, error)
	BuildSnapshot(req portfolio.SnapshotRequest) (*domain.PortfolioSnapshot, error)
}

// Service runs the full assessment pipeline: resolve the snapshot, load
// series, compute the independent metrics, stress the book, score and
// grade, check thresholds, persist the immutable result.
type Service struct {
	snapshots SnapshotSource
	history   HistorySource
	engine    *risk.Service
	stresser  *stress.Engine
	scenarios domain.ScenarioProvider
	scorer    *scoring.Aggregator
	monitor   *alerts.Monitor
	settings  *settings.Service
	repo      *Repository
	bus       *events.Bus
	log       zerolog.Logger
}

// NewService creates a new assessment service
func NewService(
	snapshots SnapshotSource,
	history HistorySource,
	engine *risk.Service,
	stresser *stress.Engine,
	scenarios domain.ScenarioProvider,
	scorer *scoring.Aggregator,
	monitor *alerts.Monitor,
	settingsService *settings.Service,
	repo *Repository,
	log zerolog.Logger,
) *Service {
	return &Service{
		snapshots: snapshots,
		history:   history,
		engine:    engine,
		stresser:  stresser,
		scenarios: scenarios,
		scorer:    scorer,
		monitor:   monitor,
		settings:  settingsService,
		repo:      repo,
		log:       log.With().Str("service", "assessment").Logger(),
	}
}

// SetEventBus enables assessment_completed and alerts_raised emission.
// Optional; without a bus assessments simply stay silent.
func (s *Service) SetEventBus(bus *events.Bus) {
	s.bus = bus
}

// AssessRequest selects the portfolio to assess. Inline positions build an
// ad-hoc snapshot; otherwise the latest stored snapshot is used.
type AssessRequest struct {
	PortfolioID string                 `json:"portfolio_id"`
	UserID      string                 `json:"user_id"`
	Currency    domain.Currency        `json:"currency"`
	Positions   []domain.AssetPosition `json:"positions,omitempty"`
}

// AssessPortfolioRisk runs one complete assessment. Degraded inputs never
// fail the call; the result is flagged instead. Hard failures are contract
// violations, a missing snapshot, cancellation, or the ledger insert.
func (s *Service) AssessPortfolioRisk(ctx context.Context, req AssessRequest) (*domain.RiskAssessment, error) {
	ctx, cancel := context.WithTimeout(ctx, assessTimeout)
	defer cancel()
	started := time.Now()

	if req.PortfolioID == "" {
		req.PortfolioID = "main"
	}

	snap, err := s.resolveSnapshot(req)
	if err != nil {
		return nil, err
	}

	params := s.settings.RiskParams()
	history, benchmark, err := s.loadSeries(ctx, snap, params)
	if err != nil {
		return nil, err
	}

	metrics, degradedReasons, err := s.engine.ComputeMetrics(risk.Input{
		Snapshot:  snap,
		History:   history,
		Benchmark: benchmark,
		Params:    params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compute metrics: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("assessment cancelled: %w", err)
	}

	// Stress and aggregation run after the independent metrics join.
	stressResults := s.stresser.RunAll(snap, s.scenarios.Scenarios())
	worst := stress.WorstLoss(stressResults)

	score, _ := s.scorer.Score(scoring.Inputs{
		VaR1Day:            metrics.VaR1Day,
		ExpectedShortfall:  metrics.ExpectedShortfall,
		ConcentrationRisk:  metrics.ConcentrationRisk,
		Volatility:         metrics.Volatility,
		WorstStressLossPct: worst,
	}, s.settings.Weights())
	metrics.OverallRiskScore = score
	metrics.RiskGrade = scoring.Grade(score, s.settings.Bands())

	previous, err := s.repo.GetLatest(snap.PortfolioID)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to load previous assessment, trend check skipped")
		previous = nil
	}

	monitorResult := s.monitor.Check(metrics, snap.Weights(), previous, s.settings.Thresholds())

	result := &domain.RiskAssessment{
		AssessedAt:      time.Now().UTC(),
		ID:              uuid.New().String(),
		PortfolioID:     snap.PortfolioID,
		UserID:          snap.UserID,
		Metrics:         metrics,
		StressResults:   stressResults,
		Recommendations: monitorResult.Recommendations,
		Degraded:        len(degradedReasons) > 0,
		DegradedReasons: degradedReasons,
	}

	if err := s.repo.Save(result, monitorResult.Alerts); err != nil {
		return nil, fmt.Errorf("failed to persist assessment: %w", err)
	}

	s.log.Info().
		Str("assessment_id", result.ID).
		Str("portfolio_id", result.PortfolioID).
		Str("grade", metrics.RiskGrade).
		Float64("score", score).
		Int("alerts", len(monitorResult.Alerts)).
		Bool("degraded", result.Degraded).
		Dur("took", time.Since(started)).
		Msg("Assessment complete")

	s.publish(result, monitorResult.Alerts)

	return result, nil
}

// publish emits completion events after the result is in the ledger.
func (s *Service) publish(result *domain.RiskAssessment, raised []domain.Alert) {
	if s.bus == nil {
		return
	}

	s.bus.Emit(events.AssessmentCompleted, "assessment", map[string]interface{}{
		"assessment_id": result.ID,
		"portfolio_id":  result.PortfolioID,
		"risk_grade":    result.Metrics.RiskGrade,
		"overall_score": result.Metrics.OverallRiskScore,
		"degraded":      result.Degraded,
	})

	if len(raised) == 0 {
		return
	}
	s.bus.Emit(events.AlertsRaised, "assessment", map[string]interface{}{
		"assessment_id": result.ID,
		"portfolio_id":  result.PortfolioID,
		"count":         len(raised),
		"max_severity":  string(maxSeverity(raised)),
	})
}

func maxSeverity(alerts []domain.Alert) domain.Severity {
	rank := map[domain.Severity]int{
		domain.SeverityInfo:     0,
		domain.SeverityWarning:  1,
		domain.SeverityCritical: 2,
	}
	max := domain.SeverityInfo
	for _, a := range alerts {
		if rank[a.Severity] > rank[max] {
			max = a.Severity
		}
	}
	return max
}

// Latest returns the most recent assessment with its persisted alerts.
func (s *Service) Latest(portfolioID string) (*domain.RiskAssessment, []domain.Alert, error) {
	assessment, err := s.repo.GetLatest(portfolioID)
	if err != nil || assessment == nil {
		return assessment, nil, err
	}
	alerts, err := s.repo.AlertsForAssessment(assessment.ID)
	if err != nil {
		return assessment, nil, err
	}
	return assessment, alerts, nil
}

// Repo exposes the ledger for read-model collaborators.
func (s *Service) Repo() *Repository {
	return s.repo
}

func (s *Service) resolveSnapshot(req AssessRequest) (*domain.PortfolioSnapshot, error) {
	if len(req.Positions) > 0 {
		snap, err := s.snapshots.BuildSnapshot(portfolio.SnapshotRequest{
			PortfolioID: req.PortfolioID,
			UserID:      req.UserID,
			Currency:    req.Currency,
			Positions:   req.Positions,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build snapshot: %w", err)
		}
		return snap, nil
	}

	snap, err := s.snapshots.LatestSnapshot(req.PortfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if snap == nil {
		return nil, fmt.Errorf("no snapshot stored for portfolio %s", req.PortfolioID)
	}
	return snap, nil
}

// loadSeries fetches closes for every held symbol plus the benchmark,
// checking for cancellation between reads.
func (s *Service) loadSeries(ctx context.Context, snap *domain.PortfolioSnapshot, params settings.RiskParams) (map[string][]float64, []float64, error) {
	limit := params.MinHistoryDays + 1
	history := make(map[string][]float64, len(snap.Positions))
	for _, p := range snap.Positions {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("assessment cancelled: %w", err)
		}
		closes, err := s.history.GetCloses(p.Symbol, limit)
		if err != nil {
			// Missing history degrades inside the engine; a read error
			// here must not fail the whole assessment either.
			s.log.Warn().Err(err).Str("symbol", p.Symbol).Msg("History read failed")
			continue
		}
		history[p.Symbol] = closes
	}

	var benchmark []float64
	if params.Benchmark != "" {
		closes, err := s.history.GetCloses(params.Benchmark, limit)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", params.Benchmark).Msg("Benchmark read failed")
		} else {
			benchmark = closes
		}
	}
	return history, benchmark, nil
}
