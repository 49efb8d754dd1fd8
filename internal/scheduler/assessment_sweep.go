package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/domain"
	"github.com/aristath/bastion/internal/modules/assessment"
)

// sweepTimeout bounds one full sweep across all portfolios
const sweepTimeout = 5 * time.Minute

// PortfolioLister enumerates portfolios that have stored snapshots
type PortfolioLister interface {
	PortfolioIDs() ([]string, error)
}

// Assessor runs one risk assessment
type Assessor interface {
	AssessPortfolioRisk(ctx context.Context, req assessment.AssessRequest) (*domain.RiskAssessment, error)
}

// AssessmentSweepJob re-assesses every known portfolio so stored grades
// and alerts track the market without manual runs
type AssessmentSweepJob struct {
	log        zerolog.Logger
	portfolios PortfolioLister
	assessor   Assessor
}

// AssessmentSweepConfig holds dependencies for the sweep job
type AssessmentSweepConfig struct {
	Log        zerolog.Logger
	Portfolios PortfolioLister
	Assessor   Assessor
}

// NewAssessmentSweepJob creates a new assessment sweep job
func NewAssessmentSweepJob(cfg AssessmentSweepConfig) *AssessmentSweepJob {
	return &AssessmentSweepJob{
		log:        cfg.Log.With().Str("job", "assessment_sweep").Logger(),
		portfolios: cfg.Portfolios,
		assessor:   cfg.Assessor,
	}
}

// Name returns the job name for the scheduler
func (j *AssessmentSweepJob) Name() string {
	return "assessment_sweep"
}

// Run assesses each portfolio in turn. Individual failures are logged and
// the sweep continues; the job only fails when every assessment fails.
func (j *AssessmentSweepJob) Run() error {
	ids, err := j.portfolios.PortfolioIDs()
	if err != nil {
		return fmt.Errorf("failed to list portfolios: %w", err)
	}
	if len(ids) == 0 {
		j.log.Debug().Msg("No portfolios to assess")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	failed := 0
	for _, id := range ids {
		result, err := j.assessor.AssessPortfolioRisk(ctx, assessment.AssessRequest{PortfolioID: id})
		if err != nil {
			j.log.Warn().Err(err).Str("portfolio_id", id).Msg("Sweep assessment failed")
			failed++
			continue
		}

		j.log.Info().
			Str("portfolio_id", id).
			Str("grade", result.Metrics.RiskGrade).
			Float64("score", result.Metrics.OverallRiskScore).
			Msg("Portfolio assessed")
	}

	if failed == len(ids) {
		return fmt.Errorf("all %d sweep assessments failed", failed)
	}
	return nil
}
