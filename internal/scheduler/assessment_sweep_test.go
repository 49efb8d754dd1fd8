package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/bastion/internal/domain"
	"github.com/aristath/bastion/internal/modules/assessment"
)

type fakeLister struct {
	ids []string
	err error
}

func (l *fakeLister) PortfolioIDs() ([]string, error) { return l.ids, l.err }

type fakeAssessor struct {
	failFor map[string]bool
	calls   []string
}

func (a *fakeAssessor) AssessPortfolioRisk(_ context.Context, req assessment.AssessRequest) (*domain.RiskAssessment, error) {
	a.calls = append(a.calls, req.PortfolioID)
	if a.failFor[req.PortfolioID] {
		return nil, errors.New("assessment blew up")
	}
	return &domain.RiskAssessment{
		ID:          "sweep-" + req.PortfolioID,
		PortfolioID: req.PortfolioID,
		Metrics:     domain.RiskMetrics{RiskGrade: "B", OverallRiskScore: 42},
	}, nil
}

func TestAssessmentSweepAssessesEveryPortfolio(t *testing.T) {
	assessor := &fakeAssessor{}
	job := NewAssessmentSweepJob(AssessmentSweepConfig{
		Log:        zerolog.Nop(),
		Portfolios: &fakeLister{ids: []string{"main", "savings"}},
		Assessor:   assessor,
	})

	require.NoError(t, job.Run())
	assert.Equal(t, []string{"main", "savings"}, assessor.calls)
}

func TestAssessmentSweepContinuesPastFailures(t *testing.T) {
	assessor := &fakeAssessor{failFor: map[string]bool{"main": true}}
	job := NewAssessmentSweepJob(AssessmentSweepConfig{
		Log:        zerolog.Nop(),
		Portfolios: &fakeLister{ids: []string{"main", "savings"}},
		Assessor:   assessor,
	})

	require.NoError(t, job.Run(), "One failure should not fail the sweep")
	assert.Equal(t, []string{"main", "savings"}, assessor.calls)
}

func TestAssessmentSweepFailsWhenAllFail(t *testing.T) {
	assessor := &fakeAssessor{failFor: map[string]bool{"main": true, "savings": true}}
	job := NewAssessmentSweepJob(AssessmentSweepConfig{
		Log:        zerolog.Nop(),
		Portfolios: &fakeLister{ids: []string{"main", "savings"}},
		Assessor:   assessor,
	})

	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 sweep assessments failed")
}

func TestAssessmentSweepNoPortfolios(t *testing.T) {
	assessor := &fakeAssessor{}
	job := NewAssessmentSweepJob(AssessmentSweepConfig{
		Log:        zerolog.Nop(),
		Portfolios: &fakeLister{},
		Assessor:   assessor,
	})

	require.NoError(t, job.Run())
	assert.Empty(t, assessor.calls)
}

func TestAssessmentSweepListError(t *testing.T) {
	job := NewAssessmentSweepJob(AssessmentSweepConfig{
		Log:        zerolog.Nop(),
		Portfolios: &fakeLister{err: errors.New("db locked")},
		Assessor:   &fakeAssessor{},
	})

	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list portfolios")
}
