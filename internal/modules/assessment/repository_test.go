package assessment

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/bastion/internal/domain"
	apptesting "github.com/aristath/bastion/internal/testing"
)

func newTestRepo(t *testing.T) (*Repository, func()) {
	t.Helper()
	db, cleanup := apptesting.NewTestDB(t, "assessments")
	return NewRepository(db.Conn(), zerolog.Nop()), cleanup
}

func sampleAssessment(id, portfolioID string, at time.Time, score float64) *domain.RiskAssessment {
	return &domain.RiskAssessment{
		AssessedAt:  at,
		ID:          id,
		PortfolioID: portfolioID,
		UserID:      "user-1",
		Metrics: domain.RiskMetrics{
			Timestamp:         at,
			RiskGrade:         "B",
			VaR1Day:           0.021,
			VaR5Day:           0.047,
			ExpectedShortfall: 0.031,
			Volatility:        0.42,
			ConcentrationRisk: 50,
			OverallRiskScore:  score,
		},
		StressResults: []domain.StressResult{
			{
				ScenarioName:   "market_crash",
				InitialValue:   10000,
				StressedValue:  6500,
				LossAmount:     3500,
				LossPercentage: 35,
				PerAssetImpact: map[string]float64{"BTC": 3500},
			},
		},
		Recommendations: []string{"Reduce allocation to BTC"},
		Degraded:        true,
		DegradedReasons: []string{"insufficient history for ETH"},
	}
}

func sampleAlerts() []domain.Alert {
	return []domain.Alert{
		{
			Type:         domain.AlertTypeVaRBreach,
			Severity:     domain.SeverityWarning,
			Message:      "1-day VaR 6.00% exceeds the 5.00% limit",
			CurrentValue: 0.06,
			Threshold:    0.05,
		},
		{
			Type:         domain.AlertTypeConcentration,
			Severity:     domain.SeverityCritical,
			Message:      "BTC holds 80.0% of the portfolio, above the 40.0% limit",
			Symbol:       "BTC",
			CurrentValue: 0.80,
			Threshold:    0.40,
		},
	}
}

func TestRepositorySaveAndGetLatest(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	at := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)
	require.NoError(t, repo.Save(sampleAssessment("a-1", "main", at, 42.5), sampleAlerts()))

	loaded, err := repo.GetLatest("main")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, "a-1", loaded.ID)
	assert.Equal(t, "main", loaded.PortfolioID)
	assert.Equal(t, "user-1", loaded.UserID)
	assert.True(t, loaded.AssessedAt.Equal(at))
	assert.Equal(t, "B", loaded.Metrics.RiskGrade)
	assert.Equal(t, 42.5, loaded.Metrics.OverallRiskScore)
	assert.Equal(t, 0.021, loaded.Metrics.VaR1Day)
	assert.True(t, loaded.Degraded)
	assert.Equal(t, []string{"insufficient history for ETH"}, loaded.DegradedReasons)
	assert.Equal(t, []string{"Reduce allocation to BTC"}, loaded.Recommendations)
	require.Len(t, loaded.StressResults, 1)
	assert.Equal(t, "market_crash", loaded.StressResults[0].ScenarioName)
	assert.Equal(t, 35.0, loaded.StressResults[0].LossPercentage)
	assert.Equal(t, 3500.0, loaded.StressResults[0].PerAssetImpact["BTC"])
}

func TestRepositoryGetLatestMissing(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	loaded, err := repo.GetLatest("nope")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRepositoryGetLatestPicksNewest(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(sampleAssessment("a-1", "main", base, 30), nil))
	require.NoError(t, repo.Save(sampleAssessment("a-3", "main", base.Add(2*time.Hour), 50), nil))
	require.NoError(t, repo.Save(sampleAssessment("a-2", "main", base.Add(time.Hour), 40), nil))

	loaded, err := repo.GetLatest("main")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "a-3", loaded.ID)
}

func TestRepositoryGetByID(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	at := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)
	require.NoError(t, repo.Save(sampleAssessment("a-1", "main", at, 42.5), nil))

	loaded, err := repo.GetByID("a-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "a-1", loaded.ID)

	missing, err := repo.GetByID("a-404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoryListByPortfolio(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		id := string(rune('a'+i)) + "-id"
		require.NoError(t, repo.Save(sampleAssessment(id, "main", base.Add(time.Duration(i)*time.Hour), float64(i)), nil))
	}
	require.NoError(t, repo.Save(sampleAssessment("other", "second", base, 10), nil))

	assessments, err := repo.ListByPortfolio("main", 3)
	require.NoError(t, err)
	require.Len(t, assessments, 3)

	// Newest first
	assert.Equal(t, "e-id", assessments[0].ID)
	assert.Equal(t, "d-id", assessments[1].ID)
	assert.Equal(t, "c-id", assessments[2].ID)
}

func TestRepositoryAlertsRoundTrip(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	at := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)
	require.NoError(t, repo.Save(sampleAssessment("a-1", "main", at, 42.5), sampleAlerts()))

	alerts, err := repo.AlertsForAssessment("a-1")
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	assert.Equal(t, domain.AlertTypeVaRBreach, alerts[0].Type)
	assert.Equal(t, domain.SeverityWarning, alerts[0].Severity)
	assert.Empty(t, alerts[0].Symbol)
	assert.Equal(t, 0.06, alerts[0].CurrentValue)

	assert.Equal(t, domain.AlertTypeConcentration, alerts[1].Type)
	assert.Equal(t, "BTC", alerts[1].Symbol)
	assert.Equal(t, domain.SeverityCritical, alerts[1].Severity)
}

func TestRepositoryAlertsEmpty(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	at := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)
	require.NoError(t, repo.Save(sampleAssessment("a-1", "main", at, 42.5), nil))

	alerts, err := repo.AlertsForAssessment("a-1")
	require.NoError(t, err)
	assert.NotNil(t, alerts)
	assert.Empty(t, alerts)
}

func TestRepositoryCount(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	at := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)
	require.NoError(t, repo.Save(sampleAssessment("a-1", "main", at, 42.5), nil))
	require.NoError(t, repo.Save(sampleAssessment("a-2", "main", at.Add(time.Hour), 43.5), nil))

	count, err = repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
