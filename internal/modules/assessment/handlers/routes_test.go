package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/bastion/internal/domain"
	"github.com/aristath/bastion/internal/modules/alerts"
	"github.com/aristath/bastion/internal/modules/assessment"
	"github.com/aristath/bastion/internal/modules/correlation"
	"github.com/aristath/bastion/internal/modules/history"
	"github.com/aristath/bastion/internal/modules/portfolio"
	"github.com/aristath/bastion/internal/modules/risk"
	"github.com/aristath/bastion/internal/modules/scoring"
	"github.com/aristath/bastion/internal/modules/settings"
	"github.com/aristath/bastion/internal/modules/stress"
	apptesting "github.com/aristath/bastion/internal/testing"
)

func newTestRouter(t *testing.T) (chi.Router, *history.Repository, func()) {
	t.Helper()
	log := zerolog.Nop()

	configDB, cleanupConfig := apptesting.NewTestDB(t, "config")
	historyDB, cleanupHistory := apptesting.NewTestDB(t, "history")
	assessDB, cleanupAssess := apptesting.NewTestDB(t, "assessments")

	settingsSvc := settings.NewService(settings.NewRepository(configDB.Conn(), log), log)
	profileRepo := portfolio.NewProfileRepository(configDB.Conn(), log)
	snapshotRepo := portfolio.NewSnapshotRepository(historyDB.Conn(), log)
	portfolioSvc := portfolio.NewService(profileRepo, snapshotRepo, log)
	historyRepo := history.NewRepository(historyDB.Conn(), log)

	correlations := correlation.NewService(correlation.NewSamplePredictor(), nil, log)
	engine := risk.NewService(correlations, profileRepo, log)
	catalog, err := stress.NewCatalog("", log)
	require.NoError(t, err)

	svc := assessment.NewService(
		portfolioSvc,
		historyRepo,
		engine,
		stress.NewEngine(log),
		catalog,
		scoring.NewAggregator(log),
		alerts.NewMonitor(log),
		settingsSvc,
		assessment.NewRepository(assessDB.Conn(), log),
		log,
	)

	r := chi.NewRouter()
	NewHandler(svc, log).RegisterRoutes(r)

	return r, historyRepo, func() {
		cleanupAssess()
		cleanupHistory()
		cleanupConfig()
	}
}

func seedCloses(t *testing.T, repo *history.Repository, symbol string, closes []float64) {
	t.Helper()
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	prices := make([]history.DailyPrice, len(closes))
	for i, c := range closes {
		prices[i] = history.DailyPrice{
			Date:  base.AddDate(0, 0, i).Format("2006-01-02"),
			Open:  c,
			High:  c,
			Low:   c,
			Close: c,
		}
	}
	require.NoError(t, repo.UpsertDailyPrices(symbol, prices))
}

func driftSeries(start float64, n int) []float64 {
	closes := make([]float64, n)
	price := start
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			price *= 1.01
		} else {
			price *= 0.995
		}
		closes[i] = price
	}
	return closes
}

func runBody() []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"portfolio_id": "main",
		"user_id":      "user-1",
		"positions": []map[string]interface{}{
			{"symbol": "BTC", "asset_class": "crypto_major", "quantity": 1, "unit_price": 30000},
			{"symbol": "ETH", "asset_class": "crypto_major", "quantity": 10, "unit_price": 2000},
		},
	})
	return body
}

type runResponse struct {
	Assessment domain.RiskAssessment `json:"assessment"`
	Alerts     []domain.Alert        `json:"alerts"`
}

func TestRunAssessment(t *testing.T) {
	router, historyRepo, cleanup := newTestRouter(t)
	defer cleanup()
	seedCloses(t, historyRepo, "BTC", driftSeries(30000, 40))
	seedCloses(t, historyRepo, "ETH", driftSeries(2000, 40))

	req := httptest.NewRequest(http.MethodPost, "/assessments/run", bytes.NewReader(runBody()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body runResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.NotEmpty(t, body.Assessment.ID)
	assert.Equal(t, "main", body.Assessment.PortfolioID)
	assert.NotEmpty(t, body.Assessment.Metrics.RiskGrade)
	assert.Len(t, body.Assessment.StressResults, 4)
	assert.False(t, body.Assessment.Degraded)

	// BTC holds 60% of the book, past the default 40% limit.
	var concentration *domain.Alert
	for i := range body.Alerts {
		if body.Alerts[i].Type == domain.AlertTypeConcentration {
			concentration = &body.Alerts[i]
		}
	}
	require.NotNil(t, concentration)
	assert.Equal(t, "BTC", concentration.Symbol)
}

func TestRunAssessmentBadBody(t *testing.T) {
	router, _, cleanup := newTestRouter(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/assessments/run", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunAssessmentNoSnapshot(t *testing.T) {
	router, _, cleanup := newTestRouter(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/assessments/run", bytes.NewReader([]byte(`{"portfolio_id":"ghost"}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "no snapshot stored")
}

func TestLatestAssessment(t *testing.T) {
	router, historyRepo, cleanup := newTestRouter(t)
	defer cleanup()
	seedCloses(t, historyRepo, "BTC", driftSeries(30000, 40))
	seedCloses(t, historyRepo, "ETH", driftSeries(2000, 40))

	runReq := httptest.NewRequest(http.MethodPost, "/assessments/run", bytes.NewReader(runBody()))
	runRec := httptest.NewRecorder()
	router.ServeHTTP(runRec, runReq)
	require.Equal(t, http.StatusCreated, runRec.Code)

	var created runResponse
	require.NoError(t, json.Unmarshal(runRec.Body.Bytes(), &created))

	req := httptest.NewRequest(http.MethodGet, "/assessments/latest?portfolio_id=main", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body runResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, created.Assessment.ID, body.Assessment.ID)
}

func TestLatestAssessmentMissing(t *testing.T) {
	router, _, cleanup := newTestRouter(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/assessments/latest", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAssessmentByID(t *testing.T) {
	router, historyRepo, cleanup := newTestRouter(t)
	defer cleanup()
	seedCloses(t, historyRepo, "BTC", driftSeries(30000, 40))
	seedCloses(t, historyRepo, "ETH", driftSeries(2000, 40))

	runReq := httptest.NewRequest(http.MethodPost, "/assessments/run", bytes.NewReader(runBody()))
	runRec := httptest.NewRecorder()
	router.ServeHTTP(runRec, runReq)
	require.Equal(t, http.StatusCreated, runRec.Code)

	var created runResponse
	require.NoError(t, json.Unmarshal(runRec.Body.Bytes(), &created))

	req := httptest.NewRequest(http.MethodGet, "/assessments/"+created.Assessment.ID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var loaded domain.RiskAssessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loaded))
	assert.Equal(t, created.Assessment.ID, loaded.ID)

	missing := httptest.NewRequest(http.MethodGet, "/assessments/not-a-real-id", nil)
	missingRec := httptest.NewRecorder()
	router.ServeHTTP(missingRec, missing)
	assert.Equal(t, http.StatusNotFound, missingRec.Code)
}

func TestListAssessments(t *testing.T) {
	router, historyRepo, cleanup := newTestRouter(t)
	defer cleanup()
	seedCloses(t, historyRepo, "BTC", driftSeries(30000, 40))
	seedCloses(t, historyRepo, "ETH", driftSeries(2000, 40))

	for i := 0; i < 2; i++ {
		runReq := httptest.NewRequest(http.MethodPost, "/assessments/run", bytes.NewReader(runBody()))
		runRec := httptest.NewRecorder()
		router.ServeHTTP(runRec, runReq)
		require.Equal(t, http.StatusCreated, runRec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/assessments/?limit=1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		PortfolioID string                   `json:"portfolio_id"`
		Count       int                      `json:"count"`
		Assessments []map[string]interface{} `json:"assessments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "main", body.PortfolioID)
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Assessments, 1)
	assert.NotEmpty(t, body.Assessments[0]["risk_grade"])
}

func TestListAssessmentsRejectsBadLimit(t *testing.T) {
	router, _, cleanup := newTestRouter(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/assessments/?limit=0", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
