package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/bastion/internal/modules/portfolio"
	apptesting "github.com/aristath/bastion/internal/testing"
)

func setupTestHandler(t *testing.T) (*chi.Mux, func()) {
	t.Helper()

	configDB, cleanupConfig := apptesting.NewTestDB(t, "config")
	historyDB, cleanupHistory := apptesting.NewTestDB(t, "history")

	profiles := portfolio.NewProfileRepository(configDB.Conn(), zerolog.Nop())
	snapshots := portfolio.NewSnapshotRepository(historyDB.Conn(), zerolog.Nop())
	service := portfolio.NewService(profiles, snapshots, zerolog.Nop())

	handler := NewHandler(service, profiles, zerolog.Nop())
	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	return router, func() {
		cleanupConfig()
		cleanupHistory()
	}
}

func TestHandleBuildSnapshot(t *testing.T) {
	router, cleanup := setupTestHandler(t)
	defer cleanup()

	body := `{
		"portfolio_id": "main",
		"user_id": "user-1",
		"currency": "USD",
		"positions": [
			{"symbol": "BTC", "quantity": 2, "unit_price": 30000},
			{"symbol": "ETH", "quantity": 10, "unit_price": 2000}
		]
	}`

	req := httptest.NewRequest("POST", "/portfolio/snapshot", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_value":80000`)

	// Snapshot must now be retrievable
	req = httptest.NewRequest("GET", "/portfolio/snapshot?portfolio_id=main", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"portfolio_id":"main"`)
}

func TestHandleBuildSnapshotRejectsNegativeQuantity(t *testing.T) {
	router, cleanup := setupTestHandler(t)
	defer cleanup()

	body := `{
		"portfolio_id": "main",
		"positions": [{"symbol": "BTC", "quantity": -2, "unit_price": 30000}]
	}`

	req := httptest.NewRequest("POST", "/portfolio/snapshot", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "negative quantity")
}

func TestHandleGetLatestSnapshotNotFound(t *testing.T) {
	router, cleanup := setupTestHandler(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/portfolio/snapshot?portfolio_id=empty", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListSnapshotsInvalidLimit(t *testing.T) {
	router, cleanup := setupTestHandler(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/portfolio/snapshots?limit=banana", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleProfileLifecycle(t *testing.T) {
	router, cleanup := setupTestHandler(t)
	defer cleanup()

	// Upsert
	body := `{"asset_class": "crypto_major", "liquidity_coefficient": 0.9, "credit_coefficient": 0.1}`
	req := httptest.NewRequest("PUT", "/portfolio/profiles/BTC", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"symbol":"BTC"`)
	assert.Contains(t, rec.Body.String(), `"asset_class":"crypto_major"`)

	// List
	req = httptest.NewRequest("GET", "/portfolio/profiles/", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "BTC")

	// Delete
	req = httptest.NewRequest("DELETE", "/portfolio/profiles/BTC", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest("GET", "/portfolio/profiles/", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "[]\n", rec.Body.String())
}
