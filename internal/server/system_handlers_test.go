package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/bastion/internal/clients/marketdata"
	"github.com/aristath/bastion/internal/modules/settings"
	"github.com/aristath/bastion/internal/scheduler"
	apptesting "github.com/aristath/bastion/internal/testing"
)

type stubJobRunner struct {
	statuses []scheduler.JobStatus
	ran      chan string
	runErr   error
}

func (s *stubJobRunner) RunByName(name string) error {
	if s.ran != nil {
		s.ran <- name
	}
	return s.runErr
}

func (s *stubJobRunner) Statuses() []scheduler.JobStatus {
	return s.statuses
}

type stubStream struct {
	connected bool
	stale     bool
}

func (s *stubStream) IsConnected() bool { return s.connected }
func (s *stubStream) IsStale() bool     { return s.stale }

func TestHandleJobsStatus(t *testing.T) {
	lastRun := time.Now().Add(-2 * time.Minute)
	jobs := &stubJobRunner{statuses: []scheduler.JobStatus{
		{Name: "assessment_sweep", Schedule: "0 */15 * * * *", Runs: 4, LastRun: &lastRun, LastDurationMS: 120},
		{Name: "sync_prices", Schedule: "0 */15 * * * *", Runs: 3, Failures: 1, LastError: "feed unavailable"},
		{Name: "hourly_backup", Schedule: "0 0 * * * *"},
	}}

	h := NewSystemHandlers(zerolog.Nop(), t.TempDir(), nil, nil, nil, nil, nil, nil, nil, jobs)

	req := httptest.NewRequest("GET", "/system/jobs", nil)
	rec := httptest.NewRecorder()
	h.HandleJobsStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp JobsStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 3, resp.TotalJobs)
	require.Len(t, resp.Jobs, 3)
	assert.Equal(t, "active", resp.Jobs[0].Status)
	assert.Equal(t, "failed", resp.Jobs[1].Status)
	assert.Equal(t, "feed unavailable", resp.Jobs[1].LastError)
	assert.Equal(t, "idle", resp.Jobs[2].Status)
	assert.NotEmpty(t, resp.LastRun)
}

func TestHandleTriggerJob(t *testing.T) {
	jobs := &stubJobRunner{
		statuses: []scheduler.JobStatus{{Name: "assessment_sweep", Schedule: "0 */15 * * * *"}},
		ran:      make(chan string, 1),
	}

	h := NewSystemHandlers(zerolog.Nop(), t.TempDir(), nil, nil, nil, nil, nil, nil, nil, jobs)

	router := chi.NewRouter()
	router.Post("/system/jobs/{name}/run", h.HandleTriggerJob)

	req := httptest.NewRequest("POST", "/system/jobs/assessment_sweep/run", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp["status"])
	assert.Contains(t, resp["message"], "triggered successfully")

	// The run happens asynchronously
	select {
	case name := <-jobs.ran:
		assert.Equal(t, "assessment_sweep", name)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not run after trigger")
	}
}

func TestHandleTriggerJobUnknown(t *testing.T) {
	jobs := &stubJobRunner{statuses: []scheduler.JobStatus{{Name: "sync_prices"}}}

	h := NewSystemHandlers(zerolog.Nop(), t.TempDir(), nil, nil, nil, nil, nil, nil, nil, jobs)

	router := chi.NewRouter()
	router.Post("/system/jobs/{name}/run", h.HandleTriggerJob)

	req := httptest.NewRequest("POST", "/system/jobs/nope/run", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleStreamStatus(t *testing.T) {
	h := NewSystemHandlers(zerolog.Nop(), t.TempDir(), nil, nil, nil, nil, nil, nil,
		&stubStream{connected: true, stale: false}, nil)

	req := httptest.NewRequest("GET", "/system/stream", nil)
	rec := httptest.NewRecorder()
	h.HandleStreamStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp StreamStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Connected)
	assert.False(t, resp.Stale)
	assert.Empty(t, resp.Message)
}

func TestHandleStreamStatusNotConfigured(t *testing.T) {
	h := NewSystemHandlers(zerolog.Nop(), t.TempDir(), nil, nil, nil, nil, nil, nil, nil, nil)

	req := httptest.NewRequest("GET", "/system/stream", nil)
	rec := httptest.NewRecorder()
	h.HandleStreamStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp StreamStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Connected)
	assert.Equal(t, "stream not configured", resp.Message)
}

func TestHandleDiskUsage(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.db"), make([]byte, 4096), 0o644))

	h := NewSystemHandlers(zerolog.Nop(), dataDir, nil, nil, nil, nil, nil, nil, nil, nil)

	req := httptest.NewRequest("GET", "/system/disk", nil)
	rec := httptest.NewRecorder()
	h.HandleDiskUsage(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp DiskUsageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Greater(t, resp.DataDirMB, 0.0)
	assert.GreaterOrEqual(t, resp.TotalMB, resp.DataDirMB)
	assert.Greater(t, resp.AvailableMB, 0.0)
}

func TestHandleDatabaseStats(t *testing.T) {
	configDB, cleanup := apptesting.NewTestDB(t, "config")
	t.Cleanup(cleanup)
	historyDB, cleanupHistory := apptesting.NewTestDB(t, "history")
	t.Cleanup(cleanupHistory)

	h := NewSystemHandlers(zerolog.Nop(), t.TempDir(), configDB, nil, historyDB, nil, nil, nil, nil, nil)

	req := httptest.NewRequest("GET", "/system/database/stats", nil)
	rec := httptest.NewRecorder()
	h.HandleDatabaseStats(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp DatabaseStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// Nil databases are skipped
	require.Len(t, resp.Databases, 2)
	assert.Equal(t, "config", resp.Databases[0].Name)
	assert.Equal(t, "history", resp.Databases[1].Name)
	assert.Greater(t, resp.TotalSizeMB, 0.0)
	assert.NotEmpty(t, resp.LastChecked)
}

func TestGetSystemStatusSnapshot(t *testing.T) {
	assessmentsDB, cleanupA := apptesting.NewTestDB(t, "assessments")
	t.Cleanup(cleanupA)
	historyDB, cleanupH := apptesting.NewTestDB(t, "history")
	t.Cleanup(cleanupH)

	h := NewSystemHandlers(zerolog.Nop(), t.TempDir(), nil, assessmentsDB, historyDB, nil, nil, nil,
		&stubStream{connected: true}, nil)

	snapshot, err := h.GetSystemStatusSnapshot()
	require.NoError(t, err)

	assert.Equal(t, "healthy", snapshot.Status)
	assert.Equal(t, 0, snapshot.PortfolioCount)
	assert.Equal(t, 0, snapshot.AssessmentCount)
	assert.Equal(t, 0, snapshot.TrackedSymbols)
	assert.True(t, snapshot.StreamConnected)
	assert.NotEmpty(t, snapshot.Version)
}

func TestGetSystemStatusSnapshotDegraded(t *testing.T) {
	assessmentsDB, cleanupA := apptesting.NewTestDB(t, "assessments")
	t.Cleanup(cleanupA)
	historyDB, cleanupH := apptesting.NewTestDB(t, "history")
	t.Cleanup(cleanupH)

	h := NewSystemHandlers(zerolog.Nop(), t.TempDir(), nil, assessmentsDB, historyDB, nil, nil, nil,
		&stubStream{connected: false}, nil)

	snapshot, err := h.GetSystemStatusSnapshot()
	require.NoError(t, err)

	assert.Equal(t, "degraded", snapshot.Status)
	assert.False(t, snapshot.StreamConnected)
}

func TestRefreshCredentials(t *testing.T) {
	configDB, cleanup := apptesting.NewTestDB(t, "config")
	t.Cleanup(cleanup)

	repo := settings.NewRepository(configDB.Conn(), zerolog.Nop())
	require.NoError(t, repo.Set("market_data_api_key", "fresh-key", nil))

	client := marketdata.NewClient("http://localhost:9999", "old-key", zerolog.Nop())

	h := NewSystemHandlers(zerolog.Nop(), t.TempDir(), configDB, nil, nil, nil, repo, client, nil, nil)

	require.NoError(t, h.RefreshCredentials())
}

func TestRefreshCredentialsMissingKey(t *testing.T) {
	configDB, cleanup := apptesting.NewTestDB(t, "config")
	t.Cleanup(cleanup)

	repo := settings.NewRepository(configDB.Conn(), zerolog.Nop())
	client := marketdata.NewClient("http://localhost:9999", "", zerolog.Nop())

	h := NewSystemHandlers(zerolog.Nop(), t.TempDir(), configDB, nil, nil, nil, repo, client, nil, nil)

	assert.Error(t, h.RefreshCredentials())
}
