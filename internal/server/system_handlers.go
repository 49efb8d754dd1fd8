// Package server provides the HTTP server and routing for Bastion.
package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/bastion/internal/clients/marketdata"
	"github.com/aristath/bastion/internal/database"
	"github.com/aristath/bastion/internal/modules/settings"
	"github.com/aristath/bastion/internal/scheduler"
	"github.com/aristath/bastion/internal/version"
)

// JobRunner triggers scheduler jobs and reports their statuses.
type JobRunner interface {
	RunByName(name string) error
	Statuses() []scheduler.JobStatus
}

// SystemHandlers handles system-wide monitoring and operations endpoints
type SystemHandlers struct {
	log           zerolog.Logger
	dataDir       string
	startupTime   time.Time
	configDB      *database.DB
	assessmentsDB *database.DB
	historyDB     *database.DB
	cacheDB       *database.DB
	settingsRepo  *settings.Repository
	marketClient  *marketdata.Client
	stream        StreamState
	jobs          JobRunner
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	configDB, assessmentsDB, historyDB, cacheDB *database.DB,
	settingsRepo *settings.Repository,
	marketClient *marketdata.Client,
	stream StreamState,
	jobs JobRunner,
) *SystemHandlers {
	return &SystemHandlers{
		log:           log.With().Str("component", "system_handlers").Logger(),
		dataDir:       dataDir,
		startupTime:   time.Now(),
		configDB:      configDB,
		assessmentsDB: assessmentsDB,
		historyDB:     historyDB,
		cacheDB:       cacheDB,
		settingsRepo:  settingsRepo,
		marketClient:  marketClient,
		stream:        stream,
		jobs:          jobs,
	}
}

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status          string  `json:"status"` // "healthy" or "degraded"
	Version         string  `json:"version"`
	UptimeSeconds   int64   `json:"uptime_seconds"`
	CPUPercent      float64 `json:"cpu_percent"`
	MemoryPercent   float64 `json:"memory_percent"`
	PortfolioCount  int     `json:"portfolio_count"`
	AssessmentCount int     `json:"assessment_count"`
	TrackedSymbols  int     `json:"tracked_symbols"`
	StreamConnected bool    `json:"stream_connected"`
	LastAssessment  string  `json:"last_assessment,omitempty"`
}

// StreamStatusResponse represents market data stream status
type StreamStatusResponse struct {
	Connected bool   `json:"connected"`
	Stale     bool   `json:"stale"`
	LastCheck string `json:"last_check"`
	Message   string `json:"message,omitempty"`
}

// JobsStatusResponse represents scheduler job status
type JobsStatusResponse struct {
	TotalJobs int       `json:"total_jobs"`
	Jobs      []JobInfo `json:"jobs"`
	LastRun   string    `json:"last_run,omitempty"`
}

// JobInfo represents information about a single job
type JobInfo struct {
	Name           string `json:"name"`
	Schedule       string `json:"schedule"`
	Runs           int64  `json:"runs"`
	Failures       int64  `json:"failures"`
	LastRun        string `json:"last_run,omitempty"`
	LastDurationMS int64  `json:"last_duration_ms,omitempty"`
	LastError      string `json:"last_error,omitempty"`
	Status         string `json:"status"` // "active", "idle", "failed"
}

// DatabaseStatsResponse represents database statistics
type DatabaseStatsResponse struct {
	Databases   []DBInfo `json:"databases"`
	TotalSizeMB float64  `json:"total_size_mb"`
	LastChecked string   `json:"last_checked"`
}

// DBInfo represents information about a single database
type DBInfo struct {
	Name      string  `json:"name"`
	Path      string  `json:"path"`
	SizeMB    float64 `json:"size_mb"`
	WALSizeMB float64 `json:"wal_size_mb"`
	PageCount int64   `json:"page_count,omitempty"`
	Freelist  int64   `json:"freelist_pages,omitempty"`
}

// DiskUsageResponse represents disk usage statistics
type DiskUsageResponse struct {
	DataDirMB   float64 `json:"data_dir_mb"`
	LogsDirMB   float64 `json:"logs_dir_mb"`
	BackupsMB   float64 `json:"backups_mb"`
	TotalMB     float64 `json:"total_mb"`
	AvailableMB float64 `json:"available_mb,omitempty"`
}

// GetSystemStatusSnapshot returns a snapshot of the current system status.
func (h *SystemHandlers) GetSystemStatusSnapshot() (SystemStatusResponse, error) {
	if h == nil {
		return SystemStatusResponse{}, fmt.Errorf("system handlers not initialized")
	}

	var firstErr error
	recordErr := func(err error) {
		if err != nil && err != sql.ErrNoRows && firstErr == nil {
			firstErr = err
		}
	}

	// Count portfolios with stored snapshots
	var portfolioCount int
	err := h.historyDB.Conn().QueryRow(`
		SELECT COUNT(DISTINCT portfolio_id) FROM portfolio_snapshots
	`).Scan(&portfolioCount)
	if err != nil && err != sql.ErrNoRows {
		h.log.Error().Err(err).Msg("Failed to count portfolios")
		recordErr(err)
	}

	// Count stored assessments and find the most recent one
	var assessmentCount int
	var lastAssessment sql.NullString
	err = h.assessmentsDB.Conn().QueryRow(`
		SELECT COUNT(*), MAX(created_at) FROM assessments
	`).Scan(&assessmentCount, &lastAssessment)
	if err != nil && err != sql.ErrNoRows {
		h.log.Error().Err(err).Msg("Failed to count assessments")
		recordErr(err)
	}

	var lastAssessmentFormatted string
	if lastAssessment.Valid && lastAssessment.String != "" {
		if t, err := time.Parse(time.RFC3339, lastAssessment.String); err == nil {
			lastAssessmentFormatted = t.Format("2006-01-02 15:04")
		} else {
			lastAssessmentFormatted = lastAssessment.String
		}
	}

	// Count symbols with stored price history
	var trackedSymbols int
	err = h.historyDB.Conn().QueryRow(`
		SELECT COUNT(DISTINCT symbol) FROM daily_prices
	`).Scan(&trackedSymbols)
	if err != nil && err != sql.ErrNoRows {
		h.log.Error().Err(err).Msg("Failed to count tracked symbols")
		recordErr(err)
	}

	cpuPercent, memPercent := h.getSystemStats()

	streamConnected := false
	if h.stream != nil {
		streamConnected = h.stream.IsConnected()
	}

	status := "healthy"
	if h.stream != nil && !streamConnected {
		status = "degraded"
	}

	response := SystemStatusResponse{
		Status:          status,
		Version:         version.Version,
		UptimeSeconds:   int64(time.Since(h.startupTime).Seconds()),
		CPUPercent:      cpuPercent,
		MemoryPercent:   memPercent,
		PortfolioCount:  portfolioCount,
		AssessmentCount: assessmentCount,
		TrackedSymbols:  trackedSymbols,
		StreamConnected: streamConnected,
		LastAssessment:  lastAssessmentFormatted,
	}

	return response, firstErr
}

// HandleSystemStatus returns comprehensive system status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	response, err := h.GetSystemStatusSnapshot()
	if err != nil {
		h.log.Warn().Err(err).Msg("System status collected with warnings")
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleStreamStatus returns market data stream connection status
func (h *SystemHandlers) HandleStreamStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting stream status")

	response := StreamStatusResponse{
		LastCheck: time.Now().Format(time.RFC3339),
	}
	if h.stream == nil {
		response.Message = "stream not configured"
	} else {
		response.Connected = h.stream.IsConnected()
		response.Stale = h.stream.IsStale()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// RefreshCredentials re-reads the market data API key from settings and
// applies it to the client. Called when the key changes through the API.
func (h *SystemHandlers) RefreshCredentials() error {
	if h.marketClient == nil {
		return fmt.Errorf("market data client not configured")
	}

	apiKey, err := h.settingsRepo.Get("market_data_api_key")
	if err != nil {
		return fmt.Errorf("failed to get market_data_api_key from settings: %w", err)
	}

	if apiKey != nil && *apiKey != "" {
		h.marketClient.SetCredentials(*apiKey)
		h.log.Info().Msg("Market data client credentials refreshed from settings database")
		return nil
	}

	return fmt.Errorf("credentials not found in settings database")
}

// HandleJobsStatus returns scheduler job status
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting jobs status")

	var jobs []JobInfo
	var lastRun time.Time

	if h.jobs != nil {
		for _, st := range h.jobs.Statuses() {
			info := JobInfo{
				Name:           st.Name,
				Schedule:       st.Schedule,
				Runs:           st.Runs,
				Failures:       st.Failures,
				LastDurationMS: st.LastDurationMS,
				LastError:      st.LastError,
				Status:         "idle",
			}
			if st.LastRun != nil {
				info.LastRun = st.LastRun.Format(time.RFC3339)
				if st.LastRun.After(lastRun) {
					lastRun = *st.LastRun
				}
			}
			if st.LastError != "" {
				info.Status = "failed"
			} else if st.Runs > 0 {
				info.Status = "active"
			}
			jobs = append(jobs, info)
		}
	}

	response := JobsStatusResponse{
		TotalJobs: len(jobs),
		Jobs:      jobs,
	}
	if !lastRun.IsZero() {
		response.LastRun = lastRun.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleTriggerJob runs a registered job immediately
// POST /api/system/jobs/{name}/run
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := chi.URLParam(r, "name")
	if name == "" {
		http.Error(w, "Job name required", http.StatusBadRequest)
		return
	}

	if h.jobs == nil {
		http.Error(w, "Scheduler not available", http.StatusServiceUnavailable)
		return
	}

	found := false
	for _, st := range h.jobs.Statuses() {
		if st.Name == name {
			found = true
			break
		}
	}
	if !found {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job trigger")

	// Run asynchronously so slow jobs do not hold the request open
	go func() {
		if err := h.jobs.RunByName(name); err != nil {
			h.log.Error().Err(err).Str("job", name).Msg("Manually triggered job failed")
		}
	}()

	h.writeJSON(w, map[string]string{
		"status":  "success",
		"message": fmt.Sprintf("Job %s triggered successfully", name),
	})
}

// HandleDatabaseStats returns statistics for all databases
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting database stats")

	databases := []DBInfo{}
	totalSizeMB := 0.0

	for _, db := range []*database.DB{h.configDB, h.assessmentsDB, h.historyDB, h.cacheDB} {
		if db == nil {
			continue
		}

		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			continue
		}

		sizeMB := float64(stats.SizeBytes) / 1024 / 1024
		totalSizeMB += sizeMB

		databases = append(databases, DBInfo{
			Name:      db.Name(),
			Path:      db.Path(),
			SizeMB:    sizeMB,
			WALSizeMB: float64(stats.WALSizeBytes) / 1024 / 1024,
			PageCount: stats.PageCount,
			Freelist:  stats.FreelistCount,
		})
	}

	response := DatabaseStatsResponse{
		Databases:   databases,
		TotalSizeMB: totalSizeMB,
		LastChecked: time.Now().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleDiskUsage returns disk usage statistics
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting disk usage")

	// Calculate directory sizes
	dataDirSize := h.getDirSize(h.dataDir)
	logsDir := filepath.Join(h.dataDir, "logs")
	logsDirSize := h.getDirSize(logsDir)
	backupsDir := filepath.Join(h.dataDir, "backups")
	backupsSize := h.getDirSize(backupsDir)

	response := DiskUsageResponse{
		DataDirMB: dataDirSize,
		LogsDirMB: logsDirSize,
		BackupsMB: backupsSize,
		TotalMB:   dataDirSize + logsDirSize + backupsSize,
	}

	if usage, err := disk.Usage(h.dataDir); err == nil {
		response.AvailableMB = float64(usage.Free) / 1024 / 1024
	} else {
		h.log.Warn().Err(err).Msg("Failed to get filesystem usage")
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})

	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

// getSystemStats calculates CPU and RAM usage percentages
// Uses a short interval (100ms) so status calls stay fast while still
// providing a usable reading
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	// Memory statistics are instant, no blocking
	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a success JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
