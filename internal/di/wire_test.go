package di

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/bastion/internal/config"
)

func TestWire(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &config.Config{
		DataDir:       tmpDir,
		MarketDataURL: "http://localhost:9999",
	}
	log := zerolog.Nop()

	// Wire everything
	container, err := Wire(cfg, log)
	require.NoError(t, err)
	require.NotNil(t, container)

	// Verify container is fully populated
	assert.NotNil(t, container.ConfigDB)
	assert.NotNil(t, container.AssessmentsDB)
	assert.NotNil(t, container.PortfolioService)
	assert.NotNil(t, container.AssessmentService)
	assert.NotNil(t, container.BackupService)

	// Verify the scheduler is built with jobs registered
	require.NotNil(t, container.Scheduler)
	statuses := container.Scheduler.Statuses()
	names := make(map[string]bool, len(statuses))
	for _, st := range statuses {
		names[st.Name] = true
	}
	assert.True(t, names["assessment_sweep"])
	assert.True(t, names["sync_prices"])
	assert.True(t, names["hourly_backup"])
	assert.True(t, names["daily_maintenance"])

	// Cleanup
	t.Cleanup(func() {
		if container != nil {
			container.HistoryBarsConn.Close()
			container.ConfigDB.Close()
			container.AssessmentsDB.Close()
			container.HistoryDB.Close()
			container.CacheDB.Close()
		}
	})
}

func TestWire_InvalidDataDir(t *testing.T) {
	// A regular file in the directory chain makes MkdirAll fail at any
	// privilege level.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o644))

	cfg := &config.Config{
		DataDir: filepath.Join(blocker, "data"),
	}

	container, err := Wire(cfg, zerolog.Nop())
	assert.Error(t, err)
	assert.Nil(t, container)
}
