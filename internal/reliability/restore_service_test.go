package reliability

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/bastion/pkg/logger"
)

func TestRestoreService_CheckPendingRestore(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Pretty: false})

	t.Run("reports false when nothing is staged", func(t *testing.T) {
		restoreService := NewRestoreService(nil, t.TempDir(), log)

		pending, err := restoreService.CheckPendingRestore()
		require.NoError(t, err)
		assert.False(t, pending)
	})

	t.Run("reports true when a manifest exists", func(t *testing.T) {
		dataDir := t.TempDir()
		restoreService := NewRestoreService(nil, dataDir, log)

		err := os.WriteFile(filepath.Join(dataDir, "restore-pending.json"), []byte("{}"), 0644)
		require.NoError(t, err)

		pending, err := restoreService.CheckPendingRestore()
		require.NoError(t, err)
		assert.True(t, pending)
	})
}

// stagePendingRestore lays out a staging directory and manifest the way
// StageRestore would, without touching R2.
func stagePendingRestore(t *testing.T, dataDir string, files map[string][]byte) RestoreManifest {
	t.Helper()

	stagingDir := filepath.Join(dataDir, "restore-staging")
	require.NoError(t, os.MkdirAll(stagingDir, 0755))

	manifest := RestoreManifest{
		Archive:  "bastion-backup-2026-08-20-020000.tar.gz",
		StagedAt: time.Now().UTC(),
	}

	for name, content := range files {
		filename := name + ".db"
		path := filepath.Join(stagingDir, filename)
		require.NoError(t, os.WriteFile(path, content, 0644))

		checksum, err := checksumFile(path)
		require.NoError(t, err)

		manifest.Databases = append(manifest.Databases, DatabaseMetadata{
			Name:      name,
			Filename:  filename,
			SizeBytes: int64(len(content)),
			Checksum:  checksum,
		})
	}

	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "restore-pending.json"), data, 0644))

	return manifest
}

func TestRestoreService_ExecuteStagedRestore(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Pretty: false})

	t.Run("installs staged files and clears the staging area", func(t *testing.T) {
		dataDir := t.TempDir()
		restoreService := NewRestoreService(nil, dataDir, log)

		// Existing live files that should be set aside
		require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.db"), []byte("live config"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.db-wal"), []byte("wal"), 0644))

		stagePendingRestore(t, dataDir, map[string][]byte{
			"config":      []byte("restored config"),
			"assessments": []byte("restored assessments"),
		})

		err := restoreService.ExecuteStagedRestore()
		require.NoError(t, err)

		restored, err := os.ReadFile(filepath.Join(dataDir, "config.db"))
		require.NoError(t, err)
		assert.Equal(t, []byte("restored config"), restored)

		restored, err = os.ReadFile(filepath.Join(dataDir, "assessments.db"))
		require.NoError(t, err)
		assert.Equal(t, []byte("restored assessments"), restored)

		// Replaced file is kept, WAL sidecar is not
		aside, err := os.ReadFile(filepath.Join(dataDir, "config.db.pre-restore"))
		require.NoError(t, err)
		assert.Equal(t, []byte("live config"), aside)

		_, err = os.Stat(filepath.Join(dataDir, "config.db-wal"))
		assert.True(t, os.IsNotExist(err))

		pending, err := restoreService.CheckPendingRestore()
		require.NoError(t, err)
		assert.False(t, pending, "Manifest should be removed after restore")

		_, err = os.Stat(filepath.Join(dataDir, "restore-staging"))
		assert.True(t, os.IsNotExist(err), "Staging directory should be removed")
	})

	t.Run("refuses to install a corrupted staged file", func(t *testing.T) {
		dataDir := t.TempDir()
		restoreService := NewRestoreService(nil, dataDir, log)

		stagePendingRestore(t, dataDir, map[string][]byte{
			"config": []byte("restored config"),
		})

		// Tamper with the staged file after checksums were recorded
		stagedPath := filepath.Join(dataDir, "restore-staging", "config.db")
		require.NoError(t, os.WriteFile(stagedPath, []byte("tampered"), 0644))

		err := restoreService.ExecuteStagedRestore()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "corrupted")

		_, err = os.Stat(filepath.Join(dataDir, "config.db"))
		assert.True(t, os.IsNotExist(err), "No file should be installed")
	})

	t.Run("fails without a manifest", func(t *testing.T) {
		restoreService := NewRestoreService(nil, t.TempDir(), log)

		err := restoreService.ExecuteStagedRestore()
		assert.Error(t, err)
	})
}

func TestRestoreService_CancelPendingRestore(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Pretty: false})

	t.Run("removes the manifest and staging directory", func(t *testing.T) {
		dataDir := t.TempDir()
		restoreService := NewRestoreService(nil, dataDir, log)

		stagePendingRestore(t, dataDir, map[string][]byte{
			"config": []byte("staged"),
		})

		err := restoreService.CancelPendingRestore()
		require.NoError(t, err)

		pending, err := restoreService.CheckPendingRestore()
		require.NoError(t, err)
		assert.False(t, pending)
	})

	t.Run("errors when nothing is pending", func(t *testing.T) {
		restoreService := NewRestoreService(nil, t.TempDir(), log)

		err := restoreService.CancelPendingRestore()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no restore pending")
	})
}

func TestRestoreService_StageRestoreRequiresClient(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Pretty: false})

	restoreService := NewRestoreService(nil, t.TempDir(), log)

	err := restoreService.StageRestore(context.Background(), "bastion-backup-2026-08-20-020000.tar.gz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "r2 client not configured")
}
