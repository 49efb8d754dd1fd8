package reliability

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/database"
)

// DatabaseHealthService monitors one database and performs auto-recovery
// when corruption is detected: WAL recovery first, then restore from the
// most recent local backup.
type DatabaseHealthService struct {
	db        *database.DB
	name      string
	path      string
	backupDir string
	log       zerolog.Logger
}

// NewDatabaseHealthService creates a health service for one database
func NewDatabaseHealthService(db *database.DB, backupDir string, log zerolog.Logger) *DatabaseHealthService {
	return &DatabaseHealthService{
		db:        db,
		name:      db.Name(),
		path:      db.Path(),
		backupDir: backupDir,
		log:       log.With().Str("service", "health").Str("database", db.Name()).Logger(),
	}
}

// DB returns the current database handle. It changes after a recovery.
func (s *DatabaseHealthService) DB() *database.DB {
	return s.db
}

// CheckAndRecover performs a health check and auto-recovery if needed
func (s *DatabaseHealthService) CheckAndRecover() error {
	s.log.Debug().Msg("Starting health check")

	if err := s.checkIntegrity(); err != nil {
		s.log.Error().Err(err).Msg("Integrity check failed")

		if err := s.attemptWALRecovery(); err != nil {
			s.log.Error().Err(err).Msg("WAL recovery failed")
			return s.restoreFromBackup()
		}

		if err := s.checkIntegrity(); err != nil {
			s.log.Error().Err(err).Msg("Integrity check failed after WAL recovery")
			return s.restoreFromBackup()
		}

		s.log.Info().Msg("Database recovered via WAL recovery")
	}

	s.log.Debug().Msg("Health check complete")
	return nil
}

// checkIntegrity runs PRAGMA integrity_check
func (s *DatabaseHealthService) checkIntegrity() error {
	var result string
	err := s.db.Conn().QueryRow("PRAGMA integrity_check").Scan(&result)
	if err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}

	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}

// attemptWALRecovery reopens the database and forces a WAL restart so
// pending frames are replayed into the main file
func (s *DatabaseHealthService) attemptWALRecovery() error {
	s.log.Warn().Msg("Attempting WAL recovery")

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	newDB, err := database.New(database.Config{
		Path:    s.path,
		Profile: s.db.Profile(),
		Name:    s.name,
	})
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}

	if err := newDB.WALCheckpoint("RESTART"); err != nil {
		return fmt.Errorf("WAL checkpoint failed: %w", err)
	}

	s.db = newDB

	s.log.Info().Msg("WAL recovery completed")
	return nil
}

// restoreFromBackup replaces the database with its most recent local backup
func (s *DatabaseHealthService) restoreFromBackup() error {
	s.log.Warn().Msg("Attempting restore from backup")

	backup := s.findMostRecentBackup()
	if backup == "" {
		return fmt.Errorf("no backup found for %s", s.name)
	}

	s.log.Info().Str("backup", backup).Msg("Found backup")

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	// Keep the corrupted file for investigation
	corruptedPath := s.path + ".corrupted." + time.Now().Format("20060102_150405")
	if err := os.Rename(s.path, corruptedPath); err != nil {
		s.log.Error().Err(err).Msg("Failed to set aside corrupted file")
	} else {
		s.log.Info().Str("path", corruptedPath).Msg("Corrupted file set aside")
	}

	if err := CopyFile(backup, s.path); err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}

	newDB, err := database.New(database.Config{
		Path:    s.path,
		Profile: s.db.Profile(),
		Name:    s.name,
	})
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}

	s.db = newDB

	var result string
	err = s.db.Conn().QueryRow("PRAGMA integrity_check").Scan(&result)
	if err != nil || result != "ok" {
		return fmt.Errorf("restored backup for %s is also corrupt", s.name)
	}

	s.log.Info().
		Str("backup", backup).
		Msg("Successfully restored from backup")

	return nil
}

// findMostRecentBackup searches all backup tiers for this database's file
func (s *DatabaseHealthService) findMostRecentBackup() string {
	var mostRecent string
	var mostRecentTime time.Time

	filename := filepath.Base(s.path)

	if err := filepath.Walk(s.backupDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		if !info.IsDir() && filepath.Base(path) == filename {
			if info.ModTime().After(mostRecentTime) {
				mostRecent = path
				mostRecentTime = info.ModTime()
			}
		}

		return nil
	}); err != nil {
		s.log.Warn().Err(err).Str("backup_dir", s.backupDir).Msg("Error walking directory for backup search")
	}

	return mostRecent
}

// GetMetrics returns current database health metrics
func (s *DatabaseHealthService) GetMetrics() (*DatabaseMetrics, error) {
	stats, err := s.db.GetStats()
	if err != nil {
		return nil, fmt.Errorf("failed to read database stats: %w", err)
	}

	metrics := &DatabaseMetrics{
		Name:          s.name,
		SizeMB:        float64(stats.SizeBytes) / 1024 / 1024,
		WALSizeMB:     float64(stats.WALSizeBytes) / 1024 / 1024,
		FreelistPages: stats.FreelistCount,
	}

	var result string
	if err := s.db.Conn().QueryRow("PRAGMA integrity_check").Scan(&result); err == nil {
		metrics.IntegrityCheckPassed = result == "ok"
		metrics.LastIntegrityCheck = time.Now()
	}

	return metrics, nil
}

// DatabaseMetrics holds database health metrics
type DatabaseMetrics struct {
	Name                 string
	SizeMB               float64
	WALSizeMB            float64
	FreelistPages        int64
	LastIntegrityCheck   time.Time
	IntegrityCheckPassed bool
}
