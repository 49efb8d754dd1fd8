// Package reliability keeps the four databases recoverable: tiered local
// backups, cloud archives in R2, staged restores, and scheduled
// maintenance.
package reliability

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aristath/bastion/internal/database"
	"github.com/rs/zerolog"
)

// BackupService manages tiered local database backups. The assessments
// ledger is backed up hourly; the weekly tier includes the derived
// stores so a full machine can be rebuilt without any resync.
type BackupService struct {
	databases map[string]*database.DB
	dataDir   string
	backupDir string
	log       zerolog.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(
	databases map[string]*database.DB,
	dataDir string,
	backupDir string,
	log zerolog.Logger,
) *BackupService {
	return &BackupService{
		databases: databases,
		dataDir:   dataDir,
		backupDir: backupDir,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// GetDatabaseNames returns the managed database names in stable order.
// The derived stores (history, cache) can be excluded; they are rebuilt
// from the market data service after a restore.
func (s *BackupService) GetDatabaseNames(includeDerived bool) []string {
	names := []string{"config", "assessments"}
	if includeDerived {
		names = append(names, "history", "cache")
	}

	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := s.databases[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// HourlyBackup backs up the assessments ledger only.
// Keeps the last 24 hours.
func (s *BackupService) HourlyBackup() error {
	s.log.Info().Msg("Starting hourly backup")
	startTime := time.Now()

	hourlyDir := filepath.Join(s.backupDir, "hourly")
	if err := os.MkdirAll(hourlyDir, 0755); err != nil {
		return fmt.Errorf("failed to create hourly backup directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15")
	backupPath := filepath.Join(hourlyDir, fmt.Sprintf("assessments_%s.db", timestamp))

	if err := s.BackupDatabase("assessments", backupPath); err != nil {
		return fmt.Errorf("failed to backup assessments.db: %w", err)
	}

	if err := s.verifyBackup(backupPath); err != nil {
		os.Remove(backupPath)
		return fmt.Errorf("backup verification failed: %w", err)
	}

	if err := s.rotateHourlyBackups(hourlyDir); err != nil {
		s.log.Error().Err(err).Msg("Failed to rotate hourly backups")
		// Backup itself succeeded
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("backup_path", backupPath).
		Msg("Hourly backup completed successfully")
	return nil
}

// DailyBackup backs up config, assessments, and history.
// Keeps the last 30 days.
func (s *BackupService) DailyBackup() error {
	s.log.Info().Msg("Starting daily backup")
	startTime := time.Now()

	date := time.Now().Format("2006-01-02")
	dailyDir := filepath.Join(s.backupDir, "daily", date)
	if err := os.MkdirAll(dailyDir, 0755); err != nil {
		return fmt.Errorf("failed to create daily backup directory: %w", err)
	}

	for _, dbName := range []string{"config", "assessments", "history"} {
		backupPath := filepath.Join(dailyDir, dbName+".db")

		if err := s.BackupDatabase(dbName, backupPath); err != nil {
			s.log.Error().Str("database", dbName).Err(err).Msg("Failed to backup database")
			continue
		}
		if err := s.verifyBackup(backupPath); err != nil {
			s.log.Error().Str("database", dbName).Err(err).Msg("Backup verification failed")
			os.Remove(backupPath)
		}
	}

	if err := s.rotateDailyBackups(); err != nil {
		s.log.Error().Err(err).Msg("Failed to rotate daily backups")
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("backup_dir", dailyDir).
		Msg("Daily backup completed successfully")
	return nil
}

// WeeklyBackup backs up every database, including the derived stores.
// Keeps the last 12 weeks; older archives live in R2.
func (s *BackupService) WeeklyBackup() error {
	s.log.Info().Msg("Starting weekly backup")
	startTime := time.Now()

	year, week := time.Now().ISOWeek()
	weekDir := filepath.Join(s.backupDir, "weekly", fmt.Sprintf("%04d-W%02d", year, week))
	if err := os.MkdirAll(weekDir, 0755); err != nil {
		return fmt.Errorf("failed to create weekly backup directory: %w", err)
	}

	for _, dbName := range s.GetDatabaseNames(true) {
		backupPath := filepath.Join(weekDir, dbName+".db")

		if err := s.BackupDatabase(dbName, backupPath); err != nil {
			s.log.Error().Str("database", dbName).Err(err).Msg("Failed to backup database")
			continue
		}
		if err := s.verifyBackup(backupPath); err != nil {
			s.log.Error().Str("database", dbName).Err(err).Msg("Backup verification failed")
			os.Remove(backupPath)
		}
	}

	if err := s.rotateWeeklyBackups(); err != nil {
		s.log.Error().Err(err).Msg("Failed to rotate weekly backups")
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("backup_dir", weekDir).
		Msg("Weekly backup completed successfully")
	return nil
}

// BackupDatabase copies one database with SQLite's VACUUM INTO, which
// produces a fresh compacted file with no WAL sidecar.
func (s *BackupService) BackupDatabase(dbName, backupPath string) error {
	db, ok := s.databases[dbName]
	if !ok {
		return fmt.Errorf("database %s not found", dbName)
	}

	s.log.Debug().
		Str("database", dbName).
		Str("backup_path", backupPath).
		Msg("Backing up database")

	_, err := db.Conn().Exec(fmt.Sprintf("VACUUM INTO '%s'", backupPath))
	if err != nil {
		return fmt.Errorf("VACUUM INTO failed: %w", err)
	}

	info, err := os.Stat(backupPath)
	if err != nil {
		return fmt.Errorf("failed to stat backup: %w", err)
	}

	s.log.Debug().
		Str("database", dbName).
		Float64("size_mb", float64(info.Size())/1024/1024).
		Msg("Backup created")
	return nil
}

// verifyBackup opens the backup copy and runs an integrity check
func (s *BackupService) verifyBackup(backupPath string) error {
	return verifyBackupFile(backupPath)
}

// rotateHourlyBackups deletes backups older than 24 hours
func (s *BackupService) rotateHourlyBackups(hourlyDir string) error {
	cutoff := time.Now().Add(-24 * time.Hour)

	entries, err := os.ReadDir(hourlyDir)
	if err != nil {
		return fmt.Errorf("failed to read hourly backup directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(hourlyDir, entry.Name())
			if err := os.Remove(path); err != nil {
				s.log.Warn().Str("path", path).Err(err).Msg("Failed to delete old hourly backup")
			} else {
				s.log.Debug().Str("path", path).Msg("Deleted old hourly backup")
			}
		}
	}
	return nil
}

// rotateDailyBackups deletes backups older than 30 days
func (s *BackupService) rotateDailyBackups() error {
	dailyDir := filepath.Join(s.backupDir, "daily")
	cutoff := time.Now().AddDate(0, 0, -30)

	entries, err := os.ReadDir(dailyDir)
	if err != nil {
		return fmt.Errorf("failed to read daily backup directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dirDate, err := time.Parse("2006-01-02", entry.Name())
		if err != nil {
			s.log.Warn().Str("dir", entry.Name()).Msg("Failed to parse date from directory name")
			continue
		}

		if dirDate.Before(cutoff) {
			path := filepath.Join(dailyDir, entry.Name())
			if err := os.RemoveAll(path); err != nil {
				s.log.Warn().Str("path", path).Err(err).Msg("Failed to delete old daily backup")
			} else {
				s.log.Debug().Str("path", path).Msg("Deleted old daily backup")
			}
		}
	}
	return nil
}

// rotateWeeklyBackups deletes backups older than 12 weeks
func (s *BackupService) rotateWeeklyBackups() error {
	weeklyDir := filepath.Join(s.backupDir, "weekly")
	cutoff := time.Now().AddDate(0, 0, -12*7)

	entries, err := os.ReadDir(weeklyDir)
	if err != nil {
		return fmt.Errorf("failed to read weekly backup directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(weeklyDir, entry.Name())
			if err := os.RemoveAll(path); err != nil {
				s.log.Warn().Str("path", path).Err(err).Msg("Failed to delete old weekly backup")
			} else {
				s.log.Debug().Str("path", path).Msg("Deleted old weekly backup")
			}
		}
	}
	return nil
}

// RestoreFromBackup returns the path of the most recent local backup of
// one database, searching hourly (assessments only), then daily, then
// weekly tiers.
func (s *BackupService) RestoreFromBackup(dbName string) (string, error) {
	s.log.Warn().Str("database", dbName).Msg("Searching for backup to restore")

	if dbName == "assessments" {
		if path := s.findMostRecentBackup(filepath.Join(s.backupDir, "hourly"), dbName+".db", "assessments_*.db"); path != "" {
			s.log.Info().Str("backup", path).Msg("Found hourly backup")
			return path, nil
		}
	}

	for _, tier := range []string{"daily", "weekly"} {
		if path := s.findMostRecentBackup(filepath.Join(s.backupDir, tier), dbName+".db", ""); path != "" {
			s.log.Info().Str("backup", path).Str("tier", tier).Msg("Found backup")
			return path, nil
		}
	}

	return "", fmt.Errorf("no backup found for %s", dbName)
}

// findMostRecentBackup walks a tier directory for the newest match
func (s *BackupService) findMostRecentBackup(baseDir, filename, pattern string) string {
	var mostRecent string
	var mostRecentTime time.Time

	if err := filepath.Walk(baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}

		match := false
		if pattern != "" {
			matched, _ := filepath.Match(pattern, filepath.Base(path))
			match = matched
		} else {
			match = filepath.Base(path) == filename
		}

		if match && info.ModTime().After(mostRecentTime) {
			mostRecent = path
			mostRecentTime = info.ModTime()
		}
		return nil
	}); err != nil {
		s.log.Warn().Err(err).Str("base_dir", baseDir).Msg("Error walking directory for backup search")
	}

	return mostRecent
}

// CopyFile copies src to dst, creating or truncating dst
func CopyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

// HourlyBackupJob wraps BackupService.HourlyBackup for the scheduler
type HourlyBackupJob struct {
	service *BackupService
}

// NewHourlyBackupJob creates a new hourly backup job
func NewHourlyBackupJob(service *BackupService) *HourlyBackupJob {
	return &HourlyBackupJob{service: service}
}

// Run executes the hourly backup
func (j *HourlyBackupJob) Run() error {
	return j.service.HourlyBackup()
}

// Name returns the job name for the scheduler
func (j *HourlyBackupJob) Name() string {
	return "hourly_backup"
}

// DailyBackupJob wraps BackupService.DailyBackup for the scheduler
type DailyBackupJob struct {
	service *BackupService
}

// NewDailyBackupJob creates a new daily backup job
func NewDailyBackupJob(service *BackupService) *DailyBackupJob {
	return &DailyBackupJob{service: service}
}

// Run executes the daily backup
func (j *DailyBackupJob) Run() error {
	return j.service.DailyBackup()
}

// Name returns the job name for the scheduler
func (j *DailyBackupJob) Name() string {
	return "daily_backup"
}

// WeeklyBackupJob wraps BackupService.WeeklyBackup for the scheduler
type WeeklyBackupJob struct {
	service *BackupService
}

// NewWeeklyBackupJob creates a new weekly backup job
func NewWeeklyBackupJob(service *BackupService) *WeeklyBackupJob {
	return &WeeklyBackupJob{service: service}
}

// Run executes the weekly backup
func (j *WeeklyBackupJob) Run() error {
	return j.service.WeeklyBackup()
}

// Name returns the job name for the scheduler
func (j *WeeklyBackupJob) Name() string {
	return "weekly_backup"
}
