package reliability

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/database"
)

// dailyBackupNames are the databases covered by the daily backup tier
var dailyBackupNames = []string{"config", "assessments", "history"}

// DailyMaintenanceJob performs daily database maintenance (2 AM)
type DailyMaintenanceJob struct {
	databases      map[string]*database.DB
	healthServices map[string]*DatabaseHealthService
	backupDir      string
	log            zerolog.Logger
}

// NewDailyMaintenanceJob creates a new daily maintenance job
func NewDailyMaintenanceJob(
	databases map[string]*database.DB,
	healthServices map[string]*DatabaseHealthService,
	backupDir string,
	log zerolog.Logger,
) *DailyMaintenanceJob {
	return &DailyMaintenanceJob{
		databases:      databases,
		healthServices: healthServices,
		backupDir:      backupDir,
		log:            log.With().Str("job", "daily_maintenance").Logger(),
	}
}

// Run executes the daily maintenance job
func (j *DailyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting daily maintenance")
	startTime := time.Now()

	// Step 1: Integrity check and auto-recovery for all databases
	for name, healthService := range j.healthServices {
		j.log.Debug().Str("database", name).Msg("Running integrity check")

		if err := healthService.CheckAndRecover(); err != nil {
			j.log.Error().
				Str("database", name).
				Err(err).
				Msg("Failed to recover database")
			return fmt.Errorf("failed to recover %s: %w", name, err)
		}
	}

	// Step 2: WAL checkpoint for all databases (prevent bloat)
	for name, db := range j.databases {
		j.log.Debug().Str("database", name).Msg("Running WAL checkpoint")

		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().
				Str("database", name).
				Err(err).
				Msg("WAL checkpoint failed")
			// Not critical, continue
		}
	}

	// Step 3: Check disk space, halt on critical shortage
	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	// Step 4: Verify yesterday's backups
	if err := j.verifyBackups(); err != nil {
		j.log.Error().Err(err).Msg("Backup verification failed")
		// Log but don't halt, today's backup still runs
	}

	// Step 5: Log database sizes for growth tracking
	j.logDatabaseMetrics()

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Daily maintenance completed successfully")

	return nil
}

// Name returns the job name for the scheduler
func (j *DailyMaintenanceJob) Name() string {
	return "daily_maintenance"
}

// checkDiskSpace verifies sufficient disk space is available
func (j *DailyMaintenanceJob) checkDiskSpace() error {
	stat := syscall.Statfs_t{}
	dataDir := filepath.Dir(j.backupDir)
	if err := syscall.Statfs(dataDir, &stat); err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableBytes := stat.Bavail * uint64(stat.Bsize)
	availableGB := float64(availableBytes) / 1e9

	j.log.Debug().Float64("available_gb", availableGB).Msg("Disk space check")

	if availableGB < 0.5 {
		j.log.Error().
			Float64("available_gb", availableGB).
			Msg("Insufficient disk space, halting maintenance")
		return fmt.Errorf("only %.2f GB free, maintenance halted", availableGB)
	}

	if availableGB < 5.0 {
		j.log.Warn().
			Float64("available_gb", availableGB).
			Msg("Disk space running low")
	}

	return nil
}

// verifyBackups checks integrity of yesterday's daily backups
func (j *DailyMaintenanceJob) verifyBackups() error {
	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	dailyBackupDir := filepath.Join(j.backupDir, "daily", yesterday)

	if _, err := os.Stat(dailyBackupDir); os.IsNotExist(err) {
		return fmt.Errorf("yesterday's backup directory not found: %s", dailyBackupDir)
	}

	for _, dbName := range dailyBackupNames {
		if _, ok := j.databases[dbName]; !ok {
			continue
		}

		backupPath := filepath.Join(dailyBackupDir, dbName+".db")

		if _, err := os.Stat(backupPath); os.IsNotExist(err) {
			j.log.Error().
				Str("database", dbName).
				Str("path", backupPath).
				Msg("Backup file missing")
			continue
		}

		if err := verifyBackupFile(backupPath); err != nil {
			j.log.Error().
				Str("database", dbName).
				Err(err).
				Msg("Backup integrity check failed")
		} else {
			j.log.Debug().
				Str("database", dbName).
				Msg("Backup verified")
		}
	}

	return nil
}

// logDatabaseMetrics records size and WAL metrics for each database
func (j *DailyMaintenanceJob) logDatabaseMetrics() {
	for name, healthService := range j.healthServices {
		metrics, err := healthService.GetMetrics()
		if err != nil {
			j.log.Error().
				Str("database", name).
				Err(err).
				Msg("Failed to get metrics")
			continue
		}

		j.log.Info().
			Str("database", name).
			Float64("size_mb", metrics.SizeMB).
			Float64("wal_size_mb", metrics.WALSizeMB).
			Msg("Database metrics")
	}
}

// WeeklyMaintenanceJob performs weekly database maintenance (Sunday 3 AM).
// It vacuums the derived stores, which churn the most: history rows are
// replaced on every sync and cache entries expire continuously.
type WeeklyMaintenanceJob struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewWeeklyMaintenanceJob creates a new weekly maintenance job
func NewWeeklyMaintenanceJob(databases map[string]*database.DB, log zerolog.Logger) *WeeklyMaintenanceJob {
	return &WeeklyMaintenanceJob{
		databases: databases,
		log:       log.With().Str("job", "weekly_maintenance").Logger(),
	}
}

// Run executes the weekly maintenance job
func (j *WeeklyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting weekly maintenance")
	startTime := time.Now()

	for _, dbName := range []string{"history", "cache"} {
		db, ok := j.databases[dbName]
		if !ok {
			continue
		}

		if err := vacuumDatabase(db, dbName, j.log); err != nil {
			j.log.Error().
				Str("database", dbName).
				Err(err).
				Msg("VACUUM failed")
			// Continue with other databases
		}
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Weekly maintenance completed successfully")

	return nil
}

// Name returns the job name for the scheduler
func (j *WeeklyMaintenanceJob) Name() string {
	return "weekly_maintenance"
}

// MonthlyMaintenanceJob performs monthly database maintenance (1st day, 4 AM)
type MonthlyMaintenanceJob struct {
	databases      map[string]*database.DB
	healthServices map[string]*DatabaseHealthService
	backupDir      string
	log            zerolog.Logger
}

// NewMonthlyMaintenanceJob creates a new monthly maintenance job
func NewMonthlyMaintenanceJob(
	databases map[string]*database.DB,
	healthServices map[string]*DatabaseHealthService,
	backupDir string,
	log zerolog.Logger,
) *MonthlyMaintenanceJob {
	return &MonthlyMaintenanceJob{
		databases:      databases,
		healthServices: healthServices,
		backupDir:      backupDir,
		log:            log.With().Str("job", "monthly_maintenance").Logger(),
	}
}

// Run executes the monthly maintenance job
func (j *MonthlyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting monthly maintenance")
	startTime := time.Now()

	// Step 1: VACUUM all databases except the append-only assessment ledger
	for name, db := range j.databases {
		if name == "assessments" {
			j.log.Debug().
				Str("database", name).
				Msg("Skipping VACUUM for append-only assessment ledger")
			continue
		}

		if err := vacuumDatabase(db, name, j.log); err != nil {
			j.log.Error().
				Str("database", name).
				Err(err).
				Msg("VACUUM failed")
			// Continue with other databases
		}
	}

	// Step 2: Full backup verification (copy latest daily set to temp, check integrity)
	if err := j.fullBackupVerification(); err != nil {
		j.log.Error().Err(err).Msg("Backup verification failed")
		return fmt.Errorf("backup verification failed: %w", err)
	}

	// Step 3: Database growth analysis
	j.analyzeGrowthTrends()

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Monthly maintenance completed successfully")

	return nil
}

// Name returns the job name for the scheduler
func (j *MonthlyMaintenanceJob) Name() string {
	return "monthly_maintenance"
}

// fullBackupVerification copies the latest daily backup set to a temp
// directory and verifies each database's integrity
func (j *MonthlyMaintenanceJob) fullBackupVerification() error {
	j.log.Info().Msg("Starting full backup verification")

	tempDir, err := os.MkdirTemp("", "backup_verification_*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	dailyBackupDir := filepath.Join(j.backupDir, "daily")
	entries, err := os.ReadDir(dailyBackupDir)
	if err != nil {
		return fmt.Errorf("failed to read daily backup directory: %w", err)
	}

	if len(entries) == 0 {
		return fmt.Errorf("no daily backups found")
	}

	// Entries are named YYYY-MM-DD, so lexical order is date order
	var mostRecentBackup string
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].IsDir() {
			mostRecentBackup = entries[i].Name()
			break
		}
	}

	if mostRecentBackup == "" {
		return fmt.Errorf("no valid backup directory found")
	}

	backupPath := filepath.Join(dailyBackupDir, mostRecentBackup)
	j.log.Info().Str("backup_date", mostRecentBackup).Msg("Verifying backup")

	for _, name := range dailyBackupNames {
		if _, ok := j.databases[name]; !ok {
			continue
		}

		dbFile := name + ".db"
		srcPath := filepath.Join(backupPath, dbFile)
		dstPath := filepath.Join(tempDir, dbFile)

		if err := CopyFile(srcPath, dstPath); err != nil {
			j.log.Warn().
				Str("database", name).
				Err(err).
				Msg("Failed to copy backup for verification, skipping")
			continue
		}

		if err := verifyBackupFile(dstPath); err != nil {
			return fmt.Errorf("integrity check failed for %s: %w", dbFile, err)
		}

		j.log.Debug().Str("database", dbFile).Msg("Backup verified")
	}

	j.log.Info().
		Str("backup_date", mostRecentBackup).
		Msg("Full backup verification completed successfully")

	return nil
}

// analyzeGrowthTrends logs per-database size metrics
func (j *MonthlyMaintenanceJob) analyzeGrowthTrends() {
	j.log.Info().Msg("Analyzing database growth trends")

	for name, healthService := range j.healthServices {
		metrics, err := healthService.GetMetrics()
		if err != nil {
			j.log.Error().
				Str("database", name).
				Err(err).
				Msg("Failed to get metrics")
			continue
		}

		j.log.Info().
			Str("database", name).
			Float64("size_mb", metrics.SizeMB).
			Int64("freelist_pages", metrics.FreelistPages).
			Msg("Monthly growth analysis")
	}
}

// vacuumDatabase performs VACUUM on a database and logs reclaimed space
func vacuumDatabase(db *database.DB, name string, log zerolog.Logger) error {
	log.Debug().Str("database", name).Msg("Starting VACUUM")

	before, err := db.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read stats before VACUUM: %w", err)
	}
	sizeBefore := float64(before.PageCount*before.PageSize) / 1024 / 1024

	if err := db.Vacuum(); err != nil {
		return err
	}

	after, err := db.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read stats after VACUUM: %w", err)
	}
	sizeAfter := float64(after.PageCount*after.PageSize) / 1024 / 1024

	log.Info().
		Str("database", name).
		Float64("size_before_mb", sizeBefore).
		Float64("size_after_mb", sizeAfter).
		Float64("space_reclaimed_mb", sizeBefore-sizeAfter).
		Msg("VACUUM completed")

	return nil
}

// verifyBackupFile opens a backup database file and runs an integrity check
func verifyBackupFile(path string) error {
	backupDB, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer backupDB.Close()

	var result string
	if err := backupDB.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check returned %q", result)
	}

	return nil
}
