// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/config"
	"github.com/aristath/bastion/internal/reliability"
	"github.com/aristath/bastion/internal/scheduler"
)

// RegisterJobs creates the scheduler, registers all background jobs and
// stores the scheduler in the container. Jobs can also be triggered
// manually through the API via Scheduler.RunByName.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	sched := scheduler.New(log)
	sched.SetEventBus(container.EventBus)

	// ==========================================
	// ASSESSMENT AND SYNC JOBS
	// ==========================================

	// Job 1: Assessment Sweep (interval from settings, default every 15 minutes)
	assessMinutes, err := container.SettingsRepo.GetFloat("job_assessment_minutes", 15)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read assessment cadence, using default")
		assessMinutes = 15
	}
	assessmentSweep := scheduler.NewAssessmentSweepJob(scheduler.AssessmentSweepConfig{
		Log:        log,
		Portfolios: container.PortfolioService,
		Assessor:   container.AssessmentService,
	})
	if err := sched.AddJob(everyMinutesSpec(assessMinutes), assessmentSweep); err != nil {
		return fmt.Errorf("failed to register assessment_sweep job: %w", err)
	}

	// Job 2: Price Sync (interval from settings, default every 15 minutes)
	syncMinutes, err := container.SettingsRepo.GetFloat("job_sync_cycle_minutes", 15)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read sync cadence, using default")
		syncMinutes = 15
	}
	syncPrices := scheduler.NewSyncPricesJob(scheduler.SyncPricesConfig{
		Log:             log,
		Snapshots:       container.PortfolioService,
		Syncer:          container.SyncService,
		SettingsService: container.SettingsService,
	})
	if err := sched.AddJob(everyMinutesSpec(syncMinutes), syncPrices); err != nil {
		return fmt.Errorf("failed to register sync_prices job: %w", err)
	}

	// ==========================================
	// RELIABILITY JOBS
	// ==========================================

	dataDir := cfg.DataDir
	backupDir := dataDir + "/backups"

	// Job 3: Hourly Backup (every hour at :00)
	hourlyBackup := reliability.NewHourlyBackupJob(container.BackupService)
	if err := sched.AddJob("0 0 * * * *", hourlyBackup); err != nil {
		return fmt.Errorf("failed to register hourly_backup job: %w", err)
	}

	// Job 4: Daily Backup (daily at 1:00 AM, before maintenance)
	dailyBackup := reliability.NewDailyBackupJob(container.BackupService)
	if err := sched.AddJob("0 0 1 * * *", dailyBackup); err != nil {
		return fmt.Errorf("failed to register daily_backup job: %w", err)
	}

	// Job 5: Daily Maintenance (daily at 2:00 AM)
	dailyMaintenance := reliability.NewDailyMaintenanceJob(container.Databases, container.HealthServices, backupDir, log)
	if err := sched.AddJob("0 0 2 * * *", dailyMaintenance); err != nil {
		return fmt.Errorf("failed to register daily_maintenance job: %w", err)
	}

	// Job 6: Weekly Backup (Sunday at 1:00 AM)
	weeklyBackup := reliability.NewWeeklyBackupJob(container.BackupService)
	if err := sched.AddJob("0 0 1 * * 0", weeklyBackup); err != nil {
		return fmt.Errorf("failed to register weekly_backup job: %w", err)
	}

	// Job 7: Weekly Maintenance (Sunday at 3:30 AM)
	weeklyMaintenance := reliability.NewWeeklyMaintenanceJob(container.Databases, log)
	if err := sched.AddJob("0 30 3 * * 0", weeklyMaintenance); err != nil {
		return fmt.Errorf("failed to register weekly_maintenance job: %w", err)
	}

	// Job 8: Monthly Maintenance (1st day at 4:00 AM)
	monthlyMaintenance := reliability.NewMonthlyMaintenanceJob(container.Databases, container.HealthServices, backupDir, log)
	if err := sched.AddJob("0 0 4 1 * *", monthlyMaintenance); err != nil {
		return fmt.Errorf("failed to register monthly_maintenance job: %w", err)
	}

	// ==========================================
	// R2 CLOUD BACKUP JOBS (optional - only if configured)
	// ==========================================

	if container.R2BackupService != nil {
		// Job 9: R2 Backup (daily at 3:00 AM, after local backups complete)
		r2Backup := scheduler.NewR2BackupJob(scheduler.R2BackupJobConfig{
			Log:             log,
			Service:         container.R2BackupService,
			SettingsService: container.SettingsService,
			EventBus:        container.EventBus,
		})
		if err := sched.AddJob("0 0 3 * * *", r2Backup); err != nil {
			return fmt.Errorf("failed to register r2_backup job: %w", err)
		}

		// Job 10: R2 Backup Rotation (daily at 3:30 AM)
		r2Rotation := scheduler.NewR2BackupRotationJob(scheduler.R2BackupRotationJobConfig{
			Log:             log,
			Service:         container.R2BackupService,
			SettingsService: container.SettingsService,
		})
		if err := sched.AddJob("0 30 3 * * *", r2Rotation); err != nil {
			return fmt.Errorf("failed to register r2_backup_rotation job: %w", err)
		}

		log.Info().Msg("R2 backup jobs registered")
	} else {
		log.Debug().Msg("R2 backup service not available - R2 jobs not registered")
	}

	container.Scheduler = sched

	log.Info().Msg("Background jobs registered successfully")

	return nil
}

// everyMinutesSpec renders a with-seconds cron spec firing every n minutes.
// Cadences of an hour or more collapse to hourly so the minute field stays
// in range.
func everyMinutesSpec(minutes float64) string {
	n := int(minutes)
	if n < 1 {
		n = 1
	}
	if n >= 60 {
		return "0 0 * * * *"
	}
	return fmt.Sprintf("0 */%d * * * *", n)
}
