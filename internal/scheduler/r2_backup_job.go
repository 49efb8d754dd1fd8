package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/events"
	"github.com/aristath/bastion/internal/modules/settings"
	"github.com/aristath/bastion/internal/reliability"
)

// r2Timeout bounds one archive upload or rotation pass
const r2Timeout = 10 * time.Minute

// R2BackupJob uploads a backup archive to R2 cloud storage
type R2BackupJob struct {
	log      zerolog.Logger
	service  *reliability.R2BackupService
	settings *settings.Service
	bus      *events.Bus
}

// R2BackupJobConfig holds dependencies for the R2 backup job
type R2BackupJobConfig struct {
	Log             zerolog.Logger
	Service         *reliability.R2BackupService
	SettingsService *settings.Service
	EventBus        *events.Bus
}

// NewR2BackupJob creates a new R2 backup job
func NewR2BackupJob(cfg R2BackupJobConfig) *R2BackupJob {
	return &R2BackupJob{
		log:      cfg.Log.With().Str("job", "r2_backup").Logger(),
		service:  cfg.Service,
		settings: cfg.SettingsService,
		bus:      cfg.EventBus,
	}
}

// Name returns the job name for the scheduler
func (j *R2BackupJob) Name() string {
	return "r2_backup"
}

// Run creates and uploads a backup archive, unless backups are disabled
// in settings
func (j *R2BackupJob) Run() error {
	enabled, err := j.settings.Repo().GetBool("r2_backup_enabled", false)
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to read r2_backup_enabled, skipping")
		return nil
	}
	if !enabled {
		j.log.Debug().Msg("R2 backups disabled in settings, skipping")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), r2Timeout)
	defer cancel()

	if err := j.service.CreateAndUploadBackup(ctx); err != nil {
		return err
	}

	if j.bus != nil {
		j.bus.Emit(events.BackupCompleted, "r2_backup", map[string]interface{}{
			"destination": "r2",
		})
	}
	return nil
}

// R2BackupRotationJob deletes R2 archives past the retention window
type R2BackupRotationJob struct {
	log      zerolog.Logger
	service  *reliability.R2BackupService
	settings *settings.Service
}

// R2BackupRotationJobConfig holds dependencies for the rotation job
type R2BackupRotationJobConfig struct {
	Log             zerolog.Logger
	Service         *reliability.R2BackupService
	SettingsService *settings.Service
}

// NewR2BackupRotationJob creates a new R2 backup rotation job
func NewR2BackupRotationJob(cfg R2BackupRotationJobConfig) *R2BackupRotationJob {
	return &R2BackupRotationJob{
		log:      cfg.Log.With().Str("job", "r2_backup_rotation").Logger(),
		service:  cfg.Service,
		settings: cfg.SettingsService,
	}
}

// Name returns the job name for the scheduler
func (j *R2BackupRotationJob) Name() string {
	return "r2_backup_rotation"
}

// Run rotates old archives using the retention window from settings
func (j *R2BackupRotationJob) Run() error {
	enabled, err := j.settings.Repo().GetBool("r2_backup_enabled", false)
	if err != nil || !enabled {
		j.log.Debug().Msg("R2 backups disabled in settings, skipping rotation")
		return nil
	}

	retentionDays, err := j.settings.Repo().GetInt("r2_backup_retention_days", 90)
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to read retention setting, using 90 days")
		retentionDays = 90
	}

	ctx, cancel := context.WithTimeout(context.Background(), r2Timeout)
	defer cancel()

	return j.service.RotateOldBackups(ctx, retentionDays)
}
