package app

import (
	"context"
	"fmt"

	"github.com/semmidev/mdump/internal/adapter/storage"
	"github.com/semmidev/mdump/internal/domain"
	"github.com/semmidev/mdump/internal/infrastructure/scheduler"
	"github.com/semmidev/mdump/internal/usecase"
)

// cleanupSchedule runs retention cleanup daily at 03:00.
const cleanupSchedule = "0 0 3 * * *"

// scheduledBackup is a backup run without a terminal: the selection comes
// from configuration and is re-evaluated against the catalog on every run.
type scheduledBackup struct {
	app *App
}

func (j *scheduledBackup) Execute(ctx context.Context) error {
	server, err := j.app.connect(ctx)
	if err != nil {
		return err
	}

	catalog, err := usecase.LoadCatalog(ctx, server)
	if err != nil {
		return err
	}

	selection, err := j.app.selectDatabases(ctx, server, catalog)
	if err != nil {
		return err
	}

	result, err := j.app.backup(ctx, selection)
	if err != nil {
		return err
	}
	j.app.logger.Infof("Scheduled backup written to %s", result.ArchivePath)
	return nil
}

func (a *App) backupJob() domain.BackupJob {
	return domain.BackupJob{
		Name:     "backup",
		Schedule: a.config.Backup.Schedule,
		BackupUC: &scheduledBackup{app: a},
	}
}

// cleanupTargets lists the archive stores retention applies to: the local
// output directory first, then every upload target.
func (a *App) cleanupTargets() ([]usecase.UploadTarget, error) {
	dir := "."
	spec := usecase.ParseOutputSpec(a.config.Backup.Output)
	if spec.Kind == domain.OutputDirectory {
		dir = spec.Path
	}

	local, err := storage.NewLocal(dir)
	if err != nil {
		return nil, err
	}

	targets := []usecase.UploadTarget{{Name: "output", Storage: local}}
	return append(targets, a.uploadTargets...), nil
}

// RunSchedule runs backups on the configured cron spec until ctx is
// cancelled. Retention cleanup is scheduled alongside when enabled.
func (a *App) RunSchedule(ctx context.Context) error {
	if err := a.config.ValidateSchedule(); err != nil {
		return err
	}

	sched := scheduler.New(func(name string, err error) {
		a.logger.Errorf("Scheduled %s failed: %v", name, err)
	})

	job := a.backupJob()
	if err := sched.AddJob(job.Name, job.Schedule, func(ctx context.Context) error {
		a.logger.Infof("=== Triggered scheduled backup ===")
		return job.BackupUC.Execute(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule backup: %w", err)
	}

	if a.config.Backup.RetentionDays > 0 {
		targets, err := a.cleanupTargets()
		if err != nil {
			return fmt.Errorf("failed to initialize cleanup: %w", err)
		}
		cleanup := usecase.NewCleanup(targets, a.logger, a.config.Backup.RetentionDays)

		a.logger.Infof("Scheduling cleanup: %s", cleanupSchedule)
		if err := sched.AddJob("cleanup", cleanupSchedule, cleanup.Execute); err != nil {
			return fmt.Errorf("failed to schedule cleanup: %w", err)
		}
	}

	sched.Start()
	defer sched.Stop()

	a.logger.Infof("Scheduler started, next backup at %s", sched.NextRun(job.Name).Format("2006-01-02 15:04:05"))
	a.logger.Infof("Backup destinations: local + %d remote target(s)", len(a.uploadTargets))

	<-ctx.Done()
	a.logger.Infof("Stopping scheduler...")
	return nil
}
