package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Cleanup deletes archives older than the retention period from every
// destination a backup was copied to.
type Cleanup struct {
	targets       []UploadTarget
	logger        Logger
	retentionDays int
	now           func() time.Time
}

// NewCleanup takes the local archive store as the first target.
func NewCleanup(
	targets []UploadTarget,
	logger Logger,
	retentionDays int,
) *Cleanup {
	return &Cleanup{
		targets:       targets,
		logger:        logger,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

func (uc *Cleanup) Execute(ctx context.Context) error {
	if uc.retentionDays <= 0 {
		uc.logger.Debugf("Retention disabled, skipping cleanup")
		return nil
	}

	uc.logger.Infof("Starting cleanup, retention: %d days", uc.retentionDays)
	cutoff := uc.now().AddDate(0, 0, -uc.retentionDays)

	var wg sync.WaitGroup
	for _, target := range uc.targets {
		wg.Add(1)
		go func(t UploadTarget) {
			defer wg.Done()

			if err := uc.cleanupTarget(ctx, t, cutoff); err != nil {
				uc.logger.Errorf("Cleanup failed for %s: %v", t.Name, err)
			}
		}(target)
	}
	wg.Wait()

	uc.logger.Infof("Cleanup completed")
	return nil
}

func (uc *Cleanup) cleanupTarget(ctx context.Context, target UploadTarget, cutoff time.Time) error {
	files, err := target.Storage.GetOldFiles(ctx, cutoff)
	if err != nil {
		files, err = uc.fallbackListFiles(ctx, target, cutoff)
		if err != nil {
			return err
		}
	}

	deleted := 0
	for _, filename := range files {
		if !strings.HasSuffix(filename, ArchiveExt) {
			continue
		}
		uc.logger.Infof("Deleting old archive from %s: %s", target.Name, filename)

		if err := target.Storage.Delete(ctx, filename); err != nil {
			uc.logger.Errorf("Failed to delete %s from %s: %v", filename, target.Name, err)
		} else {
			deleted++
		}
	}

	uc.logger.Infof("Deleted %d old archive(s) from %s", deleted, target.Name)
	return nil
}

// fallbackListFiles dates archives by the timestamp in their name.
func (uc *Cleanup) fallbackListFiles(ctx context.Context, target UploadTarget, cutoff time.Time) ([]string, error) {
	files, err := target.Storage.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	oldFiles := make([]string, 0)
	for _, filename := range files {
		timestamp, err := extractTimestamp(filename)
		if err != nil {
			uc.logger.Warnf("Could not parse timestamp from %s: %v", filename, err)
			continue
		}

		if timestamp.Before(cutoff) {
			oldFiles = append(oldFiles, filename)
		}
	}

	return oldFiles, nil
}
