package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/semmidev/mdump/internal/domain"
)

type UploadTarget struct {
	Name    string
	Storage domain.Storage
}

type Logger interface {
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

// Reporter receives per-database progress from the orchestrators.
type Reporter interface {
	Start(database, action string)
	Finish(database string, err error)
}

type nopReporter struct{}

func (nopReporter) Start(string, string)  {}
func (nopReporter) Finish(string, error) {}

type Backup struct {
	dumper        domain.Dumper
	archiver      domain.Archiver
	uploadTargets []UploadTarget
	logger        Logger
	reporter      Reporter
	tempRoot      string
	host          string
	now           func() time.Time
}

type BackupOption func(*Backup)

func WithBackupReporter(r Reporter) BackupOption {
	return func(b *Backup) { b.reporter = r }
}

// WithStagingRoot sets where per-run staging directories are created.
func WithStagingRoot(root string) BackupOption {
	return func(b *Backup) { b.tempRoot = root }
}

func WithSourceHost(host string) BackupOption {
	return func(b *Backup) { b.host = host }
}

func WithBackupClock(now func() time.Time) BackupOption {
	return func(b *Backup) { b.now = now }
}

func NewBackup(
	dumper domain.Dumper,
	archiver domain.Archiver,
	uploadTargets []UploadTarget,
	logger Logger,
	opts ...BackupOption,
) *Backup {
	b := &Backup{
		dumper:        dumper,
		archiver:      archiver,
		uploadTargets: uploadTargets,
		logger:        logger,
		reporter:      nopReporter{},
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Execute dumps every database of plan in order and packs the dumps into one
// archive. The first failed dump aborts the run and no archive is left
// behind.
func (uc *Backup) Execute(ctx context.Context, plan domain.BackupPlan) (*domain.BackupResult, error) {
	if len(plan.Databases) == 0 {
		return nil, &domain.InvalidSelectionError{Reason: "no databases selected"}
	}

	run := NewRun(uc.now(), uc.tempRoot)
	defer func() {
		if err := run.Close(); err != nil {
			uc.logger.Warnf("Failed to clean up staging files: %v", err)
		}
	}()

	out := ResolveSpec(plan.Output, run.Timestamp)
	if err := PrepareOutput(&out); err != nil {
		return nil, err
	}
	uc.logger.Infof("Backup run %s: %d database(s) to %s", run.ID, len(plan.Databases), out.ArchivePath)

	staging, err := run.TempDir("mdump-backup-")
	if err != nil {
		discardOutput(out)
		return nil, err
	}

	files, err := uc.dumpAll(ctx, run, staging, plan.Databases)
	if err != nil {
		discardOutput(out)
		return nil, err
	}

	meta := &domain.ArchiveMetadata{
		RunID:     run.ID,
		CreatedAt: run.Timestamp,
		Host:      uc.host,
	}
	for _, f := range files {
		meta.Databases = append(meta.Databases, domain.ArchivedDatabase{File: f.Name, Database: f.Database})
	}

	uc.logger.Infof("Packing %d dump(s) into %s", len(files), out.ArchivePath)
	if err := uc.archiver.Pack(out.ArchivePath, files, meta); err != nil {
		discardOutput(out)
		return nil, fmt.Errorf("compression: %w", err)
	}

	result, err := uc.describe(run, out, plan.Databases)
	if err != nil {
		discardOutput(out)
		return nil, err
	}

	result.Uploaded = uc.uploadToTargets(ctx, out.ArchivePath, filepath.Base(out.ArchivePath))

	uc.logger.Infof("Backup completed in %s: %s (%.2f MB)",
		time.Since(run.Timestamp).Round(time.Second), out.ArchivePath, megabytes(result.Size))

	return result, nil
}

func (uc *Backup) dumpAll(ctx context.Context, run *Run, staging string, databases domain.SelectionSet) ([]domain.ArchiveFile, error) {
	files := make([]domain.ArchiveFile, 0, len(databases))
	succeeded := make([]string, 0, len(databases))

	for i, db := range databases {
		if err := ctx.Err(); err != nil {
			return nil, uc.abort(db, err, succeeded, databases[i+1:])
		}

		name := fmt.Sprintf("%s_%s%s", db, run.Stamp(), DumpExt)
		path := filepath.Join(staging, name)

		uc.logger.Infof("[%s] Dumping to %s", db, name)
		uc.reporter.Start(db, "dumping")
		err := uc.dumper.Dump(ctx, db, path)
		uc.reporter.Finish(db, err)
		if err != nil {
			return nil, uc.abort(db, err, succeeded, databases[i+1:])
		}

		if info, err := os.Stat(path); err == nil {
			uc.logger.Infof("[%s] Dump created, size: %.2f MB", db, megabytes(info.Size()))
		}

		files = append(files, domain.ArchiveFile{Path: path, Name: name, Database: db})
		succeeded = append(succeeded, db)
	}

	return files, nil
}

func (uc *Backup) abort(db string, err error, succeeded, skipped []string) error {
	failure := &domain.DumpFailure{
		Database:   db,
		ExitStatus: domain.ExitStatus(err),
		Succeeded:  append([]string(nil), succeeded...),
		Skipped:    append([]string(nil), skipped...),
		Err:        err,
	}

	uc.logger.Errorf("[%s] Dump failed: %v", db, err)
	if len(succeeded) > 0 {
		uc.logger.Warnf("Discarding dumps of %v, no archive written", succeeded)
	}
	if len(skipped) > 0 {
		uc.logger.Warnf("Not attempted: %v", skipped)
	}
	return failure
}

func (uc *Backup) describe(run *Run, out domain.ResolvedOutput, databases domain.SelectionSet) (*domain.BackupResult, error) {
	info, err := os.Stat(out.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	checksum, err := fileChecksum(out.ArchivePath)
	if err != nil {
		return nil, err
	}

	return &domain.BackupResult{
		RunID:       run.ID,
		ArchivePath: out.ArchivePath,
		Directory:   out.Directory,
		Databases:   append([]string(nil), databases...),
		Size:        info.Size(),
		Checksum:    checksum,
		StartedAt:   run.Timestamp,
		CompletedAt: uc.now(),
	}, nil
}

func (uc *Backup) uploadToTargets(ctx context.Context, filePath, filename string) []string {
	if len(uc.uploadTargets) == 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		uploaded []string
	)

	for _, target := range uc.uploadTargets {
		wg.Add(1)
		go func(t UploadTarget) {
			defer wg.Done()

			uc.logger.Infof("Uploading %s to %s...", filename, t.Name)
			if err := t.Storage.Upload(ctx, filePath, filename); err != nil {
				uc.logger.Errorf("Failed to upload to %s: %v", t.Name, err)
				return
			}
			uc.logger.Infof("Successfully uploaded to %s", t.Name)

			mu.Lock()
			uploaded = append(uploaded, t.Name)
			mu.Unlock()
		}(target)
	}

	wg.Wait()
	return uploaded
}
