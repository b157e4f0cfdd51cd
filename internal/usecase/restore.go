package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/semmidev/mdump/internal/domain"
)

type Restore struct {
	server   domain.Server
	loader   domain.Loader
	logger   Logger
	reporter Reporter
}

func NewRestore(server domain.Server, loader domain.Loader, logger Logger, reporter Reporter) *Restore {
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Restore{
		server:   server,
		loader:   loader,
		logger:   logger,
		reporter: reporter,
	}
}

// Execute applies plan entry by entry. A failed database does not stop the
// run; failures are collected into a *domain.RestoreErrors. An interrupt
// is honoured between databases only, and the entries it leaves unrestored
// make Execute return the context error alongside any failures. The plan's
// workspace is removed on every path.
func (uc *Restore) Execute(ctx context.Context, plan domain.RestorePlan) (*domain.RestoreResult, error) {
	defer uc.removeWorkspace(plan.Workspace)

	result := &domain.RestoreResult{Cancelled: plan.Cancelled}
	if plan.Cancelled {
		uc.logger.Infof("Restore cancelled, no database was modified")
		return result, nil
	}

	actions := make(map[string]bool)
	for _, entry := range plan.Executable() {
		actions[entry.DatabaseName] = true
	}

	// a database that has started restoring is finished even if interrupted
	work := context.WithoutCancel(ctx)

	var failures []*domain.RestoreFailure
	var interrupted int
	for _, entry := range plan.Entries {
		outcome := domain.DatabaseOutcome{Database: entry.DatabaseName, Disposition: entry.Disposition}

		switch {
		case !actions[entry.DatabaseName]:
			if entry.Disposition == domain.DispositionPending {
				uc.logger.Warnf("[%s] Skipped: no disposition was chosen", entry.DatabaseName)
			} else {
				uc.logger.Infof("[%s] Skipped", entry.DatabaseName)
			}
			outcome.Status = domain.OutcomeSkipped
		case ctx.Err() != nil:
			uc.logger.Warnf("[%s] Not restored: run interrupted", entry.DatabaseName)
			outcome.Status = domain.OutcomeSkipped
			outcome.Err = ctx.Err()
			interrupted++
		default:
			uc.reporter.Start(entry.DatabaseName, "restoring")
			failure := uc.restoreEntry(work, entry)
			if failure != nil {
				uc.reporter.Finish(entry.DatabaseName, failure)
				uc.logger.Errorf("[%s] %v", entry.DatabaseName, failure)
				outcome.Status = domain.OutcomeFailed
				outcome.Err = failure
				failures = append(failures, failure)
			} else {
				uc.reporter.Finish(entry.DatabaseName, nil)
				uc.logger.Infof("[%s] Restored", entry.DatabaseName)
				outcome.Status = domain.OutcomeRestored
			}
		}

		result.Outcomes = append(result.Outcomes, outcome)
	}

	uc.logger.Infof("Restore finished: %d/%d database(s) restored",
		len(result.Restored()), len(plan.Entries))

	var errs []error
	if len(failures) > 0 {
		errs = append(errs, &domain.RestoreErrors{Failures: failures})
	}
	if interrupted > 0 {
		errs = append(errs, fmt.Errorf("restore interrupted, %d database(s) not restored: %w", interrupted, ctx.Err()))
	}
	return result, errors.Join(errs...)
}

// restoreEntry prepares the target database and loads the dump. A drop is
// not rolled back when the following create or load fails.
func (uc *Restore) restoreEntry(ctx context.Context, entry domain.RestoreEntry) *domain.RestoreFailure {
	db := entry.DatabaseName
	fail := func(stage domain.RestoreStage, err error) *domain.RestoreFailure {
		return &domain.RestoreFailure{Database: db, Stage: stage, ExitStatus: domain.ExitStatus(err), Err: err}
	}

	switch entry.Disposition {
	case domain.DispositionOverwrite:
		uc.logger.Warnf("[%s] Dropping existing database", db)
		if err := uc.server.DropDatabase(ctx, db); err != nil {
			return fail(domain.StageDrop, err)
		}
		if err := uc.server.CreateDatabase(ctx, db, false); err != nil {
			return fail(domain.StageCreate, err)
		}
	case domain.DispositionNew:
		if err := uc.server.CreateDatabase(ctx, db, true); err != nil {
			return fail(domain.StageCreate, err)
		}
	}

	uc.logger.Infof("[%s] Loading %s", db, entry.SourceFile)
	if err := uc.loader.Load(ctx, db, entry.SourceFile); err != nil {
		return fail(domain.StageRestore, err)
	}
	return nil
}

func (uc *Restore) removeWorkspace(dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		uc.logger.Warnf("Failed to remove extraction directory %s: %v", dir, err)
	}
}
