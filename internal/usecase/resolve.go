package usecase

import (
	"fmt"

	"github.com/semmidev/mdump/internal/domain"
)

// Prompter obtains a decision for a database that already exists on the
// target server.
type Prompter interface {
	ChooseDisposition(database string) (domain.Decision, error)
	// ConfirmOverwrite is asked after an overwrite decision, which drops the
	// existing database.
	ConfirmOverwrite(database string) (bool, error)
}

// ResolveConflicts builds the restore plan for analysis. Entries are
// resolved in manifest order; new databases are never prompted. A cancel
// decision abandons the whole plan.
func ResolveConflicts(analysis *Analysis, prompter Prompter) (domain.RestorePlan, error) {
	plan := domain.RestorePlan{
		Entries:   make([]domain.RestoreEntry, len(analysis.Entries)),
		Workspace: analysis.Workspace(),
	}

	for i, e := range analysis.Entries {
		plan.Entries[i] = domain.RestoreEntry{
			DatabaseName: e.DatabaseName,
			SourceFile:   e.SourceFile,
			Disposition:  domain.DispositionPending,
		}
		if e.Class == domain.ClassNew {
			plan.Entries[i].Disposition = domain.DispositionNew
		}
	}

	for i := range plan.Entries {
		entry := &plan.Entries[i]
		if entry.Disposition != domain.DispositionPending {
			continue
		}

		disposition, err := resolveEntry(entry.DatabaseName, prompter)
		if err != nil {
			plan.Cancelled = true
			return plan, err
		}
		if disposition == domain.DispositionPending {
			plan.Cancelled = true
			return plan, nil
		}
		entry.Disposition = disposition
	}

	return plan, nil
}

// resolveEntry returns DispositionPending when the operator cancels.
func resolveEntry(database string, prompter Prompter) (domain.Disposition, error) {
	for {
		decision, err := prompter.ChooseDisposition(database)
		if err != nil {
			return domain.DispositionPending, fmt.Errorf("disposition for %s: %w", database, err)
		}

		switch decision {
		case domain.DecisionSkip:
			return domain.DispositionSkip, nil
		case domain.DecisionCancel:
			return domain.DispositionPending, nil
		case domain.DecisionOverwrite:
			ok, err := prompter.ConfirmOverwrite(database)
			if err != nil {
				return domain.DispositionPending, fmt.Errorf("confirm overwrite of %s: %w", database, err)
			}
			if ok {
				return domain.DispositionOverwrite, nil
			}
		default:
			return domain.DispositionPending, fmt.Errorf("disposition for %s: unknown decision %d", database, decision)
		}
	}
}

// FixedPolicy answers every conflict with the same decision, for runs
// without a terminal.
type FixedPolicy struct {
	decision  domain.Decision
	assumeYes bool
}

func NewFixedPolicy(decision domain.Decision, assumeYes bool) (*FixedPolicy, error) {
	if decision == domain.DecisionOverwrite && !assumeYes {
		return nil, fmt.Errorf("overwriting existing databases non-interactively requires confirmation (--yes)")
	}
	return &FixedPolicy{decision: decision, assumeYes: assumeYes}, nil
}

func (p *FixedPolicy) ChooseDisposition(string) (domain.Decision, error) {
	return p.decision, nil
}

func (p *FixedPolicy) ConfirmOverwrite(string) (bool, error) {
	return p.assumeYes, nil
}
