package domain

// ManifestEntry maps one dump file found in an archive to the database it
// restores into.
type ManifestEntry struct {
	SourceFile   string
	DatabaseName string
	Size         int64
}

type ArchiveManifest []ManifestEntry

type Classification int

const (
	ClassNew Classification = iota
	ClassExisting
)

func (c Classification) String() string {
	if c == ClassExisting {
		return "EXISTS"
	}
	return "NEW"
}

type Disposition int

const (
	DispositionPending Disposition = iota
	DispositionNew
	DispositionOverwrite
	DispositionSkip
)

func (d Disposition) String() string {
	switch d {
	case DispositionNew:
		return "new"
	case DispositionOverwrite:
		return "overwrite"
	case DispositionSkip:
		return "skip"
	default:
		return "pending"
	}
}

// Decision is an operator's answer for a database that already exists.
type Decision int

const (
	DecisionOverwrite Decision = iota + 1
	DecisionSkip
	DecisionCancel
)

func (d Decision) String() string {
	switch d {
	case DecisionOverwrite:
		return "overwrite"
	case DecisionSkip:
		return "skip"
	case DecisionCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

func ParseDecision(s string) (Decision, bool) {
	switch s {
	case "overwrite", "o":
		return DecisionOverwrite, true
	case "skip", "s":
		return DecisionSkip, true
	case "cancel", "c":
		return DecisionCancel, true
	default:
		return 0, false
	}
}

type RestoreEntry struct {
	DatabaseName string
	SourceFile   string
	Disposition  Disposition
}

// RestorePlan is consumed once by a restore run. A cancelled plan is
// abandoned as a whole. Workspace is the extraction directory the plan's
// source files live in; the restore run removes it.
type RestorePlan struct {
	Entries   []RestoreEntry
	Cancelled bool
	Workspace string
}

// Executable returns the entries a restore run acts on.
func (p RestorePlan) Executable() []RestoreEntry {
	if p.Cancelled {
		return nil
	}
	entries := make([]RestoreEntry, 0, len(p.Entries))
	for _, e := range p.Entries {
		if e.Disposition == DispositionNew || e.Disposition == DispositionOverwrite {
			entries = append(entries, e)
		}
	}
	return entries
}

type OutcomeStatus int

const (
	OutcomeRestored OutcomeStatus = iota
	OutcomeSkipped
	OutcomeFailed
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeRestored:
		return "restored"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

type DatabaseOutcome struct {
	Database    string
	Disposition Disposition
	Status      OutcomeStatus
	Err         error
}

type RestoreResult struct {
	Cancelled bool
	Outcomes  []DatabaseOutcome
}

func (r *RestoreResult) names(status OutcomeStatus) []string {
	var names []string
	for _, o := range r.Outcomes {
		if o.Status == status {
			names = append(names, o.Database)
		}
	}
	return names
}

func (r *RestoreResult) Restored() []string { return r.names(OutcomeRestored) }
func (r *RestoreResult) Skipped() []string  { return r.names(OutcomeSkipped) }
func (r *RestoreResult) Failed() []string   { return r.names(OutcomeFailed) }
