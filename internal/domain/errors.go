package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ExitError is returned by the dump and restore tools when the child process
// fails. Status is -1 when the process never ran.
type ExitError struct {
	Tool   string
	Status int
	Output string
	Err    error
}

func (e *ExitError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("%s exited with status %d: %v", e.Tool, e.Status, e.Err)
	}
	return fmt.Sprintf("%s exited with status %d: %v, output: %s", e.Tool, e.Status, e.Err, out)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitStatus extracts the child exit status from err, or -1.
func ExitStatus(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Status
	}
	return -1
}

type InvalidSelectionError struct {
	Token  string
	Reason string
}

func (e *InvalidSelectionError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("invalid selection: %s", e.Reason)
	}
	return fmt.Sprintf("invalid selection %q: %s", e.Token, e.Reason)
}

type ConnectionError struct {
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// DumpFailure aborts a backup run. Succeeded lists the databases dumped
// before the failure and Skipped those never attempted.
type DumpFailure struct {
	Database   string
	ExitStatus int
	Succeeded  []string
	Skipped    []string
	Err        error
}

func (e *DumpFailure) Error() string {
	return fmt.Sprintf("dump of %s failed (exit status %d): %v", e.Database, e.ExitStatus, e.Err)
}

func (e *DumpFailure) Unwrap() error { return e.Err }

type RestoreStage string

const (
	StageDrop    RestoreStage = "drop"
	StageCreate  RestoreStage = "create"
	StageRestore RestoreStage = "restore"
)

type RestoreFailure struct {
	Database   string
	Stage      RestoreStage
	ExitStatus int
	Err        error
}

func (e *RestoreFailure) Error() string {
	return fmt.Sprintf("restore of %s failed at %s (exit status %d): %v", e.Database, e.Stage, e.ExitStatus, e.Err)
}

func (e *RestoreFailure) Unwrap() error { return e.Err }

// RestoreErrors aggregates the per-database failures of one restore run.
type RestoreErrors struct {
	Failures []*RestoreFailure
}

func (e *RestoreErrors) Error() string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.Database
	}
	return fmt.Sprintf("%d database(s) failed to restore: %s", len(e.Failures), strings.Join(names, ", "))
}

func (e *RestoreErrors) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

type CorruptArchiveError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CorruptArchiveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt archive %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt archive %s: %s", e.Path, e.Reason)
}

func (e *CorruptArchiveError) Unwrap() error { return e.Err }

type OutputCollisionError struct {
	Path string
}

func (e *OutputCollisionError) Error() string {
	return fmt.Sprintf("archive %s already exists", e.Path)
}
