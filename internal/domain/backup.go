package domain

import (
	"context"
	"time"
)

type OutputKind int

const (
	// OutputDefault derives a timestamped directory and file name.
	OutputDefault OutputKind = iota
	// OutputDirectory places a timestamped archive inside Path.
	OutputDirectory
	// OutputExactFile writes the archive to Path as given.
	OutputExactFile
)

type OutputSpec struct {
	Kind OutputKind
	Path string
}

// ResolvedOutput is the concrete location of one backup run's archive.
type ResolvedOutput struct {
	Directory   string
	ArchivePath string

	// CreatedDirectory is set once the directory was created by this run.
	CreatedDirectory bool
}

type BackupPlan struct {
	Databases SelectionSet
	Output    OutputSpec
}

type BackupResult struct {
	RunID       string
	ArchivePath string
	Directory   string
	Databases   []string
	Size        int64
	Checksum    string
	StartedAt   time.Time
	CompletedAt time.Time
	Uploaded    []string
}

type BackupJob struct {
	Name     string
	Schedule string
	BackupUC BackupExecutor
}

type BackupExecutor interface {
	Execute(ctx context.Context) error
}
