package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/semmidev/mdump/internal/domain"
)

type AnalyzedEntry struct {
	domain.ManifestEntry
	Class domain.Classification
}

// Analysis is an extracted archive classified against the live server. It
// owns the extraction directory until a RestorePlan takes it over; Close
// releases it on paths that never reach a restore.
type Analysis struct {
	ArchivePath string
	Manifest    domain.ArchiveManifest
	Entries     []AnalyzedEntry
	Metadata    *domain.ArchiveMetadata
	run         *Run
}

func (a *Analysis) Workspace() string {
	return a.run.Dir()
}

func (a *Analysis) Close() error {
	return a.run.Close()
}

func (a *Analysis) Existing() []string {
	var names []string
	for _, e := range a.Entries {
		if e.Class == domain.ClassExisting {
			names = append(names, e.DatabaseName)
		}
	}
	return names
}

type Analyzer struct {
	archiver domain.Archiver
	logger   Logger
	tempRoot string
	now      func() time.Time
}

func NewAnalyzer(archiver domain.Archiver, logger Logger, tempRoot string) *Analyzer {
	return &Analyzer{
		archiver: archiver,
		logger:   logger,
		tempRoot: tempRoot,
		now:      time.Now,
	}
}

// Analyze extracts archivePath into a fresh temporary directory and maps
// each dump file to a database name. Entries are classified against
// existing, the full schema list of the target server.
func (a *Analyzer) Analyze(ctx context.Context, archivePath string, existing []string) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, &domain.CorruptArchiveError{Path: archivePath, Reason: "archive not accessible", Err: err}
	}
	if info.IsDir() {
		return nil, &domain.CorruptArchiveError{Path: archivePath, Reason: "path is a directory"}
	}

	run := NewRun(a.now(), a.tempRoot)
	dir, err := run.TempDir("mdump-restore-")
	if err != nil {
		return nil, err
	}

	a.logger.Infof("Extracting %s", archivePath)
	meta, err := a.archiver.Unpack(archivePath, dir)
	if err != nil {
		run.Close()
		return nil, &domain.CorruptArchiveError{Path: archivePath, Reason: "extraction failed", Err: err}
	}

	manifest, err := a.buildManifest(dir, meta)
	if err != nil {
		run.Close()
		return nil, &domain.CorruptArchiveError{Path: archivePath, Reason: "cannot read extracted files", Err: err}
	}
	if len(manifest) == 0 {
		run.Close()
		return nil, &domain.CorruptArchiveError{Path: archivePath, Reason: "no dump files found"}
	}

	analysis := &Analysis{
		ArchivePath: archivePath,
		Manifest:    manifest,
		Metadata:    meta,
		run:         run,
	}
	onServer := make(map[string]bool, len(existing))
	for _, name := range existing {
		onServer[name] = true
	}
	for _, entry := range manifest {
		class := domain.ClassNew
		if onServer[entry.DatabaseName] {
			class = domain.ClassExisting
		}
		if domain.IsSystemSchema(entry.DatabaseName) {
			a.logger.Warnf("Archive entry %s targets the system schema %s", filepath.Base(entry.SourceFile), entry.DatabaseName)
		}
		analysis.Entries = append(analysis.Entries, AnalyzedEntry{ManifestEntry: entry, Class: class})
	}

	a.logger.Infof("Found %d database dump(s), %d already on the server", len(manifest), len(analysis.Existing()))
	return analysis, nil
}

// buildManifest lists the top-level dumps. Archives carrying metadata keep
// the recorded order and names; any other dump falls back to the file name.
func (a *Analyzer) buildManifest(dir string, meta *domain.ArchiveMetadata) (domain.ArchiveManifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	sizes := make(map[string]int64)
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), DumpExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		sizes[entry.Name()] = info.Size()
		files = append(files, entry.Name())
	}

	var ordered []string
	if meta != nil {
		for _, db := range meta.Databases {
			if _, ok := sizes[db.File]; ok {
				ordered = append(ordered, db.File)
			} else {
				a.logger.Warnf("Metadata lists %s but the archive does not contain it", db.File)
			}
		}
	}
	for _, name := range files {
		if _, recorded := meta.Lookup(name); !recorded {
			ordered = append(ordered, name)
		}
	}

	seen := make(map[string]string)
	manifest := make(domain.ArchiveManifest, 0, len(ordered))
	for _, name := range ordered {
		db, ok := meta.Lookup(name)
		if ok && strings.TrimSpace(db) == "" {
			a.logger.Warnf("Metadata records no database name for %s, using the file name", name)
			ok = false
		}
		if !ok {
			db = InferDatabaseName(name)
		}
		if prev, dup := seen[db]; dup {
			a.logger.Warnf("Ignoring %s: database %s is already restored from %s", name, db, prev)
			continue
		}
		seen[db] = name
		manifest = append(manifest, domain.ManifestEntry{
			SourceFile:   filepath.Join(dir, name),
			DatabaseName: db,
			Size:         sizes[name],
		})
	}

	return manifest, nil
}
