package usecase

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/semmidev/mdump/internal/domain"
)

const (
	ArchiveExt    = ".tar.gz"
	DumpExt       = ".sql"
	archivePrefix = "mysql_backup_"
)

// ParseOutputSpec classifies a user supplied output hint. Hints that are
// neither a directory nor an archive file name are treated as directories.
func ParseOutputSpec(hint string) domain.OutputSpec {
	switch {
	case hint == "":
		return domain.OutputSpec{Kind: domain.OutputDefault}
	case strings.HasSuffix(hint, "/") || strings.HasSuffix(hint, string(os.PathSeparator)):
		return domain.OutputSpec{Kind: domain.OutputDirectory, Path: hint}
	case strings.HasSuffix(hint, ArchiveExt):
		return domain.OutputSpec{Kind: domain.OutputExactFile, Path: hint}
	default:
		return domain.OutputSpec{Kind: domain.OutputDirectory, Path: hint}
	}
}

// ResolveSpec fixes the directory and archive path for spec using one
// timestamp taken by the caller.
func ResolveSpec(spec domain.OutputSpec, now time.Time) domain.ResolvedOutput {
	name := archivePrefix + now.Format(TimestampLayout)

	switch spec.Kind {
	case domain.OutputExactFile:
		return domain.ResolvedOutput{
			Directory:   filepath.Dir(spec.Path),
			ArchivePath: spec.Path,
		}
	case domain.OutputDirectory:
		dir := filepath.Clean(spec.Path)
		return domain.ResolvedOutput{
			Directory:   dir,
			ArchivePath: filepath.Join(dir, name+ArchiveExt),
		}
	default:
		dir := filepath.Join(".", name)
		return domain.ResolvedOutput{
			Directory:   dir,
			ArchivePath: filepath.Join(dir, name+ArchiveExt),
		}
	}
}

func ResolveOutput(hint string, now time.Time) domain.ResolvedOutput {
	return ResolveSpec(ParseOutputSpec(hint), now)
}

// PrepareOutput creates the output directory if needed and refuses to
// continue when the archive already exists.
func PrepareOutput(out *domain.ResolvedOutput) error {
	if _, err := os.Stat(out.ArchivePath); err == nil {
		return &domain.OutputCollisionError{Path: out.ArchivePath}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to check archive path: %w", err)
	}

	info, err := os.Stat(out.Directory)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("output directory %s is not a directory", out.Directory)
	case err == nil:
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("failed to check output directory: %w", err)
	}

	if err := os.MkdirAll(out.Directory, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	out.CreatedDirectory = true
	return nil
}

// discardOutput removes whatever a failed run left at out.
func discardOutput(out domain.ResolvedOutput) {
	_ = os.Remove(out.ArchivePath)
	if out.CreatedDirectory {
		// only succeeds when the directory is still empty
		_ = os.Remove(out.Directory)
	}
}
