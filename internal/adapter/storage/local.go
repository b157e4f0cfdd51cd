package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// runDirPrefix names the per-run directories default backups are written to.
const runDirPrefix = "mysql_backup_"

// LocalStorage manages archives below basePath. Names are relative to
// basePath and may include one level of run directory.
type LocalStorage struct {
	basePath string
}

func NewLocal(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (l *LocalStorage) Upload(ctx context.Context, localPath string, remoteName string) error {
	destPath := filepath.Join(l.basePath, remoteName)

	source, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer source.Close()

	dest, err := os.OpenFile(destPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create dest: %w", err)
	}
	defer dest.Close()

	if _, err := dest.ReadFrom(source); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("failed to copy: %w", err)
	}

	return nil
}

type localFile struct {
	name    string
	modTime time.Time
}

// files lists the regular files of basePath and of its run directories.
func (l *LocalStorage) files() ([]localFile, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var files []localFile
	for _, entry := range entries {
		if !entry.IsDir() {
			info, err := entry.Info()
			if err != nil {
				return nil, fmt.Errorf("failed to get file info for %s: %w", entry.Name(), err)
			}
			files = append(files, localFile{name: entry.Name(), modTime: info.ModTime()})
			continue
		}

		if !strings.HasPrefix(entry.Name(), runDirPrefix) {
			continue
		}

		nested, err := os.ReadDir(filepath.Join(l.basePath, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", entry.Name(), err)
		}
		for _, n := range nested {
			if n.IsDir() {
				continue
			}
			info, err := n.Info()
			if err != nil {
				return nil, fmt.Errorf("failed to get file info for %s: %w", n.Name(), err)
			}
			files = append(files, localFile{name: entry.Name() + "/" + n.Name(), modTime: info.ModTime()})
		}
	}

	return files, nil
}

func (l *LocalStorage) List(ctx context.Context) ([]string, error) {
	files, err := l.files()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.name)
	}
	return names, nil
}

// Delete removes remoteName and its run directory once that is empty.
func (l *LocalStorage) Delete(ctx context.Context, remoteName string) error {
	filePath := filepath.Join(l.basePath, filepath.FromSlash(remoteName))
	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	dir := filepath.Dir(filePath)
	if dir == filepath.Clean(l.basePath) {
		return nil
	}

	remaining, err := os.ReadDir(dir)
	if err != nil || len(remaining) > 0 {
		return nil
	}
	if err := os.Remove(dir); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}
	return nil
}

func (l *LocalStorage) GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error) {
	files, err := l.files()
	if err != nil {
		return nil, err
	}

	var oldFiles []string
	for _, f := range files {
		if f.modTime.Before(cutoffTime) {
			oldFiles = append(oldFiles, f.name)
		}
	}

	return oldFiles, nil
}
