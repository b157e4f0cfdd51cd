package usecase

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// Run carries the state of one backup or restore invocation: its identity,
// the timestamp every file of the run shares, and the temporary directory it
// owns. Close releases the directory and is safe to call more than once.
type Run struct {
	ID        string
	Timestamp time.Time

	root string
	dir  string
}

func NewRun(now time.Time, root string) *Run {
	return &Run{
		ID:        uuid.New().String(),
		Timestamp: now,
		root:      root,
	}
}

func (r *Run) Stamp() string {
	return r.Timestamp.Format(TimestampLayout)
}

// TempDir creates the run's temporary directory on first use.
func (r *Run) TempDir(prefix string) (string, error) {
	if r.dir != "" {
		return r.dir, nil
	}

	dir, err := os.MkdirTemp(r.root, prefix+r.Stamp()+"_")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary directory: %w", err)
	}
	r.dir = dir
	return dir, nil
}

func (r *Run) Dir() string {
	return r.dir
}

func (r *Run) Close() error {
	if r.dir == "" {
		return nil
	}
	dir := r.dir
	r.dir = ""
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", dir, err)
	}
	return nil
}
