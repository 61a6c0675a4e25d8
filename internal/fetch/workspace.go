package fetch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// Workspace is the directory downloads and transient files are written to.
type Workspace struct {
	Dir string

	// available reports free bytes for Dir; overridden in tests.
	available func(dir string) (uint64, error)
}

// NewWorkspace returns a workspace rooted at dir, creating it if needed.
// An empty dir means the current directory.
func NewWorkspace(dir string) (*Workspace, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create working directory %s: %w", abs, err)
	}
	return &Workspace{Dir: abs, available: statfsAvailable}, nil
}

// Path returns the absolute path of name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, filepath.Base(name))
}

// Available returns the free bytes on the workspace filesystem.
func (w *Workspace) Available() (uint64, error) {
	avail := w.available
	if avail == nil {
		avail = statfsAvailable
	}
	return avail(w.Dir)
}

// CheckSpace fails with ErrInsufficientSpace when need bytes do not fit.
func (w *Workspace) CheckSpace(need int64) error {
	if need <= 0 {
		return nil
	}
	free, err := w.Available()
	if err != nil {
		return err
	}
	if uint64(need) > free {
		return fmt.Errorf("%w: need %d MB, have %d MB available in %s",
			ErrInsufficientSpace, need>>20, free>>20, w.Dir)
	}
	return nil
}

// Remove deletes the given files. Missing files are not an error; other
// failures are joined after every path has been attempted.
func (w *Workspace) Remove(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

func statfsAvailable(dir string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return 0, fmt.Errorf("failed to get filesystem stats for %s: %w", dir, err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
