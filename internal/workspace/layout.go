package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Layout is the set of directories every run writes beneath.
type Layout struct {
	MetadataDir string
	AudioDir    string
	WorkDir     string
}

// Ensure creates the directories. It runs once at startup, never per run.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.MetadataDir, l.AudioDir, l.WorkDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// RemoveAll deletes each path, files or directories alike. Paths that do not
// exist are skipped. Every path is attempted; the returned slice holds one
// error per path that could not be removed.
func RemoveAll(paths []string) []error {
	var errs []error
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.RemoveAll(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", path, err))
		}
	}
	return errs
}
