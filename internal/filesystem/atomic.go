package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureParentDir creates the directory holding target if it is missing.
func EnsureParentDir(target string) error {
	dir := filepath.Dir(target)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: 0755 is appropriate for output directories
		return fmt.Errorf("creating parent directory: %w", err)
	}
	return nil
}

// OpenStream opens target for line-oriented streaming output, creating
// parent directories as needed. With appendMode the existing content is
// kept; otherwise the file is truncated.
func OpenStream(target string, appendMode bool) (*os.File, error) {
	if err := EnsureParentDir(target); err != nil {
		return nil, err
	}
	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(target, flags, 0o644) //nolint:gosec // G302,G304: operator-chosen output path
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", target, err)
	}
	return f, nil
}

// WriteFileAtomic writes data to a temp file next to target, syncs it and
// renames it over target, so readers see either the old or the new content
// and an interrupted write never leaves a truncated file behind.
func WriteFileAtomic(target string, data []byte, perm os.FileMode) error {
	if err := EnsureParentDir(target); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		cleanup()
		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		cleanup()
		return fmt.Errorf("renaming temp to target: %w", err)
	}
	return nil
}
