// Package fsutil holds filesystem helpers shared by the file-backed adapters.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// Op names the step of WriteAtomic that failed.
type Op string

const (
	OpMkdir  Op = "mkdir"
	OpCreate Op = "create"
	OpWrite  Op = "write"
	OpSync   Op = "fsync"
	OpClose  Op = "close"
	OpChmod  Op = "chmod"
	OpRename Op = "rename"
)

// WriteError reports which step of an atomic write failed.
type WriteError struct {
	Op  Op
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// WriteAtomic writes data to path through a temp file in the same directory.
// The temp file is fsynced and renamed over the destination, so readers see
// either the old content or the new one, never a partial file.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &WriteError{Op: OpMkdir, Err: err}
	}

	// same directory, same filesystem: rename stays atomic
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return &WriteError{Op: OpCreate, Err: err}
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return &WriteError{Op: OpWrite, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return &WriteError{Op: OpSync, Err: err}
	}
	// Windows refuses to rename an open file.
	if err := tmp.Close(); err != nil {
		return &WriteError{Op: OpClose, Err: err}
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return &WriteError{Op: OpChmod, Err: err}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		// Older Windows builds fail when the destination exists.
		if _, statErr := os.Stat(path); statErr == nil {
			if rmErr := os.Remove(path); rmErr != nil {
				return &WriteError{Op: OpRename, Err: err}
			}
			if err := os.Rename(tmpPath, path); err != nil {
				return &WriteError{Op: OpRename, Err: err}
			}
			return nil
		}
		return &WriteError{Op: OpRename, Err: err}
	}
	return nil
}
