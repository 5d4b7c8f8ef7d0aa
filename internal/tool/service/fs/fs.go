// Package fs holds the host filesystem primitives used by the tools.
package fs

import (
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
)

// OSFileSystem implements filesystem operations on the local disk.
type OSFileSystem struct {
	maxFileSize int64
}

// NewOSFileSystem creates an OSFileSystem. A maxFileSize of zero disables the read limit.
func NewOSFileSystem(maxFileSize int64) *OSFileSystem {
	return &OSFileSystem{maxFileSize: maxFileSize}
}

// Stat returns file info for a path (follows symlinks).
func (f *OSFileSystem) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// ReadFile reads a whole regular file, refusing directories and files over the size limit.
func (f *OSFileSystem) ReadFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, path)
	}
	if f.maxFileSize > 0 && info.Size() > f.maxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrFileTooLarge, path, info.Size(), f.maxFileSize)
	}
	return io.ReadAll(file)
}

// WriteFileAtomic writes content through a temp file in the target directory
// followed by a rename, so readers never observe a partial file.
func (f *OSFileSystem) WriteFileAtomic(path string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return &OpError{Op: "create temp", Path: dir, Cause: err}
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if tmp != nil {
			_ = tmp.Close()
		}
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return &OpError{Op: "write temp", Path: tmpPath, Cause: err}
	}
	if err := tmp.Sync(); err != nil {
		return &OpError{Op: "sync temp", Path: tmpPath, Cause: err}
	}
	err = tmp.Close()
	tmp = nil
	if err != nil {
		return &OpError{Op: "close temp", Path: tmpPath, Cause: err}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return &OpError{Op: "rename", Path: path, Cause: err}
	}
	committed = true

	if err := os.Chmod(path, perm); err != nil {
		return &OpError{Op: "chmod", Path: path, Cause: err}
	}
	return nil
}

// EnsureDirs creates a directory and its parents.
func (f *OSFileSystem) EnsureDirs(path string) error {
	return os.MkdirAll(path, 0o755)
}

// RemoveAll deletes path recursively. A missing path is reported as ErrNotFound.
func (f *OSFileSystem) RemoveAll(path string) error {
	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return err
	}
	return os.RemoveAll(path)
}

// Walk walks the tree rooted at root in lexical order.
func (f *OSFileSystem) Walk(root string, fn iofs.WalkDirFunc) error {
	return filepath.WalkDir(root, fn)
}
