// Package git provides gitignore matching and repository status for the workspace.
package git

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// GitignoreReadError is returned when .gitignore exists but cannot be read.
type GitignoreReadError struct {
	Path  string
	Cause error
}

func (e *GitignoreReadError) Error() string {
	return fmt.Sprintf("failed to read .gitignore at %s: %v", e.Path, e.Cause)
}
func (e *GitignoreReadError) Unwrap() error { return e.Cause }

// ignoredDirs are skipped by every walk regardless of .gitignore.
var ignoredDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"dist":         {},
	"build":        {},
	"out":          {},
	"target":       {},
	"vendor":       {},
	".venv":        {},
	"__pycache__":  {},
	".idea":        {},
	".vscode":      {},
}

// IsIgnoredDir reports whether a directory name is always skipped.
func IsIgnoredDir(name string) bool {
	_, ok := ignoredDirs[name]
	return ok
}

// Matcher decides whether a workspace-relative path should be skipped.
type Matcher interface {
	ShouldIgnore(rel string, isDir bool) bool
}

type fileReader interface {
	ReadFile(path string) ([]byte, error)
}

// IgnoreMatcher matches the root .gitignore plus the fixed directory set.
type IgnoreMatcher struct {
	matcher gitignore.Matcher
}

// NewIgnoreMatcher loads .gitignore from root. A missing file yields a matcher
// that only applies the fixed directory set.
func NewIgnoreMatcher(root string, fs fileReader) (*IgnoreMatcher, error) {
	if root == "" {
		panic("root is required")
	}
	if fs == nil {
		panic("fs is required")
	}
	p := filepath.Join(root, ".gitignore")

	data, err := fs.ReadFile(p)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return &IgnoreMatcher{}, nil
		}
		return nil, &GitignoreReadError{Path: p, Cause: err}
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n") {
		line = strings.TrimRight(line, " \t")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return &IgnoreMatcher{matcher: gitignore.NewMatcher(patterns)}, nil
}

// ShouldIgnore reports whether rel (slash-separated, relative to root) is ignored.
func (m *IgnoreMatcher) ShouldIgnore(rel string, isDir bool) bool {
	segments := splitPath(rel)
	if len(segments) == 0 {
		return false
	}
	for i, s := range segments {
		if (i < len(segments)-1 || isDir) && IsIgnoredDir(s) {
			return true
		}
	}
	if m.matcher == nil {
		return false
	}
	return m.matcher.Match(segments, isDir)
}

// splitPath splits a path into segments, dropping empty and "." parts.
func splitPath(p string) []string {
	var segments []string
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part != "" && part != "." {
			segments = append(segments, part)
		}
	}
	return segments
}

// NoOpMatcher never ignores anything.
type NoOpMatcher struct{}

// ShouldIgnore always returns false.
func (NoOpMatcher) ShouldIgnore(rel string, isDir bool) bool {
	return false
}
