// Package path resolves tool path arguments against the workspace root.
package path

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolver maps workspace-relative paths to absolute ones and enforces the root boundary.
// The zero root is allowed and makes every resolution fail with ErrWorkspaceRootNotSet.
type Resolver struct {
	root string
}

// NewResolver creates a resolver for root. root should already be canonical;
// symlinks in it are resolved when it exists.
func NewResolver(root string) *Resolver {
	if root != "" {
		root = filepath.Clean(root)
		if resolved, err := filepath.EvalSymlinks(root); err == nil {
			root = resolved
		}
	}
	return &Resolver{root: root}
}

// Root returns the workspace root, or "" when none is set.
func (r *Resolver) Root() string {
	return r.root
}

// CanonicaliseRoot makes root absolute, resolves symlinks and checks it is a directory.
func CanonicaliseRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", &WorkspaceRootError{Root: root, Cause: err}
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", &WorkspaceRootError{Root: abs, Cause: err}
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", &WorkspaceRootError{Root: resolved, Cause: err}
	}
	if !info.IsDir() {
		return "", &WorkspaceRootError{Root: resolved, Cause: fmt.Errorf("%w: %s", ErrNotADirectory, resolved)}
	}
	return resolved, nil
}

// Lexical resolves p against the root without touching the filesystem and
// returns the absolute and root-relative forms.
func (r *Resolver) Lexical(p string) (abs, rel string, err error) {
	if r.root == "" {
		return "", "", ErrWorkspaceRootNotSet
	}

	if filepath.IsAbs(p) {
		abs = filepath.Clean(p)
	} else {
		abs = filepath.Join(r.root, filepath.FromSlash(p))
	}

	if !r.contains(abs) {
		return "", "", fmt.Errorf("%w: %s", ErrOutsideWorkspace, p)
	}
	return abs, r.relOf(abs), nil
}

// Abs resolves p against the root, follows symlinks in the part of the path
// that exists, and rejects anything whose real location escapes the root.
func (r *Resolver) Abs(p string) (string, error) {
	abs, _, err := r.Lexical(p)
	if err != nil {
		return "", err
	}

	resolved, err := followExisting(abs)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	if !r.contains(resolved) {
		return "", fmt.Errorf("%w: %s resolves to %s", ErrOutsideWorkspace, p, resolved)
	}
	return resolved, nil
}

// Entry is like Resolve but leaves a symlink in the final element unfollowed,
// so the result names the link itself rather than its target.
func (r *Resolver) Entry(p string) (abs, rel string, err error) {
	lexical, _, err := r.Lexical(p)
	if err != nil {
		return "", "", err
	}
	if lexical == r.root {
		return r.root, "", nil
	}

	dir, err := followExisting(filepath.Dir(lexical))
	if err != nil {
		return "", "", fmt.Errorf("resolve %s: %w", p, err)
	}
	abs = filepath.Join(dir, filepath.Base(lexical))
	if !r.contains(abs) || abs == r.root {
		return "", "", fmt.Errorf("%w: %s resolves to %s", ErrOutsideWorkspace, p, abs)
	}
	return abs, r.relOf(abs), nil
}

func (r *Resolver) contains(abs string) bool {
	return abs == r.root || strings.HasPrefix(abs, r.root+string(filepath.Separator))
}

func (r *Resolver) relOf(abs string) string {
	rel, err := filepath.Rel(r.root, abs)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

// followExisting evaluates symlinks on the longest existing ancestor of abs
// and joins the missing tail back on. A dangling link is an error.
func followExisting(abs string) (string, error) {
	existing := abs
	var tail []string
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		tail = append(tail, filepath.Base(existing))
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}
	for i := len(tail) - 1; i >= 0; i-- {
		resolved = filepath.Join(resolved, tail[i])
	}
	return resolved, nil
}

// Rel returns p relative to the root in slash form. The root itself is "".
func (r *Resolver) Rel(p string) (string, error) {
	abs, err := r.Abs(p)
	if err != nil {
		return "", err
	}
	return r.relOf(abs), nil
}

// Resolve returns both the absolute and the root-relative form of p.
func (r *Resolver) Resolve(p string) (abs, rel string, err error) {
	if abs, err = r.Abs(p); err != nil {
		return "", "", err
	}
	return abs, r.relOf(abs), nil
}
