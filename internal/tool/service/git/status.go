package git

import (
	"errors"
	"fmt"
	"sort"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrNotRepository is returned when the workspace is not inside a git repository.
var ErrNotRepository = errors.New("not a git repository")

// Status is a porcelain-style snapshot of a worktree.
type Status struct {
	Branch string            `json:"branch,omitempty"`
	Head   string            `json:"head,omitempty"`
	Files  map[string]string `json:"files"`
}

// Clean reports whether no file has pending changes.
func (s *Status) Clean() bool {
	return len(s.Files) == 0
}

// Paths returns the changed paths in lexical order.
func (s *Status) Paths() []string {
	paths := make([]string, 0, len(s.Files))
	for p := range s.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ReadStatus opens the repository containing root and reports its worktree status.
// Each file maps to its two-letter staging/worktree code, e.g. "??" or " M".
func ReadStatus(root string) (*Status, error) {
	repo, err := gogit.PlainOpenWithOptions(root, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepository, root)
		}
		return nil, fmt.Errorf("open repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	st, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("worktree status: %w", err)
	}

	out := &Status{Files: make(map[string]string, len(st))}
	for p, fs := range st {
		if fs.Staging == gogit.Unmodified && fs.Worktree == gogit.Unmodified {
			continue
		}
		out.Files[p] = string([]byte{byte(fs.Staging), byte(fs.Worktree)})
	}

	head, err := repo.Head()
	switch {
	case err == nil:
		out.Head = head.Hash().String()
		if head.Name().IsBranch() {
			out.Branch = head.Name().Short()
		}
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		// Fresh repository without commits.
	default:
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}
	return out, nil
}
