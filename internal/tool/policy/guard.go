package policy

import (
	"fmt"

	"github.com/Cyclone1070/aicoder/internal/config"
)

type resolver interface {
	Lexical(p string) (abs, rel string, err error)
	Resolve(p string) (abs, rel string, err error)
	Entry(p string) (abs, rel string, err error)
	Root() string
}

// Guard resolves a tool path argument and applies the path policy to it.
type Guard struct {
	resolver resolver
	checker  *Checker
}

// NewGuard creates a Guard over the workspace resolver and config source.
func NewGuard(r resolver, source config.Source) *Guard {
	if r == nil {
		panic("resolver is required")
	}
	return &Guard{resolver: r, checker: NewChecker(source)}
}

// Root returns the workspace root.
func (g *Guard) Root() string {
	return g.resolver.Root()
}

// Resolve normalizes p, rejects paths outside the workspace and paths the
// policy blocks, and returns the absolute and workspace-relative forms.
// Symlinks are followed, so the policy applies to both the path as written
// and the path it really names.
func (g *Guard) Resolve(p string) (abs, rel string, err error) {
	return g.resolve(p, g.resolver.Resolve)
}

// ResolveEntry is Resolve for operations on the directory entry itself: a
// symlink in the final element is not followed.
func (g *Guard) ResolveEntry(p string) (abs, rel string, err error) {
	return g.resolve(p, g.resolver.Entry)
}

func (g *Guard) resolve(p string, follow func(string) (string, string, error)) (abs, rel string, err error) {
	p = Normalize(p)
	_, written, err := g.resolver.Lexical(p)
	if err != nil {
		return "", "", err
	}
	if _, err := g.checker.Check(written); err != nil {
		return "", "", err
	}

	abs, rel, err = follow(p)
	if err != nil {
		return "", "", err
	}
	if rel != written {
		if _, err := g.checker.Check(rel); err != nil {
			return "", "", err
		}
	}
	return abs, rel, nil
}

// Allowed reports whether a workspace-relative path passes the current policy.
// A configuration error blocks everything.
func (g *Guard) Allowed(rel string) bool {
	_, err := g.checker.Check(rel)
	return err == nil
}

// Policy returns the policy currently in effect.
func (g *Guard) Policy() (PathPolicy, error) {
	cfg, err := g.checker.source.Current()
	if err != nil {
		return PathPolicy{}, fmt.Errorf("load path policy: %w", err)
	}
	return FromConfig(cfg.Tools), nil
}
