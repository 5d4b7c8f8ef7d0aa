// Package policy decides which workspace paths tools may touch.
package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Cyclone1070/aicoder/internal/config"
)

// ErrPathDenied is returned when a path is blocked by the allow/deny lists.
var ErrPathDenied = errors.New("path denied by policy")

// Normalize converts backslashes to forward slashes and strips a single leading "./".
func Normalize(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	return strings.TrimPrefix(p, "./")
}

// PathPolicy holds allow and deny prefixes. Deny always wins; an empty allow
// list permits everything not denied.
type PathPolicy struct {
	Allowed []string
	Denied  []string
}

// FromConfig builds a PathPolicy from the tools section.
func FromConfig(c config.ToolsConfig) PathPolicy {
	return PathPolicy{Allowed: c.AllowedPaths, Denied: c.DeniedPaths}
}

// IsAllowed reports whether p may be used.
func (pp PathPolicy) IsAllowed(p string) bool {
	p = Normalize(p)
	for _, d := range pp.Denied {
		if covers(Normalize(d), p) {
			return false
		}
	}
	if len(pp.Allowed) == 0 {
		return true
	}
	for _, a := range pp.Allowed {
		if covers(Normalize(a), p) {
			return true
		}
	}
	return false
}

// covers reports whether prefix equals p or is one of its ancestors.
func covers(prefix, p string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" || prefix == "." {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// Checker evaluates the policy read fresh from a config source on every call.
type Checker struct {
	source config.Source
}

// NewChecker creates a Checker over source.
func NewChecker(source config.Source) *Checker {
	if source == nil {
		panic("source is required")
	}
	return &Checker{source: source}
}

// Check returns the normalized path, or an error if the policy blocks it or
// the configuration cannot be read.
func (c *Checker) Check(p string) (string, error) {
	cfg, err := c.source.Current()
	if err != nil {
		return "", fmt.Errorf("load path policy: %w", err)
	}
	norm := Normalize(p)
	if !FromConfig(cfg.Tools).IsAllowed(norm) {
		return "", fmt.Errorf("%w: %s", ErrPathDenied, norm)
	}
	return norm, nil
}
