// Package search implements the search_in_workspace tool.
package search

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Cyclone1070/aicoder/internal/config"
	"github.com/Cyclone1070/aicoder/internal/logging"
	"github.com/Cyclone1070/aicoder/internal/tool"
	"github.com/Cyclone1070/aicoder/internal/tool/policy"
	"github.com/Cyclone1070/aicoder/internal/tool/service/fs"
	"github.com/Cyclone1070/aicoder/internal/tool/service/path"
	"go.uber.org/zap"
)

// maxLineLength bounds the text returned per match (minified files).
const maxLineLength = 400

var errCapReached = errors.New("result cap reached")

// Tool searches workspace text files line by line.
type Tool struct {
	fs     fileSystem
	guard  guard
	ignore ignoreMatcher
	source config.Source
	logger *zap.Logger
}

// New creates the search tool. ignore may be nil.
func New(fsys fileSystem, g guard, ignore ignoreMatcher, source config.Source, logger *zap.Logger) *Tool {
	if fsys == nil {
		panic("fs is required")
	}
	if g == nil {
		panic("guard is required")
	}
	if source == nil {
		panic("source is required")
	}
	return &Tool{fs: fsys, guard: g, ignore: ignore, source: source, logger: logging.OrNop(logger)}
}

// Run compiles the query as a case-insensitive regular expression and scans
// every non-ignored text file, stopping as soon as the result cap is reached.
func (t *Tool) Run(ctx context.Context, args Args) tool.Result {
	re, err := regexp.Compile("(?i)" + args.Query)
	if err != nil {
		return tool.Failuref("invalid query: %v", err)
	}

	limit := args.MaxResults
	if limit == 0 {
		cfg, err := t.source.Current()
		if err != nil {
			return tool.Failure(err)
		}
		limit = cfg.Tools.SearchMaxResults
	}
	if limit <= 0 {
		limit = config.DefaultConfig().Tools.SearchMaxResults
	}

	root := t.guard.Root()
	if root == "" {
		return tool.Failure(path.ErrWorkspaceRootNotSet)
	}
	start := root
	if under := policy.Normalize(args.Under); under != "" && under != "." {
		abs, _, err := t.guard.Resolve(under)
		if err != nil {
			return tool.Failure(err)
		}
		start = abs
	}

	matches := make([]Match, 0)
	scanned := 0
	err = t.fs.Walk(start, func(p string, d iofs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(matches) >= limit {
			return errCapReached
		}
		if walkErr != nil {
			if p == start {
				return walkErr
			}
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if t.skip(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || t.skip(rel, false) {
			return nil
		}

		data, err := t.fs.ReadFile(p)
		if err != nil || fs.IsBinary(data) {
			return nil
		}
		scanned++

		for i, line := range strings.Split(string(data), "\n") {
			if len(matches) >= limit {
				return errCapReached
			}
			line = strings.TrimRight(line, "\r")
			if !re.MatchString(line) {
				continue
			}
			matches = append(matches, Match{File: rel, Line: i + 1, Text: clip(strings.TrimSpace(line))})
		}
		return nil
	})
	if err != nil && !errors.Is(err, errCapReached) {
		return tool.Failure(err)
	}

	t.logger.Debug("search finished",
		zap.String("query", args.Query),
		zap.Int("matches", len(matches)),
		zap.Int("filesScanned", scanned))

	var out strings.Builder
	for i, m := range matches {
		if i > 0 {
			out.WriteByte('\n')
		}
		fmt.Fprintf(&out, "%s:%d: %s", m.File, m.Line, m.Text)
	}
	return tool.Success(out.String(), map[string]any{
		"matches":      matches,
		"count":        len(matches),
		"filesScanned": scanned,
	})
}

func (t *Tool) skip(rel string, isDir bool) bool {
	if t.ignore != nil && t.ignore.ShouldIgnore(rel, isDir) {
		return true
	}
	return !t.guard.Allowed(rel)
}

func clip(s string) string {
	if len(s) <= maxLineLength {
		return s
	}
	return s[:maxLineLength] + "...[truncated]"
}
