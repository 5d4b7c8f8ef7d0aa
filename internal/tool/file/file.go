// Package file implements the read, write, delete, patch and list tools.
package file

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Cyclone1070/aicoder/internal/config"
	"github.com/Cyclone1070/aicoder/internal/logging"
	"github.com/Cyclone1070/aicoder/internal/tool"
	"github.com/Cyclone1070/aicoder/internal/tool/policy"
	"github.com/Cyclone1070/aicoder/internal/tool/service/fs"
	"github.com/Cyclone1070/aicoder/internal/tool/service/path"
	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"
)

// Tools implements the file tools over the workspace.
type Tools struct {
	fs     fileSystem
	guard  guard
	ignore ignoreMatcher
	source config.Source
	logger *zap.Logger
}

// New creates the file tools. ignore may be nil.
func New(fsys fileSystem, g guard, ignore ignoreMatcher, source config.Source, logger *zap.Logger) *Tools {
	if fsys == nil {
		panic("fs is required")
	}
	if g == nil {
		panic("guard is required")
	}
	if source == nil {
		panic("source is required")
	}
	return &Tools{fs: fsys, guard: g, ignore: ignore, source: source, logger: logging.OrNop(logger)}
}

// ReadFile returns the text of a workspace file.
func (t *Tools) ReadFile(ctx context.Context, args ReadFileArgs) tool.Result {
	abs, rel, err := t.guard.Resolve(args.Path)
	if err != nil {
		return tool.Failure(err)
	}
	data, err := t.fs.ReadFile(abs)
	if err != nil {
		return tool.Failure(err)
	}
	if fs.IsBinary(data) {
		return tool.Failure(fmt.Errorf("%w: %s", ErrBinaryFile, rel))
	}
	return tool.Success(string(data), map[string]any{"path": rel, "bytes": len(data)})
}

// WriteFile writes the full content, overwriting any existing file.
func (t *Tools) WriteFile(ctx context.Context, args WriteFileArgs) tool.Result {
	abs, rel, err := t.guard.Resolve(args.Path)
	if err != nil {
		return tool.Failure(err)
	}
	if rel == "" {
		return tool.Failure(fmt.Errorf("%w: workspace root", fs.ErrIsDirectory))
	}

	if args.CreateDirs {
		if err := t.fs.EnsureDirs(filepath.Dir(abs)); err != nil {
			return tool.Failuref("create directories for %s: %v", rel, err)
		}
	}

	perm := os.FileMode(0o644)
	created := true
	var previous string
	if info, err := t.fs.Stat(abs); err == nil {
		if info.IsDir() {
			return tool.Failure(fmt.Errorf("%w: %s", fs.ErrIsDirectory, rel))
		}
		created = false
		perm = info.Mode().Perm()
		if old, err := t.fs.ReadFile(abs); err == nil && !fs.IsBinary(old) {
			previous = string(old)
		}
	}

	if err := t.fs.WriteFileAtomic(abs, []byte(args.Content), perm); err != nil {
		return tool.Failuref("write %s: %v", rel, err)
	}

	meta := map[string]any{
		"path":         rel,
		"bytesWritten": len(args.Content),
		"created":      created,
	}
	if !created && previous != args.Content {
		diff, added, removed := unifiedDiff(rel, previous, args.Content)
		meta["diff"] = diff
		meta["addedLines"] = added
		meta["removedLines"] = removed
	}
	t.logger.Debug("file written", zap.String("path", rel), zap.Bool("created", created))
	return tool.Success(fmt.Sprintf("wrote %d bytes to %s", len(args.Content), rel), meta)
}

// ApplyPatch replaces the whole file with NewContent, creating parent directories.
func (t *Tools) ApplyPatch(ctx context.Context, args ApplyPatchArgs) tool.Result {
	res := t.WriteFile(ctx, WriteFileArgs{Path: args.Path, Content: args.NewContent, CreateDirs: true})
	if !res.OK {
		return res
	}
	res.Meta["mode"] = "replace"
	res.Output = fmt.Sprintf("replaced full content of %s (%d bytes)", res.Meta["path"], len(args.NewContent))
	return res
}

// DeletePath removes a file or directory tree.
func (t *Tools) DeletePath(ctx context.Context, args DeletePathArgs) tool.Result {
	abs, rel, err := t.guard.ResolveEntry(args.Path)
	if err != nil {
		return tool.Failure(err)
	}
	if rel == "" {
		return tool.Failuref("refusing to delete the workspace root")
	}
	if err := t.fs.RemoveAll(abs); err != nil {
		return tool.Failure(err)
	}
	t.logger.Debug("path deleted", zap.String("path", rel))
	return tool.Success("deleted "+rel, map[string]any{"path": rel})
}

// ListFiles walks the tree under args.Under in lexical order and returns file
// paths relative to the workspace root, stopping silently at the limit.
func (t *Tools) ListFiles(ctx context.Context, args ListFilesArgs) tool.Result {
	limit := args.Max
	if limit == 0 {
		cfg, err := t.source.Current()
		if err != nil {
			return tool.Failure(err)
		}
		limit = cfg.Tools.ListFilesMax
	}
	if limit <= 0 {
		limit = config.DefaultConfig().Tools.ListFilesMax
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
		info, err := t.fs.Stat(abs)
		if err != nil {
			return tool.Failure(err)
		}
		if !info.IsDir() {
			return tool.Failure(fmt.Errorf("%w: %s", ErrNotADirectory, under))
		}
		start = abs
	}

	files := make([]string, 0)
	errLimit := errors.New("limit reached")
	err := t.fs.Walk(start, func(p string, d iofs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if p == start {
				return walkErr
			}
			return nil
		}
		if p == start {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if t.skip(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if t.skip(rel, false) {
			return nil
		}
		files = append(files, rel)
		if len(files) >= limit {
			return errLimit
		}
		return nil
	})
	if err != nil && !errors.Is(err, errLimit) {
		return tool.Failure(err)
	}

	return tool.Success(strings.Join(files, "\n"), map[string]any{"files": files, "count": len(files)})
}

func (t *Tools) skip(rel string, isDir bool) bool {
	if t.ignore != nil && t.ignore.ShouldIgnore(rel, isDir) {
		return true
	}
	return !t.guard.Allowed(rel)
}

// unifiedDiff renders a unified diff between the old and new content and counts changed lines.
func unifiedDiff(name, oldContent, newContent string) (diff string, added, removed int) {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldContent),
		B:        difflib.SplitLines(newContent),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  3,
	}
	diff, _ = difflib.GetUnifiedDiffString(ud)
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return diff, added, removed
}
