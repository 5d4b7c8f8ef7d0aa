// Package toolset wires every tool kind into a Registry for one workspace.
package toolset

import (
	"errors"
	"fmt"
	"time"

	"github.com/Cyclone1070/aicoder/internal/config"
	"github.com/Cyclone1070/aicoder/internal/logging"
	"github.com/Cyclone1070/aicoder/internal/tool"
	"github.com/Cyclone1070/aicoder/internal/tool/diagnostics"
	"github.com/Cyclone1070/aicoder/internal/tool/file"
	"github.com/Cyclone1070/aicoder/internal/tool/gitops"
	"github.com/Cyclone1070/aicoder/internal/tool/policy"
	"github.com/Cyclone1070/aicoder/internal/tool/search"
	"github.com/Cyclone1070/aicoder/internal/tool/service/executor"
	"github.com/Cyclone1070/aicoder/internal/tool/service/fs"
	"github.com/Cyclone1070/aicoder/internal/tool/service/git"
	"github.com/Cyclone1070/aicoder/internal/tool/service/path"
	"github.com/Cyclone1070/aicoder/internal/tool/shell"
	"go.uber.org/zap"
)

// Options configures Build.
type Options struct {
	// Root is the canonical workspace root. Empty means no workspace is open;
	// path tools then fail with a clear error.
	Root   string
	Source config.Source
	// Diagnostics overrides the command-based provider.
	Diagnostics diagnostics.Provider
	Logger      *zap.Logger
}

// Toolset is a populated registry plus the services behind it.
type Toolset struct {
	Registry *tool.Registry
	Executor *executor.Executor
	Guard    *policy.Guard
	FS       *fs.OSFileSystem
	Ignore   git.Matcher
}

// Build creates the services and registers every tool kind.
func Build(opts Options) (*Toolset, error) {
	if opts.Source == nil {
		panic("source is required")
	}
	logger := logging.OrNop(opts.Logger)

	cfg, err := opts.Source.Current()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	fsys := fs.NewOSFileSystem(cfg.Tools.MaxFileSize)
	guard := policy.NewGuard(path.NewResolver(opts.Root), opts.Source)
	exec := executor.New(executor.Options{
		MaxOutputBytes: int(cfg.Tools.MaxCommandOutputBytes),
		GracePeriod:    time.Duration(cfg.Tools.KillGracePeriodMs) * time.Millisecond,
	}, logger.Named("executor"))

	var ignore git.Matcher = git.NoOpMatcher{}
	if opts.Root != "" {
		m, err := git.NewIgnoreMatcher(opts.Root, fsys)
		if err != nil {
			logger.Warn("gitignore unavailable", zap.Error(err))
		} else {
			ignore = m
		}
	}

	diag := opts.Diagnostics
	if diag == nil {
		diag = diagnostics.NewCommandProvider(exec, opts.Root, opts.Source)
	}

	files := file.New(fsys, guard, ignore, opts.Source, logger.Named("file"))
	finder := search.New(fsys, guard, ignore, opts.Source, logger.Named("search"))
	sh := shell.New(exec, exec.Processes(), guard, opts.Source, logger.Named("shell"))
	diagTool := diagnostics.New(diag, logger.Named("diagnostics"))
	gt := gitops.New(exec, opts.Root, opts.Source, nil, logger.Named("git"))

	reg := tool.NewRegistry(logger.Named("registry"))
	entries := []struct {
		kind tool.Kind
		t    tool.Tool
	}{
		{tool.KindReadFile, tool.NewFunc(tool.KindReadFile,
			"Read a UTF-8 text file from the workspace.",
			tool.Object(map[string]*tool.Schema{
				"path": tool.Prop(tool.TypeString, "File path relative to the workspace root."),
			}, "path"),
			files.ReadFile)},
		{tool.KindWriteFile, tool.NewFunc(tool.KindWriteFile,
			"Write the full content of a file, overwriting it if it exists.",
			tool.Object(map[string]*tool.Schema{
				"path":       tool.Prop(tool.TypeString, "File path relative to the workspace root."),
				"content":    tool.Prop(tool.TypeString, "Complete new file content."),
				"createDirs": tool.Prop(tool.TypeBoolean, "Create missing parent directories first."),
			}, "path", "content"),
			files.WriteFile)},
		{tool.KindDeletePath, tool.NewFunc(tool.KindDeletePath,
			"Delete a file or directory recursively.",
			tool.Object(map[string]*tool.Schema{
				"path": tool.Prop(tool.TypeString, "Path relative to the workspace root."),
			}, "path"),
			files.DeletePath)},
		{tool.KindListFiles, tool.NewFunc(tool.KindListFiles,
			"List files recursively, relative to the workspace root.",
			tool.Object(map[string]*tool.Schema{
				"under": tool.Prop(tool.TypeString, "Directory to list. Defaults to the workspace root."),
				"max":   tool.Prop(tool.TypeInteger, "Maximum number of paths to return (default 500)."),
			}),
			files.ListFiles)},
		{tool.KindApplyPatch, tool.NewFunc(tool.KindApplyPatch,
			"Replace the entire content of a file. This is a full-file replace, not a diff.",
			tool.Object(map[string]*tool.Schema{
				"path":       tool.Prop(tool.TypeString, "File path relative to the workspace root."),
				"newContent": tool.Prop(tool.TypeString, "Complete new file content."),
			}, "path", "newContent"),
			files.ApplyPatch)},
		{tool.KindSearch, tool.NewFunc(tool.KindSearch,
			"Search workspace files line by line with a case-insensitive regular expression.",
			tool.Object(map[string]*tool.Schema{
				"query":      tool.Prop(tool.TypeString, "Regular expression to search for."),
				"maxResults": tool.Prop(tool.TypeInteger, "Maximum number of matches (default 200)."),
				"under":      tool.Prop(tool.TypeString, "Limit the search to this directory."),
			}, "query"),
			finder.Run)},
		{tool.KindRunCommand, tool.NewFunc(tool.KindRunCommand,
			"Run a shell command in the workspace. Times out after timeoutSec seconds.",
			tool.Object(map[string]*tool.Schema{
				"cmd":        tool.Prop(tool.TypeString, "Command line passed to the shell."),
				"cwd":        tool.Prop(tool.TypeString, "Working directory relative to the workspace root."),
				"timeoutSec": tool.Prop(tool.TypeInteger, "Timeout in seconds (default from configuration)."),
			}, "cmd"),
			sh.RunCommand)},
		{tool.KindKillCommand, tool.NewFunc(tool.KindKillCommand,
			"Kill a running command by the handle reported by run_command.",
			tool.Object(map[string]*tool.Schema{
				"handle": tool.Prop(tool.TypeString, "Handle of the running command."),
			}),
			sh.KillCommand)},
		{tool.KindGetDiagnostics, tool.NewFunc(tool.KindGetDiagnostics,
			"Report compiler and linter diagnostics grouped by file.",
			tool.Object(map[string]*tool.Schema{
				"path": tool.Prop(tool.TypeString, "Only report files under this path."),
			}),
			diagTool.Run)},
		{tool.KindGitStatus, tool.NewFunc(tool.KindGitStatus,
			"Show the git working tree status.",
			tool.Object(nil),
			gt.Status)},
		{tool.KindGitCommit, tool.NewFunc(tool.KindGitCommit,
			"Stage all changes and commit them.",
			tool.Object(map[string]*tool.Schema{
				"message": tool.Prop(tool.TypeString, "Commit message."),
			}, "message"),
			gt.Commit)},
		{tool.KindGitRevert, tool.NewFunc(tool.KindGitRevert,
			"Revert a commit (default HEAD~1) without opening an editor.",
			tool.Object(map[string]*tool.Schema{
				"commit": tool.Prop(tool.TypeString, "Commit to revert."),
			}),
			gt.Revert)},
	}

	var errs []error
	for _, e := range entries {
		if err := reg.Register(e.kind, e.t); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	logger.Debug("toolset ready", zap.Int("tools", reg.Len()), zap.String("root", opts.Root))
	return &Toolset{Registry: reg, Executor: exec, Guard: guard, FS: fsys, Ignore: ignore}, nil
}
