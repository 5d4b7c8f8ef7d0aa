// Package gitops implements git_status, git_commit and git_revert by shelling out to git.
package gitops

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Cyclone1070/aicoder/internal/config"
	"github.com/Cyclone1070/aicoder/internal/logging"
	"github.com/Cyclone1070/aicoder/internal/tool"
	"github.com/Cyclone1070/aicoder/internal/tool/service/executor"
	"github.com/Cyclone1070/aicoder/internal/tool/service/git"
	"github.com/Cyclone1070/aicoder/internal/tool/service/path"
	"go.uber.org/zap"
)

// DefaultRevertTarget is reverted when git_revert gets no commit.
const DefaultRevertTarget = "HEAD~1"

var ErrMessageRequired = errors.New("message is required")

type StatusArgs struct{}

type CommitArgs struct {
	Message string `json:"message"`
}

func (a *CommitArgs) Validate() error {
	if strings.TrimSpace(a.Message) == "" {
		return ErrMessageRequired
	}
	return nil
}

type RevertArgs struct {
	Commit string `json:"commit,omitempty"`
}

type commandRunner interface {
	Run(ctx context.Context, spec executor.Spec) (*executor.Result, error)
}

// StatusReader reports worktree status without spawning git.
type StatusReader func(root string) (*git.Status, error)

// Tools wraps the git CLI for the workspace.
type Tools struct {
	runner     commandRunner
	root       string
	source     config.Source
	readStatus StatusReader
	logger     *zap.Logger
}

// New creates the git tools. A nil readStatus uses go-git.
func New(runner commandRunner, root string, source config.Source, readStatus StatusReader, logger *zap.Logger) *Tools {
	if runner == nil {
		panic("runner is required")
	}
	if source == nil {
		panic("source is required")
	}
	if readStatus == nil {
		readStatus = git.ReadStatus
	}
	return &Tools{runner: runner, root: root, source: source, readStatus: readStatus, logger: logging.OrNop(logger)}
}

// Status runs `git status` and attaches the parsed worktree state.
func (t *Tools) Status(ctx context.Context, _ StatusArgs) tool.Result {
	res := t.git(ctx, "status", "--short", "--branch")
	if !res.OK {
		return res
	}
	st, err := t.readStatus(t.root)
	if err != nil {
		t.logger.Debug("worktree status unavailable", zap.Error(err))
		return res
	}
	res.Meta["files"] = st.Files
	res.Meta["branch"] = st.Branch
	res.Meta["head"] = st.Head
	res.Meta["clean"] = st.Clean()
	return res
}

// Commit stages every change and commits it.
func (t *Tools) Commit(ctx context.Context, args CommitArgs) tool.Result {
	if res := t.git(ctx, "add", "-A"); !res.OK {
		return res
	}
	return t.git(ctx, "commit", "-m", args.Message)
}

// Revert reverts args.Commit, or HEAD~1 when empty.
func (t *Tools) Revert(ctx context.Context, args RevertArgs) tool.Result {
	target := strings.TrimSpace(args.Commit)
	if target == "" {
		target = DefaultRevertTarget
	}
	return t.git(ctx, "revert", "--no-edit", target)
}

func (t *Tools) git(ctx context.Context, args ...string) tool.Result {
	if t.root == "" {
		return tool.Failure(path.ErrWorkspaceRootNotSet)
	}
	cfg, err := t.source.Current()
	if err != nil {
		return tool.Failure(err)
	}

	argv := append([]string{"git"}, args...)
	res, err := t.runner.Run(ctx, executor.Spec{
		Argv:    argv,
		Dir:     t.root,
		Timeout: time.Duration(cfg.Tools.CommandTimeoutSec) * time.Second,
	})
	if res == nil {
		return tool.Failure(err)
	}

	meta := map[string]any{
		"command":  strings.Join(argv, " "),
		"exitCode": res.ExitCode,
		"stderr":   res.Stderr,
	}
	if err != nil {
		return tool.Result{Output: res.Stdout, Error: fmt.Sprintf("git %s: %v", args[0], err), Meta: meta}
	}
	if res.ExitCode != 0 {
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = strings.TrimSpace(res.Stdout)
		}
		if msg == "" {
			msg = fmt.Sprintf("exit code %d", res.ExitCode)
		}
		return tool.Result{Output: res.Stdout, Error: fmt.Sprintf("git %s failed: %s", args[0], msg), Meta: meta}
	}
	return tool.Success(res.Stdout, meta)
}
