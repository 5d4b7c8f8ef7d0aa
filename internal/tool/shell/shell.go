// Package shell implements run_command and kill_command.
package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Cyclone1070/aicoder/internal/config"
	"github.com/Cyclone1070/aicoder/internal/logging"
	"github.com/Cyclone1070/aicoder/internal/tool"
	"github.com/Cyclone1070/aicoder/internal/tool/service/executor"
	"github.com/Cyclone1070/aicoder/internal/tool/service/path"
	"go.uber.org/zap"
)

// Tools runs shell commands inside the workspace.
type Tools struct {
	runner commandRunner
	procs  processTable
	guard  guard
	source config.Source
	logger *zap.Logger
}

// New creates the shell tools.
func New(runner commandRunner, procs processTable, g guard, source config.Source, logger *zap.Logger) *Tools {
	if runner == nil {
		panic("runner is required")
	}
	if procs == nil {
		panic("procs is required")
	}
	if g == nil {
		panic("guard is required")
	}
	if source == nil {
		panic("source is required")
	}
	return &Tools{runner: runner, procs: procs, guard: g, source: source, logger: logging.OrNop(logger)}
}

// RunCommand runs args.Cmd through the platform shell rooted at args.Cwd (or
// the workspace root). On timeout the process is killed and the partial stdout
// is returned with the error "timeout after Ns".
func (t *Tools) RunCommand(ctx context.Context, args RunArgs) tool.Result {
	cfg, err := t.source.Current()
	if err != nil {
		return tool.Failure(err)
	}
	timeoutSec := args.TimeoutSec
	if timeoutSec == 0 {
		timeoutSec = cfg.Tools.CommandTimeoutSec
	}

	dir := t.guard.Root()
	if dir == "" {
		return tool.Failure(path.ErrWorkspaceRootNotSet)
	}
	if args.Cwd != "" && args.Cwd != "." {
		abs, _, err := t.guard.Resolve(args.Cwd)
		if err != nil {
			return tool.Failure(err)
		}
		dir = abs
	}

	res, err := t.runner.Run(ctx, executor.Spec{
		Shell:   args.Cmd,
		Dir:     dir,
		Env:     os.Environ(),
		Timeout: time.Duration(timeoutSec) * time.Second,
		OnStart: func(handle string) {
			t.logger.Info("command running", zap.String("handle", handle), zap.String("cmd", args.Cmd))
		},
	})
	if res == nil {
		return tool.Failure(err)
	}

	meta := map[string]any{
		"handle":     res.Handle,
		"exitCode":   res.ExitCode,
		"stderr":     res.Stderr,
		"truncated":  res.Truncated,
		"durationMs": res.Duration.Milliseconds(),
	}
	switch {
	case errors.Is(err, executor.ErrTimeout):
		t.logger.Warn("command timed out", zap.String("cmd", args.Cmd), zap.Int("timeoutSec", timeoutSec))
		meta["timedOut"] = true
		return tool.Result{Output: res.Stdout, Error: fmt.Sprintf("timeout after %ds", timeoutSec), Meta: meta}
	case err != nil:
		return tool.Result{Output: res.Stdout, Error: err.Error(), Meta: meta}
	case res.ExitCode != 0:
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = fmt.Sprintf("command exited with code %d", res.ExitCode)
		}
		return tool.Result{Output: res.Stdout, Error: msg, Meta: meta}
	}
	return tool.Success(res.Stdout, meta)
}

// KillCommand kills a running command by handle. Without a handle, or with a
// handle that is no longer running, it succeeds without doing anything.
func (t *Tools) KillCommand(ctx context.Context, args KillArgs) tool.Result {
	running := t.procs.List()
	handles := make([]string, 0, len(running))
	for _, p := range running {
		handles = append(handles, p.Handle)
	}
	meta := map[string]any{"running": handles}

	if args.Handle == "" {
		meta["killed"] = false
		return tool.Success(fmt.Sprintf("no handle given; nothing to kill (%d command(s) running)", len(handles)), meta)
	}

	killed, err := t.procs.Kill(args.Handle)
	if err != nil {
		return tool.Failuref("kill %s: %v", args.Handle, err)
	}
	meta["killed"] = killed
	if !killed {
		return tool.Success(fmt.Sprintf("no running command with handle %s; nothing to kill", args.Handle), meta)
	}
	t.logger.Info("command killed", zap.String("handle", args.Handle))
	return tool.Success("killed command "+args.Handle, meta)
}
