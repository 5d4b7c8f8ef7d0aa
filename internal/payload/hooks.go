package payload

import (
	"context"

	"github.com/Cyclone1070/aicoder/internal/logging"
	"github.com/Cyclone1070/aicoder/internal/tool"
	"go.uber.org/zap"
)

// toolCaller runs a registered tool by name.
type toolCaller interface {
	Call(ctx context.Context, name string, args map[string]any) tool.Result
}

// HookResult is the outcome of one project hook.
type HookResult struct {
	Name    string
	Command string
	Result  tool.Result
}

// Runner executes a project's postInstall and start commands with
// run_command, so they are subject to the same timeout and policy.
type Runner struct {
	tools  toolCaller
	logger *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner(tools toolCaller, logger *zap.Logger) *Runner {
	if tools == nil {
		panic("tools is required")
	}
	return &Runner{tools: tools, logger: logging.OrNop(logger)}
}

// RunHooks runs postInstall then start. Empty commands are skipped and start
// does not run when postInstall failed.
func (r *Runner) RunHooks(ctx context.Context, project *GeneratedProject) []HookResult {
	var results []HookResult
	for _, h := range []struct{ name, cmd string }{
		{"postInstall", project.PostInstall},
		{"start", project.Start},
	} {
		if h.cmd == "" {
			continue
		}
		res := r.tools.Call(ctx, string(tool.KindRunCommand), map[string]any{"cmd": h.cmd})
		results = append(results, HookResult{Name: h.name, Command: h.cmd, Result: res})
		if !res.OK {
			r.logger.Warn("project hook failed", zap.String("hook", h.name), zap.String("error", res.Error))
			break
		}
	}
	return results
}
