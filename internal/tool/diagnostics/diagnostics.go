// Package diagnostics implements get_diagnostics over a pluggable provider.
package diagnostics

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Cyclone1070/aicoder/internal/config"
	"github.com/Cyclone1070/aicoder/internal/logging"
	"github.com/Cyclone1070/aicoder/internal/tool"
	"github.com/Cyclone1070/aicoder/internal/tool/policy"
	"github.com/Cyclone1070/aicoder/internal/tool/service/executor"
	"go.uber.org/zap"
)

// Position is a zero-based line/character location.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range spans a diagnostic.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Issue is one diagnostic reported for a file.
type Issue struct {
	Message  string `json:"message"`
	Code     string `json:"code,omitempty"`
	Severity string `json:"severity"`
	Range    Range  `json:"range"`
}

// FileDiagnostics groups issues by workspace-relative file.
type FileDiagnostics struct {
	File   string  `json:"file"`
	Issues []Issue `json:"issues"`
}

// Provider returns diagnostics for the workspace.
type Provider interface {
	Diagnostics(ctx context.Context) ([]FileDiagnostics, error)
}

type Args struct {
	Path string `json:"path,omitempty"`
}

// Tool aggregates a Provider's output into a tool result.
type Tool struct {
	provider Provider
	logger   *zap.Logger
}

// New creates the diagnostics tool.
func New(p Provider, logger *zap.Logger) *Tool {
	if p == nil {
		panic("provider is required")
	}
	return &Tool{provider: p, logger: logging.OrNop(logger)}
}

// Run returns diagnostics, optionally limited to files under args.Path.
func (t *Tool) Run(ctx context.Context, args Args) tool.Result {
	all, err := t.provider.Diagnostics(ctx)
	if err != nil {
		return tool.Failuref("diagnostics unavailable: %v", err)
	}

	prefix := strings.TrimSuffix(policy.Normalize(args.Path), "/")
	files := make([]FileDiagnostics, 0, len(all))
	issues := 0
	for _, fd := range all {
		if prefix != "" && prefix != "." && fd.File != prefix && !strings.HasPrefix(fd.File, prefix+"/") {
			continue
		}
		files = append(files, fd)
		issues += len(fd.Issues)
	}

	var out strings.Builder
	fmt.Fprintf(&out, "%d issue(s) in %d file(s)", issues, len(files))
	for _, fd := range files {
		for _, is := range fd.Issues {
			fmt.Fprintf(&out, "\n%s:%d:%d: %s: %s", fd.File, is.Range.Start.Line+1, is.Range.Start.Character+1, is.Severity, is.Message)
		}
	}
	return tool.Success(out.String(), map[string]any{"diagnostics": files})
}

type commandRunner interface {
	Run(ctx context.Context, spec executor.Spec) (*executor.Result, error)
}

// CommandProvider runs the configured diagnostics command in the workspace and
// parses "file:line[:col]: message" lines from its output.
type CommandProvider struct {
	runner commandRunner
	root   string
	source config.Source
}

// NewCommandProvider creates a provider rooted at root.
func NewCommandProvider(runner commandRunner, root string, source config.Source) *CommandProvider {
	if runner == nil {
		panic("runner is required")
	}
	if source == nil {
		panic("source is required")
	}
	return &CommandProvider{runner: runner, root: root, source: source}
}

// Diagnostics runs the command. A non-zero exit is expected when issues exist;
// it is only an error when nothing could be parsed.
func (p *CommandProvider) Diagnostics(ctx context.Context) ([]FileDiagnostics, error) {
	if p.root == "" {
		return nil, fmt.Errorf("no workspace root is set")
	}
	cfg, err := p.source.Current()
	if err != nil {
		return nil, err
	}
	command := strings.TrimSpace(cfg.Tools.DiagnosticsCommand)
	if command == "" {
		return nil, nil
	}

	res, err := p.runner.Run(ctx, executor.Spec{
		Shell:   command,
		Dir:     p.root,
		Timeout: time.Duration(cfg.Tools.CommandTimeoutSec) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("run %q: %w", command, err)
	}

	diags := Parse(res.Stdout+"\n"+res.Stderr, p.root)
	if len(diags) == 0 && res.ExitCode != 0 {
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = fmt.Sprintf("exit code %d", res.ExitCode)
		}
		return nil, fmt.Errorf("%s: %s", command, msg)
	}
	return diags, nil
}

var lineRe = regexp.MustCompile(`^(\S[^:]*):(\d+):(?:(\d+):)?\s*(.+)$`)

var severityRe = regexp.MustCompile(`^(?i)(error|warning|info|hint)\b:?\s*`)

// Parse extracts diagnostics from compiler-style output. File paths are made
// relative to root when they are absolute; output is grouped and sorted by file.
func Parse(output, root string) []FileDiagnostics {
	byFile := make(map[string][]Issue)
	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "vet: "))
		m := lineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		file := filepath.ToSlash(m[1])
		if filepath.IsAbs(m[1]) && root != "" {
			if rel, err := filepath.Rel(root, m[1]); err == nil {
				file = filepath.ToSlash(rel)
			}
		}
		file = policy.Normalize(file)

		ln, _ := strconv.Atoi(m[2])
		col := 1
		if m[3] != "" {
			col, _ = strconv.Atoi(m[3])
		}
		msg := m[4]
		severity := "error"
		if sm := severityRe.FindStringSubmatch(msg); sm != nil {
			severity = strings.ToLower(sm[1])
			msg = msg[len(sm[0]):]
		}
		pos := Position{Line: max(ln-1, 0), Character: max(col-1, 0)}
		byFile[file] = append(byFile[file], Issue{
			Message:  msg,
			Severity: severity,
			Range:    Range{Start: pos, End: pos},
		})
	}

	out := make([]FileDiagnostics, 0, len(byFile))
	for f, issues := range byFile {
		out = append(out, FileDiagnostics{File: f, Issues: issues})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out
}
