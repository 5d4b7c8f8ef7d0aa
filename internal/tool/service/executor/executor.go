// Package executor spawns commands with output limits, timeouts and a process table.
package executor

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/Cyclone1070/aicoder/internal/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// waitDelay bounds how long Wait keeps copying output after the process is gone.
const waitDelay = 2 * time.Second

// Result represents the outcome of a command execution.
type Result struct {
	Handle    string
	Stdout    string
	Stderr    string
	ExitCode  int
	Truncated bool
	TimedOut  bool
	Duration  time.Duration
}

// Spec describes one command to run.
type Spec struct {
	// Shell is a command line run through the platform shell. Ignored when Argv is set.
	Shell string
	// Argv runs a program directly without a shell.
	Argv    []string
	Dir     string
	Env     []string
	Timeout time.Duration
	// OnStart, when set, receives the process-table handle once the command runs.
	OnStart func(handle string)
}

func (s Spec) argv() []string {
	if len(s.Argv) > 0 {
		return s.Argv
	}
	if strings.TrimSpace(s.Shell) == "" {
		return nil
	}
	return shellArgv(s.Shell)
}

func (s Spec) label() string {
	if len(s.Argv) > 0 {
		return strings.Join(s.Argv, " ")
	}
	return s.Shell
}

// Options tunes an Executor.
type Options struct {
	MaxOutputBytes int
	GracePeriod    time.Duration
}

// Executor runs commands on the host.
type Executor struct {
	opts   Options
	procs  *ProcessTable
	logger *zap.Logger
}

// New creates an Executor.
func New(opts Options, logger *zap.Logger) *Executor {
	return &Executor{
		opts:   opts,
		procs:  newProcessTable(),
		logger: logging.OrNop(logger),
	}
}

// Processes returns the table of running commands.
func (e *Executor) Processes() *ProcessTable {
	return e.procs
}

// Run executes spec and waits for it. A non-zero exit is reported through
// Result.ExitCode, not as an error. On timeout the process group is killed and
// the partial output is returned together with ErrTimeout. Cancelling ctx kills
// the process and returns ctx.Err().
func (e *Executor) Run(ctx context.Context, spec Spec) (*Result, error) {
	argv := spec.argv()
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdin = nil
	cmd.WaitDelay = waitDelay
	prepare(cmd)

	stdout := newCollector(e.opts.MaxOutputBytes)
	stderr := newCollector(e.opts.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &CommandError{Cmd: spec.label(), Stage: "start", Cause: err}
	}

	handle := e.procs.add(cmd, spec.label())
	defer e.procs.remove(handle)
	e.logger.Debug("command started", zap.String("handle", handle), zap.String("cmd", spec.label()))
	if spec.OnStart != nil {
		spec.OnStart(handle)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var timeoutC <-chan time.Time
	if spec.Timeout > 0 {
		timer := time.NewTimer(spec.Timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	var (
		waitErr  error
		runErr   error
		timedOut bool
	)
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		_ = kill(cmd)
		waitErr = <-done
		runErr = ctx.Err()
	case <-timeoutC:
		timedOut = true
		waitErr = e.stop(cmd, done)
		runErr = ErrTimeout
	}

	res := &Result{
		Handle:    handle,
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		ExitCode:  exitCode(waitErr),
		Truncated: stdout.truncated || stderr.truncated,
		TimedOut:  timedOut,
		Duration:  time.Since(start),
	}
	if timedOut || runErr != nil {
		res.ExitCode = -1
	}
	e.logger.Debug("command finished",
		zap.String("handle", handle),
		zap.Int("exitCode", res.ExitCode),
		zap.Bool("timedOut", timedOut),
		zap.Duration("duration", res.Duration))
	return res, runErr
}

// stop interrupts the process group, waits out the grace period, then kills it.
func (e *Executor) stop(cmd *exec.Cmd, done <-chan error) error {
	if e.opts.GracePeriod > 0 {
		_ = interrupt(cmd)
		select {
		case err := <-done:
			return err
		case <-time.After(e.opts.GracePeriod):
		}
	}
	_ = kill(cmd)
	return <-done
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Process describes a running command.
type Process struct {
	Handle  string
	Command string
	Started time.Time
}

// ProcessTable tracks running commands by handle so they can be killed.
type ProcessTable struct {
	mu    sync.Mutex
	procs map[string]*entry
}

type entry struct {
	cmd  *exec.Cmd
	info Process
}

func newProcessTable() *ProcessTable {
	return &ProcessTable{procs: make(map[string]*entry)}
}

func (t *ProcessTable) add(cmd *exec.Cmd, label string) string {
	handle := uuid.NewString()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.procs[handle] = &entry{cmd: cmd, info: Process{Handle: handle, Command: label, Started: time.Now()}}
	return handle
}

func (t *ProcessTable) remove(handle string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.procs, handle)
}

// Kill kills the command registered under handle. It reports false when the
// handle is unknown or the command already finished.
func (t *ProcessTable) Kill(handle string) (bool, error) {
	t.mu.Lock()
	e, ok := t.procs[handle]
	t.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := kill(e.cmd); err != nil {
		return false, err
	}
	return true, nil
}

// List returns the running commands.
func (t *ProcessTable) List() []Process {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Process, 0, len(t.procs))
	for _, e := range t.procs {
		out = append(out, e.info)
	}
	return out
}
