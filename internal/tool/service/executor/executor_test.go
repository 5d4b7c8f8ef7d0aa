//go:build !windows

package executor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestExecutor() *Executor {
	return New(Options{MaxOutputBytes: 1 << 20}, nil)
}

// --- HAPPY PATH TESTS ---

func TestRun_Success(t *testing.T) {
	e := newTestExecutor()

	res, err := e.Run(context.Background(), Spec{Shell: "echo hello; echo oops 1>&2", Timeout: 5 * time.Second})

	require.NoError(t, err)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, "oops\n", res.Stderr)
	assert.Equal(t, 0, res.ExitCode)
	assert.NotEmpty(t, res.Handle)
	assert.Empty(t, e.Processes().List())
}

func TestRun_NonZeroExitIsNotError(t *testing.T) {
	e := newTestExecutor()

	res, err := e.Run(context.Background(), Spec{Shell: "exit 3"})

	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
}

func TestRun_ArgvAndDir(t *testing.T) {
	dir := t.TempDir()
	e := newTestExecutor()

	res, err := e.Run(context.Background(), Spec{Argv: []string{"pwd"}, Dir: dir})

	require.NoError(t, err)
	assert.Contains(t, strings.TrimSpace(res.Stdout), dir[strings.LastIndex(dir, "/")+1:])
}

func TestRun_OutputTruncated(t *testing.T) {
	e := New(Options{MaxOutputBytes: 4}, nil)

	res, err := e.Run(context.Background(), Spec{Shell: "printf abcdefgh"})

	require.NoError(t, err)
	assert.Equal(t, "abcd", res.Stdout)
	assert.True(t, res.Truncated)
}

func TestRun_BinaryOutput(t *testing.T) {
	e := newTestExecutor()

	res, err := e.Run(context.Background(), Spec{Shell: `printf 'a\000b'`})

	require.NoError(t, err)
	assert.Equal(t, "[Binary Content]", res.Stdout)
}

// --- TIMEOUT AND KILL TESTS ---

func TestRun_TimeoutKillsAndKeepsPartialOutput(t *testing.T) {
	e := newTestExecutor()
	start := time.Now()

	res, err := e.Run(context.Background(), Spec{Shell: "echo partial; sleep 5", Timeout: 300 * time.Millisecond})

	assert.ErrorIs(t, err, ErrTimeout)
	require.NotNil(t, res)
	assert.True(t, res.TimedOut)
	assert.Equal(t, -1, res.ExitCode)
	assert.Equal(t, "partial\n", res.Stdout)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestRun_TimeoutWithGracePeriod(t *testing.T) {
	e := New(Options{MaxOutputBytes: 1024, GracePeriod: 100 * time.Millisecond}, nil)

	res, err := e.Run(context.Background(), Spec{Shell: "trap '' INT; sleep 5", Timeout: 100 * time.Millisecond})

	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, res.TimedOut)
}

func TestRun_ContextCancel(t *testing.T) {
	e := newTestExecutor()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	res, err := e.Run(ctx, Spec{Shell: "sleep 5"})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, -1, res.ExitCode)
}

func TestProcessTable_KillRunning(t *testing.T) {
	e := newTestExecutor()
	handles := make(chan string, 1)
	type outcome struct {
		killed bool
		err    error
	}
	results := make(chan outcome, 1)

	go func() {
		killed, err := e.Processes().Kill(<-handles)
		results <- outcome{killed, err}
	}()

	start := time.Now()
	res, err := e.Run(context.Background(), Spec{
		Shell:   "sleep 5",
		Timeout: 10 * time.Second,
		OnStart: func(h string) { handles <- h },
	})

	require.NoError(t, err)
	assert.NotEqual(t, 0, res.ExitCode)
	assert.Less(t, time.Since(start), 3*time.Second)

	got := <-results
	assert.NoError(t, got.err)
	assert.True(t, got.killed)
}

func TestProcessTable_KillUnknown(t *testing.T) {
	e := newTestExecutor()

	killed, err := e.Processes().Kill("nope")

	require.NoError(t, err)
	assert.False(t, killed)
}

// --- ERROR PATH TESTS ---

func TestRun_EmptyCommand(t *testing.T) {
	_, err := newTestExecutor().Run(context.Background(), Spec{Shell: "   "})

	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestRun_StartFailure(t *testing.T) {
	_, err := newTestExecutor().Run(context.Background(), Spec{Argv: []string{"/definitely/not/a/binary"}})

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "start", cmdErr.Stage)
}
