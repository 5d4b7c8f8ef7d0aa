package gitops

import (
	"context"
	"errors"
	"testing"

	"github.com/Cyclone1070/aicoder/internal/config"
	"github.com/Cyclone1070/aicoder/internal/tool/service/executor"
	"github.com/Cyclone1070/aicoder/internal/tool/service/git"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	runFunc func(spec executor.Spec) (*executor.Result, error)
	calls   [][]string
}

func (m *mockRunner) Run(ctx context.Context, spec executor.Spec) (*executor.Result, error) {
	m.calls = append(m.calls, spec.Argv)
	if m.runFunc == nil {
		return &executor.Result{}, nil
	}
	return m.runFunc(spec)
}

func newTools(r *mockRunner, status StatusReader) *Tools {
	return New(r, "/ws", config.NewStaticSource(nil), status, nil)
}

func TestCommit_StagesThenCommits(t *testing.T) {
	r := &mockRunner{}

	res := newTools(r, nil).Commit(context.Background(), CommitArgs{Message: "fix: thing"})

	require.True(t, res.OK, res.Error)
	assert.Equal(t, [][]string{
		{"git", "add", "-A"},
		{"git", "commit", "-m", "fix: thing"},
	}, r.calls)
}

func TestCommit_StopsWhenAddFails(t *testing.T) {
	r := &mockRunner{runFunc: func(spec executor.Spec) (*executor.Result, error) {
		return &executor.Result{Stderr: "fatal: not a git repository", ExitCode: 128}, nil
	}}

	res := newTools(r, nil).Commit(context.Background(), CommitArgs{Message: "m"})

	assert.False(t, res.OK)
	assert.Equal(t, "git add failed: fatal: not a git repository", res.Error)
	assert.Len(t, r.calls, 1)
}

func TestRevert_DefaultsToPreviousCommit(t *testing.T) {
	r := &mockRunner{}
	tools := newTools(r, nil)

	tools.Revert(context.Background(), RevertArgs{})
	tools.Revert(context.Background(), RevertArgs{Commit: "abc123"})

	assert.Equal(t, []string{"git", "revert", "--no-edit", "HEAD~1"}, r.calls[0])
	assert.Equal(t, []string{"git", "revert", "--no-edit", "abc123"}, r.calls[1])
}

func TestStatus_AttachesWorktreeMeta(t *testing.T) {
	r := &mockRunner{runFunc: func(spec executor.Spec) (*executor.Result, error) {
		return &executor.Result{Stdout: "## main\n?? new.txt\n"}, nil
	}}
	status := func(root string) (*git.Status, error) {
		assert.Equal(t, "/ws", root)
		return &git.Status{Branch: "main", Files: map[string]string{"new.txt": "??"}}, nil
	}

	res := newTools(r, status).Status(context.Background(), StatusArgs{})

	require.True(t, res.OK)
	assert.Equal(t, "## main\n?? new.txt\n", res.Output)
	assert.Equal(t, map[string]string{"new.txt": "??"}, res.Meta["files"])
	assert.Equal(t, "main", res.Meta["branch"])
	assert.Equal(t, false, res.Meta["clean"])
}

func TestStatus_WorktreeErrorKeepsOutput(t *testing.T) {
	r := &mockRunner{runFunc: func(spec executor.Spec) (*executor.Result, error) {
		return &executor.Result{Stdout: "## main\n"}, nil
	}}
	status := func(string) (*git.Status, error) { return nil, errors.New("broken index") }

	res := newTools(r, status).Status(context.Background(), StatusArgs{})

	require.True(t, res.OK)
	assert.NotContains(t, res.Meta, "files")
}

func TestGit_Failures(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		r := &mockRunner{runFunc: func(spec executor.Spec) (*executor.Result, error) {
			return &executor.Result{ExitCode: -1}, executor.ErrTimeout
		}}
		res := newTools(r, nil).Revert(context.Background(), RevertArgs{})
		assert.False(t, res.OK)
		assert.Contains(t, res.Error, "command timeout")
	})

	t.Run("no workspace", func(t *testing.T) {
		res := New(&mockRunner{}, "", config.NewStaticSource(nil), nil, nil).Commit(context.Background(), CommitArgs{Message: "m"})
		assert.False(t, res.OK)
	})

	t.Run("message required", func(t *testing.T) {
		assert.ErrorIs(t, (&CommitArgs{Message: "  "}).Validate(), ErrMessageRequired)
	})
}
