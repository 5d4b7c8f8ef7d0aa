package payload

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Cyclone1070/aicoder/internal/config"
	"github.com/Cyclone1070/aicoder/internal/tool"
	"github.com/Cyclone1070/aicoder/internal/tool/policy"
	"github.com/Cyclone1070/aicoder/internal/tool/service/fs"
	"github.com/Cyclone1070/aicoder/internal/tool/service/path"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	root := t.TempDir()
	g := policy.NewGuard(path.NewResolver(root), config.NewStaticSource(nil))
	return NewWriter(fs.NewOSFileSystem(0), g, nil), root
}

// --- HAPPY PATH TESTS ---

func TestWriter_CreatedAndUpdated(t *testing.T) {
	w, root := newTestWriter(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "existing.txt"), []byte("old"), 0o644))

	report, err := w.Write(context.Background(), &GeneratedProject{Files: []File{
		{Path: "existing.txt", Content: "new"},
		{Path: "src/pkg/new.go", Content: "package pkg\n"},
		{Path: "run.sh", Content: "#!/bin/sh\n", Executable: true},
	}})

	require.NoError(t, err)
	assert.Equal(t, WriteReport{Created: 2, Updated: 1}, report)

	data, err := os.ReadFile(filepath.Join(root, "existing.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	info, err := os.Stat(filepath.Join(root, "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	info, err = os.Stat(filepath.Join(root, "src", "pkg", "new.go"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestWriter_ProseRecoveredPayloadWritesRelative(t *testing.T) {
	w, root := newTestWriter(t)

	p, err := ParseProjectFromAnyText(`I made this for you: {"files":[{"path":"/a.txt","content":"hi"}]} cheers`)
	require.NoError(t, err)
	report, err := w.Write(context.Background(), p)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	data, err := os.ReadFile(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

// --- ERROR PATH TESTS ---

func TestWriter_DeniedPathWritesNothing(t *testing.T) {
	w, root := newTestWriter(t)

	_, err := w.Write(context.Background(), &GeneratedProject{Files: []File{
		{Path: "ok.txt", Content: "x"},
		{Path: ".git/config", Content: "y"},
	}})

	assert.ErrorIs(t, err, policy.ErrPathDenied)
	_, statErr := os.Stat(filepath.Join(root, "ok.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriter_EscapeRejected(t *testing.T) {
	w, _ := newTestWriter(t)

	_, err := w.Write(context.Background(), &GeneratedProject{Files: []File{{Path: "../outside.txt"}}})

	assert.ErrorIs(t, err, path.ErrOutsideWorkspace)
}

func TestWriter_InvalidProjects(t *testing.T) {
	w, _ := newTestWriter(t)

	_, err := w.Write(context.Background(), &GeneratedProject{})
	assert.ErrorIs(t, err, ErrNoPayload)

	_, err = w.Write(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoPayload)

	_, err = w.Write(context.Background(), &GeneratedProject{Files: []File{{Path: "///"}}})
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestWriter_DirectoryTarget(t *testing.T) {
	w, root := newTestWriter(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir"), 0o755))

	report, err := w.Write(context.Background(), &GeneratedProject{Files: []File{{Path: "dir", Content: "x"}}})

	assert.ErrorContains(t, err, "path is a directory")
	assert.Equal(t, WriteReport{}, report)
}

type mockCaller struct {
	calls    []map[string]any
	callFunc func(args map[string]any) tool.Result
}

func (m *mockCaller) Call(ctx context.Context, name string, args map[string]any) tool.Result {
	m.calls = append(m.calls, args)
	if name != string(tool.KindRunCommand) {
		return tool.Failuref("unexpected tool %s", name)
	}
	if m.callFunc != nil {
		return m.callFunc(args)
	}
	return tool.Success("", nil)
}

func TestRunHooks_RunsInOrder(t *testing.T) {
	mc := &mockCaller{}

	results := NewRunner(mc, nil).RunHooks(context.Background(), &GeneratedProject{PostInstall: "npm install", Start: "npm start"})

	require.Len(t, results, 2)
	assert.Equal(t, "postInstall", results[0].Name)
	assert.Equal(t, "start", results[1].Name)
	assert.Equal(t, []map[string]any{{"cmd": "npm install"}, {"cmd": "npm start"}}, mc.calls)
}

func TestRunHooks_SkipsEmptyAndStopsOnFailure(t *testing.T) {
	mc := &mockCaller{callFunc: func(args map[string]any) tool.Result {
		return tool.Failuref("exit 1")
	}}

	results := NewRunner(mc, nil).RunHooks(context.Background(), &GeneratedProject{PostInstall: "make deps", Start: "make run"})

	require.Len(t, results, 1)
	assert.False(t, results[0].Result.OK)

	none := NewRunner(&mockCaller{}, nil).RunHooks(context.Background(), &GeneratedProject{})
	assert.Empty(t, none)
}
