package config

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockFileSystem implements FileSystem for testing.
type MockFileSystem struct {
	HomeDir     string
	HomeDirErr  error
	Files       map[string][]byte
	ReadFileErr error
	Reads       int
}

func (m *MockFileSystem) UserHomeDir() (string, error) {
	return m.HomeDir, m.HomeDirErr
}

func (m *MockFileSystem) ReadFile(path string) ([]byte, error) {
	m.Reads++
	if m.ReadFileErr != nil {
		return nil, m.ReadFileErr
	}
	data, ok := m.Files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return data, nil
}

// --- HAPPY PATH TESTS ---

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	fs := &MockFileSystem{
		HomeDir: "/home/user",
		Files:   map[string][]byte{},
	}
	loader := NewLoaderWithFS(fs)

	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.Context.MaxTokens)
	assert.Equal(t, 300, cfg.Tools.CommandTimeoutSec)
	assert.Equal(t, 6, cfg.Workflow.MaxIters)
	assert.Equal(t, []string{".git"}, cfg.Tools.DeniedPaths)
	assert.Empty(t, cfg.Tools.AllowedPaths)
}

func TestLoad_PartialOverride_MergesWithDefaults(t *testing.T) {
	configJSON := `{"tools": {"commandTimeoutSec": 30, "allowedPaths": ["src"]}}`
	fs := &MockFileSystem{
		HomeDir: "/home/user",
		Files: map[string][]byte{
			"/home/user/.config/aicoder/config.json": []byte(configJSON),
		},
	}

	cfg, err := NewLoaderWithFS(fs).Load()

	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Tools.CommandTimeoutSec)
	assert.Equal(t, []string{"src"}, cfg.Tools.AllowedPaths)
	assert.Equal(t, []string{".git"}, cfg.Tools.DeniedPaths)
	assert.Equal(t, 500, cfg.Tools.ListFilesMax)
	assert.Equal(t, "gemini", cfg.Provider.Type)
}

func TestLoad_YAMLFallback(t *testing.T) {
	configYAML := "workflow:\n  maxIters: 9\nprovider:\n  type: ollama\n"
	fs := &MockFileSystem{
		HomeDir: "/home/user",
		Files: map[string][]byte{
			"/home/user/.config/aicoder/config.yaml": []byte(configYAML),
		},
	}

	cfg, err := NewLoaderWithFS(fs).Load()

	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Workflow.MaxIters)
	assert.Equal(t, "ollama", cfg.Provider.Type)
}

func TestLoad_JSONWinsOverYAML(t *testing.T) {
	fs := &MockFileSystem{
		HomeDir: "/home/user",
		Files: map[string][]byte{
			"/home/user/.config/aicoder/config.json": []byte(`{"workflow": {"maxIters": 3}}`),
			"/home/user/.config/aicoder/config.yaml": []byte("workflow:\n  maxIters: 9\n"),
		},
	}

	cfg, err := NewLoaderWithFS(fs).Load()

	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workflow.MaxIters)
}

func TestLoad_WorkspaceOverride(t *testing.T) {
	fs := &MockFileSystem{
		HomeDir: "/home/user",
		Files: map[string][]byte{
			"/home/user/.config/aicoder/config.json": []byte(`{"tools": {"commandTimeoutSec": 30}}`),
			"/work/.aicoder.yaml":                    []byte("tools:\n  deniedPaths: [secrets, .git]\n"),
		},
	}

	cfg, err := NewLoaderWithFS(fs).WithWorkspace("/work").Load()

	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Tools.CommandTimeoutSec)
	assert.Equal(t, []string{"secrets", ".git"}, cfg.Tools.DeniedPaths)
}

func TestLoad_ExplicitPath(t *testing.T) {
	fs := &MockFileSystem{
		HomeDir: "/home/user",
		Files: map[string][]byte{
			"/etc/aicoder.json": []byte(`{"context": {"maxTokens": 8192}}`),
		},
	}

	cfg, err := NewLoaderWithFS(fs).WithPath("/etc/aicoder.json").Load()

	require.NoError(t, err)
	assert.Equal(t, 8192, cfg.Context.MaxTokens)
}

func TestLoad_HomeDirError_ReturnsDefaults(t *testing.T) {
	fs := &MockFileSystem{HomeDirErr: errors.New("no home")}

	cfg, err := NewLoaderWithFS(fs).Load()

	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

// --- ERROR TESTS ---

func TestLoad_ExplicitPathMissing_ReturnsError(t *testing.T) {
	fs := &MockFileSystem{HomeDir: "/home/user", Files: map[string][]byte{}}

	_, err := NewLoaderWithFS(fs).WithPath("/nope.json").Load()

	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestLoad_MalformedJSON_ReturnsError(t *testing.T) {
	fs := &MockFileSystem{
		HomeDir: "/home/user",
		Files: map[string][]byte{
			"/home/user/.config/aicoder/config.json": []byte(`{"tools": `),
		},
	}

	_, err := NewLoaderWithFS(fs).Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "config.json")
}

func TestLoad_PermissionError_ReturnsError(t *testing.T) {
	fs := &MockFileSystem{HomeDir: "/home/user", ReadFileErr: os.ErrPermission}

	_, err := NewLoaderWithFS(fs).Load()

	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestLoad_InvalidValues_FailValidation(t *testing.T) {
	fs := &MockFileSystem{
		HomeDir: "/home/user",
		Files: map[string][]byte{
			"/home/user/.config/aicoder/config.json": []byte(`{"workflow": {"maxIters": 0}}`),
		},
	}

	_, err := NewLoaderWithFS(fs).Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "workflow.maxIters")
}

// --- SOURCE TESTS ---

func TestFileSource_ReadsFreshEveryCall(t *testing.T) {
	fs := &MockFileSystem{
		HomeDir: "/home/user",
		Files: map[string][]byte{
			"/home/user/.config/aicoder/config.json": []byte(`{"tools": {"deniedPaths": ["a"]}}`),
		},
	}
	src := NewFileSource(NewLoaderWithFS(fs))

	first, err := src.Current()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, first.Tools.DeniedPaths)

	fs.Files["/home/user/.config/aicoder/config.json"] = []byte(`{"tools": {"deniedPaths": ["b"]}}`)

	second, err := src.Current()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, second.Tools.DeniedPaths)
}

func TestStaticSource_NilUsesDefaults(t *testing.T) {
	cfg, err := NewStaticSource(nil).Current()

	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
