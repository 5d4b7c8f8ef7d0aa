package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Cyclone1070/aicoder/internal/config"
	"github.com/Cyclone1070/aicoder/internal/tool/service/path"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_Resolve(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Tools.DeniedPaths = []string{".git", "secrets"}
	g := NewGuard(path.NewResolver("/ws"), config.NewStaticSource(cfg))

	abs, rel, err := g.Resolve(`./src\main.go`)
	require.NoError(t, err)
	assert.Equal(t, "/ws/src/main.go", abs)
	assert.Equal(t, "src/main.go", rel)

	_, _, err = g.Resolve("/ws/secrets/key")
	assert.ErrorIs(t, err, ErrPathDenied)

	_, _, err = g.Resolve("../outside.txt")
	assert.ErrorIs(t, err, path.ErrOutsideWorkspace)

	assert.True(t, g.Allowed("docs/a.md"))
	assert.False(t, g.Allowed(".git/HEAD"))
	assert.Equal(t, "/ws", g.Root())

	pp, err := g.Policy()
	require.NoError(t, err)
	assert.Equal(t, []string{".git", "secrets"}, pp.Denied)
}

func TestGuard_NoWorkspace(t *testing.T) {
	g := NewGuard(path.NewResolver(""), config.NewStaticSource(nil))

	_, _, err := g.Resolve("a.txt")

	assert.ErrorIs(t, err, path.ErrWorkspaceRootNotSet)
}

func TestGuard_SymlinkIntoDeniedPath(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(root, ".git"), filepath.Join(root, "g")))
	cfg := config.DefaultConfig()
	cfg.Tools.DeniedPaths = []string{".git"}
	g := NewGuard(path.NewResolver(root), config.NewStaticSource(cfg))

	_, _, err = g.Resolve("g/config")

	assert.ErrorIs(t, err, ErrPathDenied)
}

func TestGuard_SymlinkOutsideWorkspace(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "link")))
	g := NewGuard(path.NewResolver(root), config.NewStaticSource(config.DefaultConfig()))

	_, _, err = g.Resolve("link/pwned.txt")

	assert.ErrorIs(t, err, path.ErrOutsideWorkspace)
}

func TestGuard_DeniedSymlinkName(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(root, "docs"), filepath.Join(root, "secrets")))
	cfg := config.DefaultConfig()
	cfg.Tools.DeniedPaths = []string{"secrets"}
	g := NewGuard(path.NewResolver(root), config.NewStaticSource(cfg))

	_, _, err = g.Resolve("secrets/a.md")

	assert.ErrorIs(t, err, ErrPathDenied)
}
