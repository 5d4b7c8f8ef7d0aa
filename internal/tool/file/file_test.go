package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Cyclone1070/aicoder/internal/config"
	"github.com/Cyclone1070/aicoder/internal/tool/policy"
	"github.com/Cyclone1070/aicoder/internal/tool/service/fs"
	"github.com/Cyclone1070/aicoder/internal/tool/service/git"
	"github.com/Cyclone1070/aicoder/internal/tool/service/path"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, mutate func(*config.Config)) (*Tools, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	src := config.NewStaticSource(cfg)
	osfs := fs.NewOSFileSystem(cfg.Tools.MaxFileSize)
	g := policy.NewGuard(path.NewResolver(dir), src)
	return New(osfs, g, git.NoOpMatcher{}, src, nil), dir
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

// --- HAPPY PATH TESTS ---

func TestReadFile(t *testing.T) {
	tools, dir := setup(t, nil)
	writeFile(t, dir, "src/main.go", "package main\n")

	res := tools.ReadFile(context.Background(), ReadFileArgs{Path: "./src/main.go"})

	require.True(t, res.OK, res.Error)
	assert.Equal(t, "package main\n", res.Output)
	assert.Equal(t, "src/main.go", res.Meta["path"])
}

func TestWriteFile_CreateAndOverwrite(t *testing.T) {
	tools, dir := setup(t, nil)

	res := tools.WriteFile(context.Background(), WriteFileArgs{Path: "a/b/c.txt", Content: "one\n", CreateDirs: true})
	require.True(t, res.OK, res.Error)
	assert.Equal(t, true, res.Meta["created"])
	assert.NotContains(t, res.Meta, "diff")

	res = tools.WriteFile(context.Background(), WriteFileArgs{Path: `a\b\c.txt`, Content: "two\n"})
	require.True(t, res.OK, res.Error)
	assert.Equal(t, false, res.Meta["created"])
	assert.Equal(t, 4, res.Meta["bytesWritten"])
	assert.Contains(t, res.Meta["diff"], "-one")
	assert.Contains(t, res.Meta["diff"], "+two")
	assert.Equal(t, 1, res.Meta["addedLines"])

	got, err := os.ReadFile(filepath.Join(dir, "a", "b", "c.txt"))
	require.NoError(t, err)
	assert.Equal(t, "two\n", string(got))
}

func TestApplyPatch_IsFullReplace(t *testing.T) {
	tools, dir := setup(t, nil)
	writeFile(t, dir, "x.txt", "line1\nline2\n")

	res := tools.ApplyPatch(context.Background(), ApplyPatchArgs{Path: "x.txt", NewContent: "replaced\n"})

	require.True(t, res.OK, res.Error)
	assert.Equal(t, "replace", res.Meta["mode"])
	got, _ := os.ReadFile(filepath.Join(dir, "x.txt"))
	assert.Equal(t, "replaced\n", string(got))
}

func TestApplyPatch_CreatesDirectories(t *testing.T) {
	tools, dir := setup(t, nil)

	res := tools.ApplyPatch(context.Background(), ApplyPatchArgs{Path: "new/dir/f.go", NewContent: "package dir\n"})

	require.True(t, res.OK, res.Error)
	assert.FileExists(t, filepath.Join(dir, "new", "dir", "f.go"))
}

func TestDeletePath_Recursive(t *testing.T) {
	tools, dir := setup(t, nil)
	writeFile(t, dir, "tmp/a/b.txt", "x")

	res := tools.DeletePath(context.Background(), DeletePathArgs{Path: "tmp"})

	require.True(t, res.OK, res.Error)
	assert.NoDirExists(t, filepath.Join(dir, "tmp"))
}

func TestDeletePath_SymlinkRemovesLinkOnly(t *testing.T) {
	tools, dir := setup(t, nil)
	writeFile(t, dir, "real/keep.txt", "x")
	require.NoError(t, os.Symlink(filepath.Join(dir, "real"), filepath.Join(dir, "alias")))

	res := tools.DeletePath(context.Background(), DeletePathArgs{Path: "alias"})

	require.True(t, res.OK, res.Error)
	assert.Equal(t, "alias", res.Meta["path"])
	assert.FileExists(t, filepath.Join(dir, "real", "keep.txt"))
	_, err := os.Lstat(filepath.Join(dir, "alias"))
	assert.True(t, os.IsNotExist(err))
}

func TestListFiles(t *testing.T) {
	tools, dir := setup(t, nil)
	writeFile(t, dir, "b.txt", "")
	writeFile(t, dir, "a/z.txt", "")
	writeFile(t, dir, "a/y.txt", "")
	writeFile(t, dir, ".git/HEAD", "")
	writeFile(t, dir, "node_modules/x/index.js", "")

	res := tools.ListFiles(context.Background(), ListFilesArgs{})

	require.True(t, res.OK, res.Error)
	assert.Equal(t, []string{"a/y.txt", "a/z.txt", "b.txt"}, res.Meta["files"].([]string)[:3])
	assert.NotContains(t, res.Meta["files"], ".git/HEAD")
}

func TestListFiles_UnderAndSilentTruncation(t *testing.T) {
	tools, dir := setup(t, nil)
	for _, n := range []string{"1", "2", "3", "4"} {
		writeFile(t, dir, "pkg/f"+n+".go", "")
	}

	res := tools.ListFiles(context.Background(), ListFilesArgs{Under: "pkg", Max: 2})

	require.True(t, res.OK, res.Error)
	assert.Equal(t, []string{"pkg/f1.go", "pkg/f2.go"}, res.Meta["files"])
	assert.Equal(t, "pkg/f1.go\npkg/f2.go", res.Output)
	assert.NotContains(t, res.Meta, "truncated")
}

func TestListFiles_IgnoreMatcher(t *testing.T) {
	tools, dir := setup(t, nil)
	writeFile(t, dir, ".gitignore", "*.log\n")
	writeFile(t, dir, "app.log", "")
	writeFile(t, dir, "main.go", "")
	m, err := git.NewIgnoreMatcher(dir, fs.NewOSFileSystem(0))
	require.NoError(t, err)
	tools.ignore = m

	res := tools.ListFiles(context.Background(), ListFilesArgs{})

	require.True(t, res.OK, res.Error)
	assert.Equal(t, []string{".gitignore", "main.go"}, res.Meta["files"])
}

// --- POLICY AND ERROR TESTS ---

func TestWriteFile_DeniedBeforeIO(t *testing.T) {
	tools, dir := setup(t, func(c *config.Config) { c.Tools.DeniedPaths = []string{"locked"} })

	res := tools.WriteFile(context.Background(), WriteFileArgs{Path: "locked/sub/a.txt", Content: "x", CreateDirs: true})

	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "path denied by policy")
	assert.NoDirExists(t, filepath.Join(dir, "locked"))
}

func TestWriteFile_AllowList(t *testing.T) {
	tools, _ := setup(t, func(c *config.Config) { c.Tools.AllowedPaths = []string{"src"} })

	assert.False(t, tools.WriteFile(context.Background(), WriteFileArgs{Path: "docs/a.md", Content: "x", CreateDirs: true}).OK)
	assert.True(t, tools.WriteFile(context.Background(), WriteFileArgs{Path: "src/a.go", Content: "x", CreateDirs: true}).OK)
}

func TestWriteFile_MissingParentWithoutCreateDirs(t *testing.T) {
	tools, _ := setup(t, nil)

	res := tools.WriteFile(context.Background(), WriteFileArgs{Path: "missing/a.txt", Content: "x"})

	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Error)
}

func TestDeletePath_Failures(t *testing.T) {
	tools, _ := setup(t, nil)

	assert.False(t, tools.DeletePath(context.Background(), DeletePathArgs{Path: ".git"}).OK)
	assert.False(t, tools.DeletePath(context.Background(), DeletePathArgs{Path: "."}).OK)

	res := tools.DeletePath(context.Background(), DeletePathArgs{Path: "nothing-here"})
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "does not exist")
}

func TestWriteFile_SymlinkEscapingWorkspace(t *testing.T) {
	tools, dir := setup(t, nil)
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "link")))

	res := tools.WriteFile(context.Background(), WriteFileArgs{Path: "link/pwned.txt", Content: "x"})

	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "outside workspace")
	assert.NoFileExists(t, filepath.Join(outside, "pwned.txt"))
}

func TestWriteFile_SymlinkIntoDeniedDirectory(t *testing.T) {
	tools, dir := setup(t, nil)
	writeFile(t, dir, ".git/config", "[core]\n")
	require.NoError(t, os.Symlink(filepath.Join(dir, ".git"), filepath.Join(dir, "g")))

	res := tools.WriteFile(context.Background(), WriteFileArgs{Path: "g/config", Content: "pwned"})

	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "path denied by policy")
	got, err := os.ReadFile(filepath.Join(dir, ".git", "config"))
	require.NoError(t, err)
	assert.Equal(t, "[core]\n", string(got))
}

func TestReadFile_Failures(t *testing.T) {
	tools, dir := setup(t, nil)
	writeFile(t, dir, "bin.dat", "a\x00b")

	assert.Contains(t, tools.ReadFile(context.Background(), ReadFileArgs{Path: "bin.dat"}).Error, "binary")
	assert.Contains(t, tools.ReadFile(context.Background(), ReadFileArgs{Path: "../etc/passwd"}).Error, "outside workspace")
	assert.False(t, tools.ReadFile(context.Background(), ReadFileArgs{Path: "missing.txt"}).OK)
}

func TestReadFile_NoWorkspace(t *testing.T) {
	src := config.NewStaticSource(nil)
	tools := New(fs.NewOSFileSystem(0), policy.NewGuard(path.NewResolver(""), src), nil, src, nil)

	res := tools.ReadFile(context.Background(), ReadFileArgs{Path: "a.txt"})

	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "no workspace root")
	assert.False(t, tools.ListFiles(context.Background(), ListFilesArgs{}).OK)
}
