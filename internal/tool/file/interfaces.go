package file

import (
	iofs "io/fs"
	"os"
)

type fileSystem interface {
	Stat(path string) (os.FileInfo, error)
	ReadFile(path string) ([]byte, error)
	WriteFileAtomic(path string, content []byte, perm os.FileMode) error
	EnsureDirs(path string) error
	RemoveAll(path string) error
	Walk(root string, fn iofs.WalkDirFunc) error
}

type guard interface {
	Resolve(p string) (abs, rel string, err error)
	ResolveEntry(p string) (abs, rel string, err error)
	Allowed(rel string) bool
	Root() string
}

type ignoreMatcher interface {
	ShouldIgnore(rel string, isDir bool) bool
}
