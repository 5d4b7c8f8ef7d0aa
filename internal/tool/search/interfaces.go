package search

import (
	iofs "io/fs"
	"os"
)

type fileSystem interface {
	Stat(path string) (os.FileInfo, error)
	ReadFile(path string) ([]byte, error)
	Walk(root string, fn iofs.WalkDirFunc) error
}

type guard interface {
	Resolve(p string) (abs, rel string, err error)
	Allowed(rel string) bool
	Root() string
}

type ignoreMatcher interface {
	ShouldIgnore(rel string, isDir bool) bool
}
