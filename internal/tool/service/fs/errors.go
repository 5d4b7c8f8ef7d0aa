package fs

import (
	"errors"
	"fmt"
)

// OpError records a failed step of a filesystem operation.
type OpError struct {
	Op    string // "create temp", "write temp", "sync temp", "close temp", "rename", "chmod"
	Path  string
	Cause error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Cause)
}
func (e *OpError) Unwrap() error { return e.Cause }

var (
	ErrFileTooLarge = errors.New("file exceeds size limit")
	ErrIsDirectory  = errors.New("path is a directory")
	ErrNotFound     = errors.New("path does not exist")
)
