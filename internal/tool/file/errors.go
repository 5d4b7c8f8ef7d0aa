package file

import "errors"

var (
	ErrPathRequired  = errors.New("path is required")
	ErrBinaryFile    = errors.New("file is binary")
	ErrInvalidMax    = errors.New("max must not be negative")
	ErrNotADirectory = errors.New("not a directory")
)
