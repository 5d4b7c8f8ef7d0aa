package tool

import "errors"

var (
	ErrUnknownTool           = errors.New("unknown tool")
	ErrToolAlreadyRegistered = errors.New("tool already registered")
	ErrNilTool               = errors.New("tool is nil")
)
