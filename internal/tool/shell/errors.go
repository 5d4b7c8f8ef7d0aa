package shell

import "errors"

var (
	ErrCommandRequired = errors.New("cmd is required")
	ErrInvalidTimeout  = errors.New("timeoutSec must not be negative")
)
