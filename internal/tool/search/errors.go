package search

import "errors"

var (
	ErrQueryRequired     = errors.New("query is required")
	ErrInvalidMaxResults = errors.New("maxResults must not be negative")
)
