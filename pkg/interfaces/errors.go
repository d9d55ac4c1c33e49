package interfaces

import "errors"

// Errors shared across component boundaries.
var (
	ErrNotFound     = errors.New("record not found")
	ErrUnauthorized = errors.New("unauthorized access")
)
