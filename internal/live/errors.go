package live

import "errors"

var (
	ErrSessionNotFound = errors.New("live session not found")
	ErrSessionEnded    = errors.New("live session has ended")
)
