package realtime

import "errors"

// Connection errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrWriteBufferFull  = errors.New("write buffer full")
	ErrInvalidJSON      = errors.New("invalid JSON data")
)

// Channel-level error messages delivered to clients as error events.
const (
	msgAuthRequired    = "authentication required"
	msgSessionNotFound = "session not found"
	msgSessionEnded    = "session has ended"
	msgUnknownEvent    = "unknown event"
	msgBadPayload      = "malformed event payload"
)
