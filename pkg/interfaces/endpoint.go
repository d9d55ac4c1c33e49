package interfaces

import "lectern/pkg/types"

// Endpoint is a single connected real-time client, addressable for direct
// or room-scoped delivery.
type Endpoint interface {
	// ID returns the endpoint's connection identifier, unique per
	// connection (not per account; a relogin gets a fresh ID).
	ID() string

	// AccountID returns the authenticated account, or "" while the
	// endpoint is unauthenticated.
	AccountID() string

	// Send queues an event for delivery. Implementations must preserve
	// the order in which Send calls were issued (per-endpoint FIFO) and
	// must be safe for concurrent use.
	Send(ev types.Event) error

	// Close tears the endpoint down. Idempotent.
	Close() error
}
