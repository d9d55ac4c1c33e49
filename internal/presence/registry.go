package presence

import (
	"sync"
	"time"

	"lectern/pkg/types"
)

// presenceRecord pairs the public entry with the endpoint that owns it, so
// a stale endpoint's teardown cannot log out a relogged-in account.
type presenceRecord struct {
	entry      types.PresenceEntry
	endpointID string
}

// Registry is the process-wide map of logged-in users. It owns its own
// locking; callers never see the raw container.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]presenceRecord // accountID -> record
}

// NewRegistry creates an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]presenceRecord),
	}
}

// RecordLogin adds or overwrites the entry for an account. A second login
// replaces the first, including the owning endpoint; multi-device presence
// is not modeled.
func (r *Registry) RecordLogin(accountID, name string, role types.Role, endpointID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[accountID] = presenceRecord{
		entry: types.PresenceEntry{
			AccountID: accountID,
			Name:      name,
			Role:      role,
			LoginAt:   time.Now(),
		},
		endpointID: endpointID,
	}
}

// RecordLogout removes the entry for an account, but only when the given
// endpoint still owns it. A logout from an endpoint that has been replaced
// by a newer login is a no-op, as is a logout for an absent account.
func (r *Registry) RecordLogout(accountID, endpointID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.entries[accountID]
	if !ok || record.endpointID != endpointID {
		return
	}
	delete(r.entries, accountID)
}

// Count returns the number of currently-present users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// Get returns the presence entry for an account, if present.
func (r *Registry) Get(accountID string) (types.PresenceEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.entries[accountID]
	return record.entry, ok
}

// Snapshot returns a consistent copy of all entries for the health surface.
func (r *Registry) Snapshot() []types.PresenceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]types.PresenceEntry, 0, len(r.entries))
	for _, record := range r.entries {
		entries = append(entries, record.entry)
	}
	return entries
}
