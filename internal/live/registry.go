package live

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"lectern/pkg/interfaces"
	"lectern/pkg/types"
)

// participantEntry pairs the serializable roster view with the channel
// endpoint that joined it.
type participantEntry struct {
	participant types.Participant
	endpoint    interfaces.Endpoint
	seq         uint64
}

// sessionEntry holds one live session and its roster behind a dedicated
// lock, so mutations on unrelated sessions never contend.
type sessionEntry struct {
	mu      sync.Mutex
	session types.LiveSession
	roster  map[string]*participantEntry // accountID -> entry
	nextSeq uint64
}

// Registry is the process-wide map of live sessions. Sessions are created
// by a host action, mutated by join/leave events, and kept resolvable after
// they end for historical queries. State is memory-only and lost on restart.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

// NewRegistry creates an empty live session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*sessionEntry),
	}
}

// Create registers a new active session and returns its identifier. The ID
// embeds the lecture reference for traceability plus a 16-hex-char
// cryptographically random suffix, which makes casual enumeration and
// collisions equally unlikely. Ownership of the lecture is a caller-side
// precondition; the registry does not consult the store.
func (r *Registry) Create(lectureID, hostID, hostName, lectureTitle string) (string, error) {
	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("generating session ID: %w", err)
	}
	sessionID := fmt.Sprintf("%s-%s", lectureID, hex.EncodeToString(suffix))

	entry := &sessionEntry{
		session: types.LiveSession{
			ID:           sessionID,
			LectureID:    lectureID,
			HostID:       hostID,
			HostName:     hostName,
			LectureTitle: lectureTitle,
			StartedAt:    time.Now(),
			Status:       types.SessionActive,
			Recordings:   []string{},
		},
		roster: make(map[string]*participantEntry),
	}

	r.mu.Lock()
	r.sessions[sessionID] = entry
	r.mu.Unlock()

	return sessionID, nil
}

// Get returns a consistent copy of the session record, or ErrSessionNotFound.
// Ended sessions remain resolvable.
func (r *Registry) Get(sessionID string) (*types.LiveSession, error) {
	entry, ok := r.lookup(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	session := entry.session
	session.Recordings = append([]string(nil), entry.session.Recordings...)
	return &session, nil
}

// SetStatus updates the session status. Silent if the ID is absent; callers
// that care must check existence via Get first.
func (r *Registry) SetStatus(sessionID string, status types.SessionStatus) {
	entry, ok := r.lookup(sessionID)
	if !ok {
		return
	}

	entry.mu.Lock()
	entry.session.Status = status
	entry.mu.Unlock()
}

// End transitions a session to ended, atomically with the already-ended
// check. Returns ErrSessionNotFound for unknown IDs and ErrSessionEnded when
// the transition already happened.
func (r *Registry) End(sessionID string) error {
	entry, ok := r.lookup(sessionID)
	if !ok {
		return ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.session.Status == types.SessionEnded {
		return ErrSessionEnded
	}
	entry.session.Status = types.SessionEnded
	return nil
}

// AddParticipant attaches an account to the session roster and returns the
// resulting roster size. A rejoin for the same account wins over the prior
// entry: the join timestamp and endpoint reference are refreshed and the
// participant moves to the end of the join order. Session status is not
// checked here; the protocol handler decides whether ended sessions accept
// joins.
func (r *Registry) AddParticipant(sessionID, accountID string, role types.Role, name string, endpoint interfaces.Endpoint) (int, error) {
	entry, ok := r.lookup(sessionID)
	if !ok {
		return 0, ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.nextSeq++
	entry.roster[accountID] = &participantEntry{
		participant: types.Participant{
			AccountID: accountID,
			Name:      name,
			Role:      role,
			JoinedAt:  time.Now(),
		},
		endpoint: endpoint,
		seq:      entry.nextSeq,
	}

	return len(entry.roster), nil
}

// RemoveParticipant detaches an account from the roster. No-op if the
// session or the participant is absent; removing the last participant never
// deletes the session itself.
func (r *Registry) RemoveParticipant(sessionID, accountID string) {
	entry, ok := r.lookup(sessionID)
	if !ok {
		return
	}

	entry.mu.Lock()
	delete(entry.roster, accountID)
	entry.mu.Unlock()
}

// RemoveParticipantIf detaches an account only when the given endpoint still
// owns its roster entry, and reports whether a removal happened. After a
// rejoin on a fresh endpoint, the old endpoint's teardown no longer owns the
// entry and must leave it alone.
func (r *Registry) RemoveParticipantIf(sessionID, accountID, endpointID string) bool {
	entry, ok := r.lookup(sessionID)
	if !ok {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	pe, ok := entry.roster[accountID]
	if !ok || pe.endpoint == nil || pe.endpoint.ID() != endpointID {
		return false
	}
	delete(entry.roster, accountID)
	return true
}

// ListParticipants returns the roster ordered by join time, as a consistent
// snapshot taken under the session lock.
func (r *Registry) ListParticipants(sessionID string) ([]types.Participant, error) {
	entry, ok := r.lookup(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	entry.mu.Lock()
	entries := make([]*participantEntry, 0, len(entry.roster))
	for _, pe := range entry.roster {
		entries = append(entries, pe)
	}
	entry.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})

	participants := make([]types.Participant, len(entries))
	for i, pe := range entries {
		participants[i] = pe.participant
	}
	return participants, nil
}

// RosterSize returns the current roster size, or 0 for unknown sessions.
func (r *Registry) RosterSize(sessionID string) int {
	entry, ok := r.lookup(sessionID)
	if !ok {
		return 0
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return len(entry.roster)
}

// AddRecording appends a recording reference to the session.
func (r *Registry) AddRecording(sessionID, recordingRef string) error {
	entry, ok := r.lookup(sessionID)
	if !ok {
		return ErrSessionNotFound
	}

	entry.mu.Lock()
	entry.session.Recordings = append(entry.session.Recordings, recordingRef)
	entry.mu.Unlock()
	return nil
}

// ActiveCount returns the number of sessions currently in the active state,
// for the health surface.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	entries := make([]*sessionEntry, 0, len(r.sessions))
	for _, entry := range r.sessions {
		entries = append(entries, entry)
	}
	r.mu.RUnlock()

	count := 0
	for _, entry := range entries {
		entry.mu.Lock()
		if entry.session.Status == types.SessionActive {
			count++
		}
		entry.mu.Unlock()
	}
	return count
}

func (r *Registry) lookup(sessionID string) (*sessionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.sessions[sessionID]
	return entry, ok
}
