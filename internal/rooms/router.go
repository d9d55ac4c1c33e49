package rooms

import (
	"log/slog"
	"sync"

	"lectern/pkg/interfaces"
	"lectern/pkg/types"
)

// Router maintains room membership and fans events out to subscribed
// endpoints. Membership uses set semantics: a duplicate subscribe is a
// no-op and a single unsubscribe fully removes the endpoint.
//
// Delivery to one endpoint preserves the order in which broadcasts naming
// it were issued, because Send enqueues on the endpoint's single-writer
// queue while the membership lock is held. Delivery order across different
// endpoints is unspecified.
type Router struct {
	mu          sync.RWMutex
	rooms       map[string]map[string]interfaces.Endpoint // room key -> endpoint ID -> endpoint
	memberships map[string]map[string]struct{}            // endpoint ID -> room keys
}

// NewRouter creates an empty room router.
func NewRouter() *Router {
	return &Router{
		rooms:       make(map[string]map[string]interfaces.Endpoint),
		memberships: make(map[string]map[string]struct{}),
	}
}

// Subscribe adds an endpoint to a room. Idempotent.
func (r *Router) Subscribe(room types.Room, endpoint interfaces.Endpoint) {
	if endpoint == nil || room.IsZero() {
		return
	}
	key := room.Key()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[key] == nil {
		r.rooms[key] = make(map[string]interfaces.Endpoint)
	}
	r.rooms[key][endpoint.ID()] = endpoint

	if r.memberships[endpoint.ID()] == nil {
		r.memberships[endpoint.ID()] = make(map[string]struct{})
	}
	r.memberships[endpoint.ID()][key] = struct{}{}
}

// Unsubscribe removes an endpoint from a room. Idempotent.
func (r *Router) Unsubscribe(room types.Room, endpoint interfaces.Endpoint) {
	if endpoint == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(room.Key(), endpoint.ID())
}

// UnsubscribeAll removes an endpoint from every room it belongs to, in one
// atomic step. Called on disconnect, where the caller cannot know which
// rooms the endpoint had joined.
func (r *Router) UnsubscribeAll(endpoint interfaces.Endpoint) {
	if endpoint == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.memberships[endpoint.ID()] {
		r.removeLocked(key, endpoint.ID())
	}
}

// Broadcast delivers an event to every endpoint subscribed to the room,
// except the excluded endpoint IDs. Delivery to a stale endpoint is logged
// and swallowed; a broadcast never fails because one recipient is gone.
func (r *Router) Broadcast(room types.Room, ev types.Event, exclude ...string) {
	excluded := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, endpoint := range r.rooms[room.Key()] {
		if _, skip := excluded[id]; skip {
			continue
		}
		if err := endpoint.Send(ev); err != nil {
			slog.Warn("rooms: dropped event for endpoint",
				"room", room.String(), "event", ev.EventName(), "endpoint", id, "error", err)
		}
	}
}

// SendTo delivers an event directly to one endpoint.
func (r *Router) SendTo(endpoint interfaces.Endpoint, ev types.Event) {
	if endpoint == nil {
		return
	}
	if err := endpoint.Send(ev); err != nil {
		slog.Warn("rooms: dropped direct event",
			"event", ev.EventName(), "endpoint", endpoint.ID(), "error", err)
	}
}

// RoomSize returns the current number of endpoints subscribed to a room.
func (r *Router) RoomSize(room types.Room) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms[room.Key()])
}

// removeLocked deletes one membership edge and prunes emptied containers.
// Caller holds r.mu.
func (r *Router) removeLocked(roomKey, endpointID string) {
	if members, ok := r.rooms[roomKey]; ok {
		delete(members, endpointID)
		if len(members) == 0 {
			delete(r.rooms, roomKey)
		}
	}
	if keys, ok := r.memberships[endpointID]; ok {
		delete(keys, roomKey)
		if len(keys) == 0 {
			delete(r.memberships, endpointID)
		}
	}
}
