package types

import "fmt"

// roomKind discriminates the three broadcast-group address spaces.
type roomKind string

const (
	roomKindRole    roomKind = "role"
	roomKindCohort  roomKind = "cohort"
	roomKindSession roomKind = "session"
)

// Room is a typed broadcast-group identifier. Endpoints subscribe to rooms
// and events are emitted to rooms; the router never sees bare strings.
type Room struct {
	kind roomKind
	id   string
}

// RoleRoom addresses every connected endpoint of one role class
// (all teachers, all students).
func RoleRoom(role Role) Room {
	return Room{kind: roomKindRole, id: string(role)}
}

// CohortRoom addresses the connected members of one cohort.
func CohortRoom(cohortID string) Room {
	return Room{kind: roomKindCohort, id: cohortID}
}

// SessionRoom addresses the endpoints joined to one live session.
func SessionRoom(sessionID string) Room {
	return Room{kind: roomKindSession, id: sessionID}
}

// Key returns the unique map key for the room. Kind-prefixed so a cohort and
// a session sharing an identifier can never collide.
func (r Room) Key() string {
	return fmt.Sprintf("%s:%s", r.kind, r.id)
}

func (r Room) String() string {
	return r.Key()
}

// IsZero reports whether the room is the uninitialized zero value.
func (r Room) IsZero() bool {
	return r.kind == "" && r.id == ""
}
