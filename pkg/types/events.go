package types

import "time"

// Outbound event names, one per entry in the real-time event catalogue.
const (
	EventConnected          = "connected"
	EventError              = "error"
	EventUserJoined         = "user_joined"
	EventUserLeft           = "user_left"
	EventSessionInfo        = "session_info"
	EventNewLecture         = "new_lecture"
	EventNewMaterial        = "new_material"
	EventLiveSessionStarted = "live_session_started"
)

// Inbound event names received on the channel.
const (
	EventJoinSession = "join_session"
)

// Event is an outbound real-time event payload. Payloads stay structured
// inside the process and are serialized only at the channel boundary.
type Event interface {
	EventName() string
}

// ConnectedEvent acknowledges a successful authenticated connect.
type ConnectedEvent struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

func (ConnectedEvent) EventName() string { return EventConnected }

// ErrorEvent reports a channel-level failure to the caller. The channel
// itself stays open; errors never force a disconnect.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (ErrorEvent) EventName() string { return EventError }

// UserJoinedEvent notifies a session room that a participant joined.
type UserJoinedEvent struct {
	UserID            string `json:"user_id"`
	UserName          string `json:"user_name"`
	UserType          Role   `json:"user_type"`
	ParticipantsCount int    `json:"participants_count"`
}

func (UserJoinedEvent) EventName() string { return EventUserJoined }

// UserLeftEvent notifies a session room that a participant left or
// disconnected.
type UserLeftEvent struct {
	UserID            string `json:"user_id"`
	UserName          string `json:"user_name"`
	UserType          Role   `json:"user_type"`
	ParticipantsCount int    `json:"participants_count"`
}

func (UserLeftEvent) EventName() string { return EventUserLeft }

// SessionInfoEvent is the authoritative roster snapshot sent to a joiner
// after the room has been told about the join.
type SessionInfoEvent struct {
	SessionID         string        `json:"session_id"`
	Participants      []Participant `json:"participants"`
	ParticipantsCount int           `json:"participants_count"`
}

func (SessionInfoEvent) EventName() string { return EventSessionInfo }

// NewLectureEvent announces a freshly scheduled lecture to the students
// room, or to a cohort room for cohort lectures.
type NewLectureEvent struct {
	LectureID     string    `json:"lecture_id"`
	Title         string    `json:"title"`
	TeacherName   string    `json:"teacher_name"`
	ScheduledTime time.Time `json:"scheduled_time"`
	CohortID      string    `json:"cohort_id,omitempty"`
}

func (NewLectureEvent) EventName() string { return EventNewLecture }

// NewMaterialEvent announces uploaded lecture material.
type NewMaterialEvent struct {
	LectureID   string `json:"lecture_id"`
	MaterialID  string `json:"material_id"`
	Title       string `json:"title"`
	FileType    string `json:"file_type"`
	TeacherName string `json:"teacher_name"`
}

func (NewMaterialEvent) EventName() string { return EventNewMaterial }

// LiveSessionStartedEvent announces that a host started a live session.
type LiveSessionStartedEvent struct {
	SessionID    string `json:"session_id"`
	LectureID    string `json:"lecture_id"`
	LectureTitle string `json:"lecture_title"`
	TeacherName  string `json:"teacher_name"`
	JoinURL      string `json:"join_url"`
}

func (LiveSessionStartedEvent) EventName() string { return EventLiveSessionStarted }
