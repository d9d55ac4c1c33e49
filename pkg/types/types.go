package types

import (
	"time"
)

// Role classifies an account. Roles arrive from the surrounding web layer's
// session context; the real-time core treats them as opaque beyond routing.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// SessionStatus is the lifecycle state of a live session.
// Transitions are one-way: active -> ended.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

// PresenceEntry records a logged-in user. At most one entry exists per
// account at a time; a second login overwrites the first.
type PresenceEntry struct {
	AccountID string    `json:"account_id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	LoginAt   time.Time `json:"login_at"`
}

// Participant is a roster entry of a live session, keyed by
// (session ID, account ID). Field names mirror the wire payloads of
// user_joined and session_info.
type Participant struct {
	AccountID string    `json:"user_id"`
	Name      string    `json:"user_name"`
	Role      Role      `json:"user_type"`
	JoinedAt  time.Time `json:"joined_at"`
}

// LiveSession is the in-memory record of a running (or ended) live session.
// Held only in process memory; lost on restart.
type LiveSession struct {
	ID           string        `json:"session_id"`
	LectureID    string        `json:"lecture_id"`
	HostID       string        `json:"host_id"`
	HostName     string        `json:"host_name"`
	LectureTitle string        `json:"lecture_title"`
	StartedAt    time.Time     `json:"started_at"`
	Status       SessionStatus `json:"status"`
	Recordings   []string      `json:"recordings"`
}

// Account is a durable identity record from the membership store.
type Account struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Lecture is a scheduled lecture. CohortID is set only for cohort lectures.
type Lecture struct {
	ID           string    `json:"id" db:"id"`
	TeacherID    string    `json:"teacher_id" db:"teacher_id"`
	Title        string    `json:"title" db:"title"`
	ScheduledAt  time.Time `json:"scheduled_at" db:"scheduled_at"`
	DurationMins int       `json:"duration_mins" db:"duration_mins"`
	CohortID     *string   `json:"cohort_id,omitempty" db:"cohort_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Material is an uploaded lecture material record. The payload itself is
// stored and compressed outside this system; only metadata lives here.
type Material struct {
	ID        string    `json:"id" db:"id"`
	LectureID string    `json:"lecture_id" db:"lecture_id"`
	Title     string    `json:"title" db:"title"`
	FileType  string    `json:"file_type" db:"file_type"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Cohort is a teacher-defined student group with a shared join code.
type Cohort struct {
	ID        string    `json:"id" db:"id"`
	TeacherID string    `json:"teacher_id" db:"teacher_id"`
	Name      string    `json:"name" db:"name"`
	Code      string    `json:"code" db:"code"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
