package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	pkgerrors "github.com/pkg/errors"

	"lectern/internal/live"
	"lectern/pkg/types"
)

type startLiveSessionRequest struct {
	TeacherID string `json:"teacher_id" validate:"required,max=50"`
}

type endLiveSessionRequest struct {
	TeacherID string `json:"teacher_id" validate:"required,max=50"`
}

type addRecordingRequest struct {
	TeacherID    string `json:"teacher_id" validate:"required,max=50"`
	RecordingRef string `json:"recording_ref" validate:"required,max=500"`
}

type liveSessionResponse struct {
	Session      *types.LiveSession  `json:"session"`
	Participants []types.Participant `json:"participants"`
}

// startLiveSession creates a live session for a lecture, host-only. The
// ownership check runs against the store before the in-memory registry is
// touched; the announcement afterwards is fire-and-forget.
func (s *Server) startLiveSession(c echo.Context) error {
	var req startLiveSessionRequest
	if ok, err := s.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx := c.Request().Context()
	lecture, err := s.store.GetLectureByID(ctx, c.Param("id"))
	if err != nil {
		return s.failFromStore(c, err, "lecture not found")
	}
	if lecture.TeacherID != req.TeacherID {
		return s.fail(c, http.StatusForbidden, "only the lecture's teacher can start a live session")
	}
	teacher, err := s.store.GetAccountByID(ctx, req.TeacherID)
	if err != nil {
		return s.failFromStore(c, err, "teacher not found")
	}

	sessionID, err := s.live.Create(lecture.ID, teacher.ID, teacher.Name, lecture.Title)
	if err != nil {
		return s.failFromStore(c, pkgerrors.Wrap(err, "creating live session"), "")
	}

	room := types.RoleRoom(types.RoleStudent)
	if lecture.CohortID != nil {
		room = types.CohortRoom(*lecture.CohortID)
	}
	s.rooms.Broadcast(room, types.LiveSessionStartedEvent{
		SessionID:    sessionID,
		LectureID:    lecture.ID,
		LectureTitle: lecture.Title,
		TeacherName:  teacher.Name,
		JoinURL:      fmt.Sprintf("/live/%s", sessionID),
	})

	session, err := s.live.Get(sessionID)
	if err != nil {
		return s.failFromStore(c, pkgerrors.Wrap(err, "reading back live session"), "")
	}
	return s.ok(c, http.StatusCreated, "live session started", session)
}

// getLiveSession resolves a session record with its roster. Ended sessions
// stay resolvable for historical queries.
func (s *Server) getLiveSession(c echo.Context) error {
	sessionID := c.Param("id")

	session, err := s.live.Get(sessionID)
	if err != nil {
		return s.fail(c, http.StatusNotFound, "live session not found")
	}
	participants, err := s.live.ListParticipants(sessionID)
	if err != nil {
		participants = nil
	}

	return s.ok(c, http.StatusOK, "live session", liveSessionResponse{
		Session:      session,
		Participants: participants,
	})
}

// endLiveSession transitions a session to ended, host-only. Participants
// still attached are not evicted; the session simply rejects new joins.
func (s *Server) endLiveSession(c echo.Context) error {
	var req endLiveSessionRequest
	if ok, err := s.bindAndValidate(c, &req); !ok {
		return err
	}

	sessionID := c.Param("id")
	session, err := s.live.Get(sessionID)
	if err != nil {
		return s.fail(c, http.StatusNotFound, "live session not found")
	}
	if session.HostID != req.TeacherID {
		return s.fail(c, http.StatusForbidden, "only the host can end the session")
	}

	switch err := s.live.End(sessionID); err {
	case nil:
		return s.ok(c, http.StatusOK, "live session ended", nil)
	case live.ErrSessionEnded:
		return s.fail(c, http.StatusConflict, "session already ended")
	default:
		return s.fail(c, http.StatusNotFound, "live session not found")
	}
}

// addRecording appends a recording reference to a session, host-only.
func (s *Server) addRecording(c echo.Context) error {
	var req addRecordingRequest
	if ok, err := s.bindAndValidate(c, &req); !ok {
		return err
	}

	sessionID := c.Param("id")
	session, err := s.live.Get(sessionID)
	if err != nil {
		return s.fail(c, http.StatusNotFound, "live session not found")
	}
	if session.HostID != req.TeacherID {
		return s.fail(c, http.StatusForbidden, "only the host can attach recordings")
	}

	if err := s.live.AddRecording(sessionID, req.RecordingRef); err != nil {
		if err == live.ErrSessionNotFound {
			return s.fail(c, http.StatusNotFound, "live session not found")
		}
		return s.failFromStore(c, pkgerrors.Wrap(err, "adding recording"), "")
	}
	return s.ok(c, http.StatusOK, "recording added", nil)
}
