package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lectern/internal/live"
	"lectern/internal/presence"
	"lectern/internal/realtime"
	"lectern/internal/rooms"
	"lectern/internal/store"
	"lectern/pkg/database"
	"lectern/pkg/types"
)

// stubEndpoint records every event delivered to it, standing in for a
// connected real-time client.
type stubEndpoint struct {
	id        string
	accountID string

	mu     sync.Mutex
	events []types.Event
}

func (e *stubEndpoint) ID() string        { return e.id }
func (e *stubEndpoint) AccountID() string { return e.accountID }
func (e *stubEndpoint) Close() error      { return nil }

func (e *stubEndpoint) Send(ev types.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *stubEndpoint) received() []types.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.Event, len(e.events))
	copy(out, e.events)
	return out
}

type testServer struct {
	server   *Server
	store    *store.Store
	rooms    *rooms.Router
	live     *live.Registry
	presence *presence.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := database.DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "lectern_test.db")

	st, err := store.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	roomRouter := rooms.NewRouter()
	presenceReg := presence.NewRegistry()
	liveReg := live.NewRegistry()
	rt := realtime.NewHandler(roomRouter, presenceReg, liveReg, st, realtime.DefaultOptions())

	return &testServer{
		server:   NewServer(st, liveReg, presenceReg, roomRouter, rt),
		store:    st,
		rooms:    roomRouter,
		live:     liveReg,
		presence: presenceReg,
	}
}

func (ts *testServer) seedAccount(t *testing.T, id, name string, role types.Role) {
	t.Helper()
	account := &types.Account{ID: id, Name: name, Role: role}
	require.NoError(t, ts.store.CreateAccount(context.Background(), account))
}

func (ts *testServer) seedLecture(t *testing.T, teacherID, title string, cohortID *string) *types.Lecture {
	t.Helper()
	lecture := &types.Lecture{
		ID:           "lec-" + title,
		TeacherID:    teacherID,
		Title:        title,
		ScheduledAt:  time.Now().Add(time.Hour),
		DurationMins: 60,
		CohortID:     cohortID,
	}
	require.NoError(t, ts.store.CreateLecture(context.Background(), lecture))
	return lecture
}

// subscribeStudent attaches a stub endpoint to the student role room, the
// default broadcast target for announcements.
func (ts *testServer) subscribeStudent(id string) *stubEndpoint {
	ep := &stubEndpoint{id: "ep-" + id, accountID: id}
	ts.rooms.Subscribe(types.RoleRoom(types.RoleStudent), ep)
	return ep
}

func (ts *testServer) request(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, response) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "body: %s", rec.Body.String())
	return rec, resp
}

func decodeData(t *testing.T, resp response, out interface{}) {
	t.Helper()
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)

	rec, resp := ts.request(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	var data map[string]int
	decodeData(t, resp, &data)
	assert.Equal(t, 0, data["active_sessions"])
	assert.Equal(t, 0, data["online_users"])
}

func TestServer_CreateLectureBroadcastsToStudents(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccount(t, "teacher1", "Ms. Vu", types.RoleTeacher)
	ep := ts.subscribeStudent("alice")

	rec, resp := ts.request(t, http.MethodPost, "/api/lectures", map[string]interface{}{
		"teacher_id":     "teacher1",
		"title":          "Intro",
		"scheduled_time": time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code, resp.Error)
	require.True(t, resp.Success)

	var lecture types.Lecture
	decodeData(t, resp, &lecture)
	assert.Equal(t, "Intro", lecture.Title)
	assert.Equal(t, 60, lecture.DurationMins)
	assert.Nil(t, lecture.CohortID)

	events := ep.received()
	require.Len(t, events, 1)
	announcement, ok := events[0].(types.NewLectureEvent)
	require.True(t, ok, "expected NewLectureEvent, got %T", events[0])
	assert.Equal(t, lecture.ID, announcement.LectureID)
	assert.Equal(t, "Intro", announcement.Title)
	assert.Equal(t, "Ms. Vu", announcement.TeacherName)
}

func TestServer_CreateLectureAuthorization(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccount(t, "alice", "Alice", types.RoleStudent)

	body := map[string]interface{}{
		"teacher_id":     "alice",
		"title":          "Sneaky",
		"scheduled_time": time.Now().Format(time.RFC3339),
	}
	rec, resp := ts.request(t, http.MethodPost, "/api/lectures", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, resp.Success)

	body["teacher_id"] = "ghost"
	rec, _ = ts.request(t, http.MethodPost, "/api/lectures", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CreateLectureValidation(t *testing.T) {
	ts := newTestServer(t)

	rec, resp := ts.request(t, http.MethodPost, "/api/lectures", map[string]interface{}{
		"teacher_id": "teacher1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestServer_CohortLectureTargetsCohortRoom(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccount(t, "teacher1", "Ms. Vu", types.RoleTeacher)
	cohort := &types.Cohort{ID: "cohort9", TeacherID: "teacher1", Name: "Evening Batch", Code: "abcd1234"}
	require.NoError(t, ts.store.CreateCohort(context.Background(), cohort))

	roleEp := ts.subscribeStudent("alice")
	cohortEp := &stubEndpoint{id: "ep-bob", accountID: "bob"}
	ts.rooms.Subscribe(types.CohortRoom("cohort9"), cohortEp)

	rec, _ := ts.request(t, http.MethodPost, "/api/lectures", map[string]interface{}{
		"teacher_id":     "teacher1",
		"title":          "Cohort Only",
		"scheduled_time": time.Now().Add(time.Hour).Format(time.RFC3339),
		"cohort_id":      "cohort9",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Empty(t, roleEp.received(), "cohort lecture must not hit the role room")
	events := cohortEp.received()
	require.Len(t, events, 1)
	announcement := events[0].(types.NewLectureEvent)
	assert.Equal(t, "cohort9", announcement.CohortID)
}

func TestServer_Materials(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccount(t, "teacher1", "Ms. Vu", types.RoleTeacher)
	ts.seedAccount(t, "teacher2", "Mr. Ngo", types.RoleTeacher)
	lecture := ts.seedLecture(t, "teacher1", "Intro", nil)
	ep := ts.subscribeStudent("alice")

	path := fmt.Sprintf("/api/lectures/%s/materials", lecture.ID)

	rec, resp := ts.request(t, http.MethodPost, path, map[string]interface{}{
		"teacher_id": "teacher1",
		"title":      "Slides",
		"file_type":  "pdf",
	})
	require.Equal(t, http.StatusCreated, rec.Code, resp.Error)

	events := ep.received()
	require.Len(t, events, 1)
	announcement := events[0].(types.NewMaterialEvent)
	assert.Equal(t, "Slides", announcement.Title)
	assert.Equal(t, "pdf", announcement.FileType)

	// Only the lecture's own teacher can upload.
	rec, _ = ts.request(t, http.MethodPost, path, map[string]interface{}{
		"teacher_id": "teacher2",
		"title":      "Hijack",
		"file_type":  "pdf",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// file_type is a closed set.
	rec, _ = ts.request(t, http.MethodPost, path, map[string]interface{}{
		"teacher_id": "teacher1",
		"title":      "Nope",
		"file_type":  "exe",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = ts.request(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var materials []*types.Material
	decodeData(t, resp, &materials)
	assert.Len(t, materials, 1)
}

func TestServer_Enroll(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccount(t, "teacher1", "Ms. Vu", types.RoleTeacher)
	ts.seedAccount(t, "alice", "Alice", types.RoleStudent)
	lecture := ts.seedLecture(t, "teacher1", "Intro", nil)

	path := fmt.Sprintf("/api/lectures/%s/enroll", lecture.ID)

	rec, _ := ts.request(t, http.MethodPost, path, map[string]interface{}{"account_id": "alice"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Enrolling twice is benign.
	rec, resp := ts.request(t, http.MethodPost, path, map[string]interface{}{"account_id": "alice"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	// Teachers do not enroll.
	rec, _ = ts.request(t, http.MethodPost, path, map[string]interface{}{"account_id": "teacher1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	enrolled, err := ts.store.IsEnrolled(context.Background(), lecture.ID, "alice")
	require.NoError(t, err)
	assert.True(t, enrolled)
}

func TestServer_Cohorts(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccount(t, "teacher1", "Ms. Vu", types.RoleTeacher)
	ts.seedAccount(t, "alice", "Alice", types.RoleStudent)

	rec, resp := ts.request(t, http.MethodPost, "/api/cohorts", map[string]interface{}{
		"teacher_id": "teacher1",
		"name":       "Evening Batch",
	})
	require.Equal(t, http.StatusCreated, rec.Code, resp.Error)

	var cohort types.Cohort
	decodeData(t, resp, &cohort)
	assert.Len(t, cohort.Code, 8)

	rec, _ = ts.request(t, http.MethodPost, "/api/cohorts/join", map[string]interface{}{
		"account_id": "alice",
		"code":       cohort.Code,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Re-joining is benign.
	rec, resp = ts.request(t, http.MethodPost, "/api/cohorts/join", map[string]interface{}{
		"account_id": "alice",
		"code":       cohort.Code,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	// Unknown code of the right shape.
	rec, _ = ts.request(t, http.MethodPost, "/api/cohorts/join", map[string]interface{}{
		"account_id": "alice",
		"code":       "00000000",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Wrong shape never reaches the store.
	rec, _ = ts.request(t, http.MethodPost, "/api/cohorts/join", map[string]interface{}{
		"account_id": "alice",
		"code":       "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	member, err := ts.store.IsCohortMember(context.Background(), cohort.ID, "alice")
	require.NoError(t, err)
	assert.True(t, member)
}

func TestServer_LiveSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccount(t, "teacher1", "Ms. Vu", types.RoleTeacher)
	ts.seedAccount(t, "teacher2", "Mr. Ngo", types.RoleTeacher)
	lecture := ts.seedLecture(t, "teacher1", "Intro", nil)
	ep := ts.subscribeStudent("alice")

	rec, resp := ts.request(t, http.MethodPost, fmt.Sprintf("/api/lectures/%s/live", lecture.ID),
		map[string]interface{}{"teacher_id": "teacher1"})
	require.Equal(t, http.StatusCreated, rec.Code, resp.Error)

	var session types.LiveSession
	decodeData(t, resp, &session)
	assert.Equal(t, types.SessionActive, session.Status)
	assert.Equal(t, lecture.ID, session.LectureID)
	assert.NotEmpty(t, session.ID)

	events := ep.received()
	require.Len(t, events, 1)
	announcement := events[0].(types.LiveSessionStartedEvent)
	assert.Equal(t, session.ID, announcement.SessionID)
	assert.Equal(t, "/live/"+session.ID, announcement.JoinURL)

	// The record resolves with an empty roster.
	rec, resp = ts.request(t, http.MethodGet, "/api/live/"+session.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail liveSessionResponse
	decodeData(t, resp, &detail)
	assert.Equal(t, session.ID, detail.Session.ID)
	assert.Empty(t, detail.Participants)

	// Only the host ends the session.
	rec, _ = ts.request(t, http.MethodPost, "/api/live/"+session.ID+"/end",
		map[string]interface{}{"teacher_id": "teacher2"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = ts.request(t, http.MethodPost, "/api/live/"+session.ID+"/end",
		map[string]interface{}{"teacher_id": "teacher1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Ending twice is a conflict.
	rec, _ = ts.request(t, http.MethodPost, "/api/live/"+session.ID+"/end",
		map[string]interface{}{"teacher_id": "teacher1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Ended sessions stay resolvable.
	rec, resp = ts.request(t, http.MethodGet, "/api/live/"+session.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, resp, &detail)
	assert.Equal(t, types.SessionEnded, detail.Session.Status)
}

func TestServer_StartLiveSessionAuthorization(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccount(t, "teacher1", "Ms. Vu", types.RoleTeacher)
	ts.seedAccount(t, "teacher2", "Mr. Ngo", types.RoleTeacher)
	lecture := ts.seedLecture(t, "teacher1", "Intro", nil)

	rec, _ := ts.request(t, http.MethodPost, fmt.Sprintf("/api/lectures/%s/live", lecture.ID),
		map[string]interface{}{"teacher_id": "teacher2"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = ts.request(t, http.MethodPost, "/api/lectures/nope/live",
		map[string]interface{}{"teacher_id": "teacher1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Recordings(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccount(t, "teacher1", "Ms. Vu", types.RoleTeacher)

	sessionID, err := ts.live.Create("lec1", "teacher1", "Ms. Vu", "Intro")
	require.NoError(t, err)

	rec, _ := ts.request(t, http.MethodPost, "/api/live/"+sessionID+"/recordings",
		map[string]interface{}{"teacher_id": "intruder", "recording_ref": "s3://bucket/rec1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = ts.request(t, http.MethodPost, "/api/live/"+sessionID+"/recordings",
		map[string]interface{}{"teacher_id": "teacher1", "recording_ref": "s3://bucket/rec1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	session, err := ts.live.Get(sessionID)
	require.NoError(t, err)
	assert.Equal(t, []string{"s3://bucket/rec1"}, session.Recordings)

	rec, _ = ts.request(t, http.MethodPost, "/api/live/nope/recordings",
		map[string]interface{}{"teacher_id": "teacher1", "recording_ref": "s3://bucket/rec2"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ListLectures(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccount(t, "teacher1", "Ms. Vu", types.RoleTeacher)
	ts.seedLecture(t, "teacher1", "Intro", nil)
	ts.seedLecture(t, "teacher1", "Advanced", nil)

	rec, resp := ts.request(t, http.MethodGet, "/api/lectures", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var lectures []*types.Lecture
	decodeData(t, resp, &lectures)
	assert.Len(t, lectures, 2)

	rec, _ = ts.request(t, http.MethodGet, "/api/lectures/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
