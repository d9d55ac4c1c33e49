package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"lectern/pkg/types"
)

type createLectureRequest struct {
	TeacherID     string    `json:"teacher_id" validate:"required,max=50"`
	Title         string    `json:"title" validate:"required,min=1,max=200"`
	ScheduledTime time.Time `json:"scheduled_time" validate:"required"`
	DurationMins  int       `json:"duration_mins" validate:"omitempty,gt=0"`
	CohortID      string    `json:"cohort_id" validate:"omitempty,max=64"`
}

type createMaterialRequest struct {
	TeacherID string `json:"teacher_id" validate:"required,max=50"`
	Title     string `json:"title" validate:"required,min=1,max=200"`
	FileType  string `json:"file_type" validate:"required,oneof=pdf image audio video"`
}

type enrollRequest struct {
	AccountID string `json:"account_id" validate:"required,max=50"`
}

// createLecture schedules a lecture and announces it. The broadcast is
// fire-and-forget: once the store write succeeds the lecture exists, and a
// failed notification is never rolled back.
func (s *Server) createLecture(c echo.Context) error {
	var req createLectureRequest
	if ok, err := s.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx := c.Request().Context()
	teacher, err := s.store.GetAccountByID(ctx, req.TeacherID)
	if err != nil {
		return s.failFromStore(c, err, "teacher not found")
	}
	if teacher.Role != types.RoleTeacher {
		return s.fail(c, http.StatusForbidden, "only teachers can schedule lectures")
	}

	lecture := &types.Lecture{
		ID:           uuid.New().String(),
		TeacherID:    teacher.ID,
		Title:        req.Title,
		ScheduledAt:  req.ScheduledTime,
		DurationMins: req.DurationMins,
	}
	if lecture.DurationMins == 0 {
		lecture.DurationMins = 60
	}
	if req.CohortID != "" {
		lecture.CohortID = &req.CohortID
	}

	if err := s.store.CreateLecture(ctx, lecture); err != nil {
		return s.failFromStore(c, err, "lecture not found")
	}

	room := types.RoleRoom(types.RoleStudent)
	if lecture.CohortID != nil {
		room = types.CohortRoom(*lecture.CohortID)
	}
	s.rooms.Broadcast(room, types.NewLectureEvent{
		LectureID:     lecture.ID,
		Title:         lecture.Title,
		TeacherName:   teacher.Name,
		ScheduledTime: lecture.ScheduledAt,
		CohortID:      req.CohortID,
	})

	return s.ok(c, http.StatusCreated, "lecture scheduled", lecture)
}

func (s *Server) listLectures(c echo.Context) error {
	lectures, err := s.store.ListLectures(c.Request().Context())
	if err != nil {
		return s.failFromStore(c, err, "lectures not found")
	}
	return s.ok(c, http.StatusOK, "lectures", lectures)
}

func (s *Server) getLecture(c echo.Context) error {
	lecture, err := s.store.GetLectureByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.failFromStore(c, err, "lecture not found")
	}
	return s.ok(c, http.StatusOK, "lecture", lecture)
}

// createMaterial records uploaded material metadata and announces it to
// students. The payload itself is compressed and stored by the upload
// pipeline outside this handler.
func (s *Server) createMaterial(c echo.Context) error {
	var req createMaterialRequest
	if ok, err := s.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx := c.Request().Context()
	lecture, err := s.store.GetLectureByID(ctx, c.Param("id"))
	if err != nil {
		return s.failFromStore(c, err, "lecture not found")
	}
	if lecture.TeacherID != req.TeacherID {
		return s.fail(c, http.StatusForbidden, "only the lecture's teacher can upload materials")
	}
	teacher, err := s.store.GetAccountByID(ctx, req.TeacherID)
	if err != nil {
		return s.failFromStore(c, err, "teacher not found")
	}

	material := &types.Material{
		ID:        uuid.New().String(),
		LectureID: lecture.ID,
		Title:     req.Title,
		FileType:  req.FileType,
	}
	if err := s.store.CreateMaterial(ctx, material); err != nil {
		return s.failFromStore(c, err, "lecture not found")
	}

	s.rooms.Broadcast(types.RoleRoom(types.RoleStudent), types.NewMaterialEvent{
		LectureID:   lecture.ID,
		MaterialID:  material.ID,
		Title:       material.Title,
		FileType:    material.FileType,
		TeacherName: teacher.Name,
	})

	return s.ok(c, http.StatusCreated, "material uploaded", material)
}

func (s *Server) listMaterials(c echo.Context) error {
	materials, err := s.store.ListLectureMaterials(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.failFromStore(c, err, "lecture not found")
	}
	return s.ok(c, http.StatusOK, "materials", materials)
}

// enrollStudent enrolls a student in a lecture. Duplicate enrollment is
// benign success.
func (s *Server) enrollStudent(c echo.Context) error {
	var req enrollRequest
	if ok, err := s.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx := c.Request().Context()
	lecture, err := s.store.GetLectureByID(ctx, c.Param("id"))
	if err != nil {
		return s.failFromStore(c, err, "lecture not found")
	}
	account, err := s.store.GetAccountByID(ctx, req.AccountID)
	if err != nil {
		return s.failFromStore(c, err, "account not found")
	}
	if account.Role != types.RoleStudent {
		return s.fail(c, http.StatusForbidden, "only students can enroll")
	}

	if err := s.store.EnrollStudent(ctx, lecture.ID, account.ID); err != nil {
		return s.failFromStore(c, err, "lecture not found")
	}
	return s.ok(c, http.StatusOK, "enrolled", nil)
}
