package api

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	pkgerrors "github.com/pkg/errors"

	"lectern/pkg/types"
)

type createCohortRequest struct {
	TeacherID string `json:"teacher_id" validate:"required,max=50"`
	Name      string `json:"name" validate:"required,min=1,max=200"`
}

type joinCohortRequest struct {
	AccountID string `json:"account_id" validate:"required,max=50"`
	Code      string `json:"code" validate:"required,len=8"`
}

// createCohort creates a student group with a generated share code that
// students use for self-enrollment.
func (s *Server) createCohort(c echo.Context) error {
	var req createCohortRequest
	if ok, err := s.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx := c.Request().Context()
	teacher, err := s.store.GetAccountByID(ctx, req.TeacherID)
	if err != nil {
		return s.failFromStore(c, err, "teacher not found")
	}
	if teacher.Role != types.RoleTeacher {
		return s.fail(c, http.StatusForbidden, "only teachers can create cohorts")
	}

	code, err := newCohortCode()
	if err != nil {
		return s.failFromStore(c, pkgerrors.Wrap(err, "generating cohort code"), "")
	}

	cohort := &types.Cohort{
		ID:        uuid.New().String(),
		TeacherID: teacher.ID,
		Name:      req.Name,
		Code:      code,
	}
	if err := s.store.CreateCohort(ctx, cohort); err != nil {
		return s.failFromStore(c, err, "cohort not found")
	}

	return s.ok(c, http.StatusCreated, "cohort created", cohort)
}

// joinCohort adds a student to a cohort by its share code. Re-joining is
// benign success.
func (s *Server) joinCohort(c echo.Context) error {
	var req joinCohortRequest
	if ok, err := s.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx := c.Request().Context()
	cohort, err := s.store.GetCohortByCode(ctx, req.Code)
	if err != nil {
		return s.failFromStore(c, err, "cohort code not recognized")
	}
	account, err := s.store.GetAccountByID(ctx, req.AccountID)
	if err != nil {
		return s.failFromStore(c, err, "account not found")
	}
	if account.Role != types.RoleStudent {
		return s.fail(c, http.StatusForbidden, "only students can join cohorts")
	}

	if err := s.store.AddCohortMember(ctx, cohort.ID, account.ID); err != nil {
		return s.failFromStore(c, err, "cohort not found")
	}
	return s.ok(c, http.StatusOK, "joined cohort", cohort)
}

// newCohortCode generates the 8-hex-char share code.
func newCohortCode() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
