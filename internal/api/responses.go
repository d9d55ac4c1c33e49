package api

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	pkgerrors "github.com/pkg/errors"

	"lectern/pkg/interfaces"
)

// response is the JSON envelope every handler returns: a success flag, a
// human-readable message, and for failures an explanation string. Internal
// failure detail never leaves the process.
type response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (s *Server) ok(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, response{Success: true, Message: message, Data: data})
}

func (s *Server) fail(c echo.Context, status int, explanation string) error {
	return c.JSON(status, response{
		Success: false,
		Message: http.StatusText(status),
		Error:   explanation,
	})
}

// failFromStore translates a store failure into a structured response.
// Store failures never crash the request-handling flow.
func (s *Server) failFromStore(c echo.Context, err error, notFoundMsg string) error {
	switch pkgerrors.Cause(err) {
	case interfaces.ErrNotFound:
		return s.fail(c, http.StatusNotFound, notFoundMsg)
	case interfaces.ErrUnauthorized:
		return s.fail(c, http.StatusForbidden, "not authorized")
	default:
		slog.Error("api: store failure", "path", c.Path(), "error", err)
		return s.fail(c, http.StatusInternalServerError, "internal error")
	}
}

// bindAndValidate binds the request body and runs struct validation,
// answering with a 400 on either failure.
func (s *Server) bindAndValidate(c echo.Context, req interface{}) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, s.fail(c, http.StatusBadRequest, "malformed request body")
	}
	if err := s.validate.Struct(req); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return false, s.fail(c, http.StatusBadRequest, "invalid field: "+verrs[0].Field())
		}
		return false, s.fail(c, http.StatusBadRequest, "validation failed")
	}
	return true, nil
}
