package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/streamhub/internal/domain"
	"github.com/Skotchmaster/streamhub/internal/logging"
	"github.com/Skotchmaster/streamhub/internal/transport"
)

var errorStatus = []struct {
	err     error
	status  int
	message string
}{
	{domain.ErrValidation, http.StatusBadRequest, "invalid request"},
	{domain.ErrMissingToken, http.StatusUnauthorized, "unauthorized request"},
	{domain.ErrExpiredToken, http.StatusUnauthorized, "token expired"},
	{domain.ErrInvalidToken, http.StatusUnauthorized, "invalid token"},
	{domain.ErrTokenMismatch, http.StatusUnauthorized, "refresh token is expired or used"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid user credentials"},
	{domain.ErrNotFound, http.StatusNotFound, "user does not exist"},
	{domain.ErrConflict, http.StatusConflict, "user with email or username already exists"},
	{domain.ErrUpload, http.StatusBadRequest, "image upload failed"},
	{domain.ErrPersistence, http.StatusInternalServerError, "something went wrong"},
}

// StatusFor maps a service error onto an HTTP status and a client-safe message.
func StatusFor(err error) (int, string) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status, e.message
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

func toHTTPError(err error) *echo.HTTPError {
	code, msg := StatusFor(err)
	if code == http.StatusBadRequest && errors.Is(err, domain.ErrValidation) {
		msg = validationMessage(err)
	}
	return echo.NewHTTPError(code, msg).SetInternal(err)
}

// validation errors carry their own wording in front of the sentinel
func validationMessage(err error) string {
	msg, ok := strings.CutSuffix(err.Error(), ": "+domain.ErrValidation.Error())
	if !ok || msg == "" {
		return "invalid request"
	}
	return msg
}

// ErrorHandler renders every error in the response envelope.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := "internal server error"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if s, ok := he.Message.(string); ok {
			msg = s
		} else if he.Message != nil {
			msg = http.StatusText(code)
		}
	} else {
		code, msg = StatusFor(err)
	}

	if code >= http.StatusInternalServerError {
		logging.FromContext(c.Request().Context()).Error("unhandled_error", "status", code, "error", err)
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(code)
	} else {
		werr = c.JSON(code, transport.Fail(code, msg))
	}
	if werr != nil {
		logging.FromContext(c.Request().Context()).Error("write_error_response", "error", werr)
	}
}
