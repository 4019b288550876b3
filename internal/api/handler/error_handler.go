package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicflow/rdv-api/internal/core/domain"
)

// ErrorResponse is the canonical error envelope for all API errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domain.ErrMissingFields, http.StatusBadRequest, "missing_fields"},
	{domain.ErrInvalidRole, http.StatusBadRequest, "invalid_role"},
	{domain.ErrWeakPassword, http.StatusBadRequest, "weak_password"},
	{domain.ErrMissingDate, http.StatusBadRequest, "missing_date"},
	{domain.ErrInvalidDate, http.StatusBadRequest, "invalid_date"},
	{domain.ErrMissingPatient, http.StatusBadRequest, "missing_patient"},
	{domain.ErrMissingIDs, http.StatusBadRequest, "missing_ids"},
	{domain.ErrInvalidAction, http.StatusBadRequest, "invalid_action"},

	{domain.ErrMissingToken, http.StatusUnauthorized, "missing_token"},
	{domain.ErrInvalidToken, http.StatusBadRequest, "invalid_token"},
	{domain.ErrUserNotFound, http.StatusBadRequest, "user_not_found"},
	{domain.ErrWrongPassword, http.StatusBadRequest, "wrong_password"},
	{domain.ErrNoRole, http.StatusBadRequest, "no_role"},
	{domain.ErrTooManyAttempts, http.StatusTooManyRequests, "too_many_attempts"},

	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrAppointmentNotFound, http.StatusNotFound, "appointment_not_found"},
	{domain.ErrInvalidDoctor, http.StatusNotFound, "invalid_doctor"},
	{domain.ErrRoleNotFound, http.StatusNotFound, "role_not_found"},
	{domain.ErrDuplicateEmail, http.StatusBadRequest, "duplicate_email"},
	{domain.ErrQuotaExceeded, http.StatusForbidden, "quota_exceeded"},
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that maps domain errors
// to their status and stable code, and logs anything unexpected without
// leaking it to the client.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}

// errorCode returns the stable code of a known domain error.
func errorCode(err error) string {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return "internal_error"
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, ErrorResponse) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, ErrorResponse{Error: m.err.Error(), Code: m.code}
		}
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, ErrorResponse{Error: ve.Error(), Code: "invalid_request"}
	}

	// Echo's own errors (bind failures, 404 from router, rate limiter, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, ErrorResponse{Error: fmt.Sprintf("%v", he.Message), Code: "http_error"}
	}

	log.Error().
		Err(err).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: "internal_error"}
}
