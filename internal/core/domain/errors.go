package domain

import "errors"

// Validation
var (
	ErrMissingFields  = errors.New("all fields are required")
	ErrInvalidRole    = errors.New("invalid role")
	ErrWeakPassword   = errors.New("password must be at least 8 characters with a lowercase letter, an uppercase letter, a digit and a symbol (@$!%*?&)")
	ErrMissingDate    = errors.New("a date is required")
	ErrInvalidDate    = errors.New("date must be an RFC 3339 timestamp")
	ErrMissingPatient = errors.New("patient not found in request")
	ErrMissingIDs     = errors.New("appointment id and doctor id are required")
	ErrInvalidAction  = errors.New("action must be one of: confirmer, annuler")
)

// Authentication
var (
	ErrMissingToken    = errors.New("access denied, missing token")
	ErrInvalidToken    = errors.New("invalid token")
	ErrUserNotFound    = errors.New("user not found")
	ErrWrongPassword   = errors.New("incorrect password")
	ErrNoRole          = errors.New("user has no role")
	ErrTooManyAttempts = errors.New("too many failed login attempts, try again later")
)

// Authorization, lookup and conflicts
var (
	ErrForbidden           = errors.New("access forbidden")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrInvalidDoctor       = errors.New("doctor not found")
	ErrRoleNotFound        = errors.New("role not found")
	ErrDuplicateEmail      = errors.New("a user with this email already exists")
	ErrQuotaExceeded       = errors.New("receptionist quota reached")
)
