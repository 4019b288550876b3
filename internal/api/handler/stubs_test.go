package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicflow/rdv-api/internal/core/domain"
	"github.com/clinicflow/rdv-api/internal/core/ports"
)

type stubAuthService struct {
	registerFn      func(ctx context.Context, in ports.RegisterInput) (*domain.User, error)
	registerByRecFn func(ctx context.Context, in ports.RegisterInput) (*domain.User, error)
	loginFn         func(ctx context.Context, email, password string) (*ports.LoginResult, error)
	listFn          func(ctx context.Context) ([]*domain.User, error)
	countFn         func(ctx context.Context, role string) (int64, error)
}

func (s *stubAuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAuthService) RegisterByReceptionist(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	return s.registerByRecFn(ctx, in)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.listFn(ctx)
}

func (s *stubAuthService) CountByRole(ctx context.Context, role string) (int64, error) {
	return s.countFn(ctx, role)
}

type stubAppointmentService struct {
	requestFn func(ctx context.Context, in ports.RequestAppointmentInput) (*domain.Appointment, error)
	createFn  func(ctx context.Context, in ports.CreateAppointmentInput) (*domain.Appointment, error)
	assignFn  func(ctx context.Context, appointmentID, doctorID, actorID string) (*domain.Appointment, error)
	resolveFn func(ctx context.Context, appointmentID string, action domain.ResolveAction, callerID string) (domain.AppointmentStatus, error)
	patientFn func(ctx context.Context, patientID string) ([]*domain.Appointment, error)
	doctorFn  func(ctx context.Context, doctorID string) ([]*domain.Appointment, error)
	historyFn func(ctx context.Context, appointmentID string) ([]*domain.AppointmentEvent, error)
}

func (s *stubAppointmentService) Request(ctx context.Context, in ports.RequestAppointmentInput) (*domain.Appointment, error) {
	return s.requestFn(ctx, in)
}

func (s *stubAppointmentService) CreateDirect(ctx context.Context, in ports.CreateAppointmentInput) (*domain.Appointment, error) {
	return s.createFn(ctx, in)
}

func (s *stubAppointmentService) AssignDoctor(ctx context.Context, appointmentID, doctorID, actorID string) (*domain.Appointment, error) {
	return s.assignFn(ctx, appointmentID, doctorID, actorID)
}

func (s *stubAppointmentService) Resolve(ctx context.Context, appointmentID string, action domain.ResolveAction, callerID string) (domain.AppointmentStatus, error) {
	return s.resolveFn(ctx, appointmentID, action, callerID)
}

func (s *stubAppointmentService) ListForPatient(ctx context.Context, patientID string) ([]*domain.Appointment, error) {
	return s.patientFn(ctx, patientID)
}

func (s *stubAppointmentService) ListForDoctor(ctx context.Context, doctorID string) ([]*domain.Appointment, error) {
	return s.doctorFn(ctx, doctorID)
}

func (s *stubAppointmentService) History(ctx context.Context, appointmentID string) ([]*domain.AppointmentEvent, error) {
	return s.historyFn(ctx, appointmentID)
}

var (
	_ ports.AuthService        = (*stubAuthService)(nil)
	_ ports.AppointmentService = (*stubAppointmentService)(nil)
)

// testRequest describes a single handler invocation.
type testRequest struct {
	method   string
	path     string
	body     string
	identity *domain.Identity
	headers  map[string]string
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(zerolog.Nop())
	return e
}

// do runs h and renders any returned error through the central error handler.
func do(t *testing.T, h echo.HandlerFunc, tr testRequest, setup ...func(echo.Context)) *httptest.ResponseRecorder {
	t.Helper()
	e := newTestEcho()

	var body io.Reader
	if tr.body != "" {
		body = strings.NewReader(tr.body)
	}
	req := httptest.NewRequest(tr.method, tr.path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range tr.headers {
		req.Header.Set(k, v)
	}
	if tr.identity != nil {
		req = req.WithContext(domain.WithIdentity(req.Context(), *tr.identity))
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for _, fn := range setup {
		fn(c)
	}

	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected %d, got %d (%s)", status, rec.Code, rec.Body.String())
	}
	if body := decode[ErrorResponse](t, rec); body.Code != code {
		t.Fatalf("expected code %q, got %+v", code, body)
	}
}
