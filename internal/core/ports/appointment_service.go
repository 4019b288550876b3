package ports

import (
	"context"
	"time"

	"github.com/clinicflow/rdv-api/internal/core/domain"
)

// RequestAppointmentInput is a patient's appointment request.
type RequestAppointmentInput struct {
	PatientID      string
	Date           time.Time
	IdempotencyKey string
}

// CreateAppointmentInput is the administrative creation path.
type CreateAppointmentInput struct {
	PatientID string
	DoctorID  string // optional
	Date      time.Time
	ActorID   string
}

// AppointmentService defines appointment use cases.
type AppointmentService interface {
	Request(ctx context.Context, in RequestAppointmentInput) (*domain.Appointment, error)
	CreateDirect(ctx context.Context, in CreateAppointmentInput) (*domain.Appointment, error)
	AssignDoctor(ctx context.Context, appointmentID, doctorID, actorID string) (*domain.Appointment, error)
	Resolve(ctx context.Context, appointmentID string, action domain.ResolveAction, callerID string) (domain.AppointmentStatus, error)
	ListForPatient(ctx context.Context, patientID string) ([]*domain.Appointment, error)
	ListForDoctor(ctx context.Context, doctorID string) ([]*domain.Appointment, error)
	History(ctx context.Context, appointmentID string) ([]*domain.AppointmentEvent, error)
}

// AuditRecorder accepts appointment events for asynchronous persistence.
type AuditRecorder interface {
	Record(event domain.AppointmentEvent)
}

// IdempotencyStore remembers which appointment a request key produced.
type IdempotencyStore interface {
	Lookup(ctx context.Context, key string) (appointmentID string, found bool, err error)
	Remember(ctx context.Context, key, appointmentID string) error
}
