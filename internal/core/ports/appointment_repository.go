package ports

import (
	"context"

	"github.com/clinicflow/rdv-api/internal/core/domain"
)

// AppointmentRepository defines persistence operations for appointments.
type AppointmentRepository interface {
	Create(ctx context.Context, a *domain.Appointment) (*domain.Appointment, error)
	FindByID(ctx context.Context, id string) (*domain.Appointment, error)
	// AssignDoctor overwrites the doctor reference and returns the updated
	// appointment.
	AssignDoctor(ctx context.Context, id, doctorID string) (*domain.Appointment, error)
	// SetStatus writes status only when the appointment's doctor is doctorID.
	// It returns domain.ErrForbidden when no document matches.
	SetStatus(ctx context.Context, id, doctorID string, status domain.AppointmentStatus) error
	// ListByPatient returns the patient's appointments sorted by date, with
	// the doctor populated.
	ListByPatient(ctx context.Context, patientID string) ([]*domain.Appointment, error)
	// ListByDoctor returns the doctor's appointments with the patient populated.
	ListByDoctor(ctx context.Context, doctorID string) ([]*domain.Appointment, error)
}

// AuditRepository persists the appointment audit trail.
type AuditRepository interface {
	InsertEvent(ctx context.Context, event *domain.AppointmentEvent) error
	ListByAppointment(ctx context.Context, appointmentID string) ([]*domain.AppointmentEvent, error)
}
