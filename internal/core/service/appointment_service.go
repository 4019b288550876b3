package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicflow/rdv-api/internal/core/domain"
	"github.com/clinicflow/rdv-api/internal/core/ports"
)

// AppointmentService implements the appointment lifecycle.
type AppointmentService struct {
	appointments ports.AppointmentRepository
	users        ports.UserRepository
	history      ports.AuditRepository
	audit        ports.AuditRecorder
	idem         ports.IdempotencyStore
	log          zerolog.Logger
	now          func() time.Time
}

// NewAppointmentService wires the appointment use cases. audit and idem may be
// nil.
func NewAppointmentService(
	appointments ports.AppointmentRepository,
	users ports.UserRepository,
	history ports.AuditRepository,
	audit ports.AuditRecorder,
	idem ports.IdempotencyStore,
	log zerolog.Logger,
) *AppointmentService {
	return &AppointmentService{
		appointments: appointments,
		users:        users,
		history:      history,
		audit:        audit,
		idem:         idem,
		log:          log,
		now:          time.Now,
	}
}

// Request creates a pending appointment for a patient. When an idempotency key
// is supplied, a replay returns the appointment created by the first call.
func (s *AppointmentService) Request(ctx context.Context, in ports.RequestAppointmentInput) (*domain.Appointment, error) {
	if in.Date.IsZero() {
		return nil, domain.ErrMissingDate
	}
	if in.PatientID == "" {
		return nil, domain.ErrMissingPatient
	}

	key := s.idempotencyKey(in.PatientID, in.IdempotencyKey)
	if existing := s.replay(ctx, key); existing != nil {
		return existing, nil
	}

	created, err := s.appointments.Create(ctx, &domain.Appointment{
		PatientID: in.PatientID,
		Date:      in.Date.UTC(),
		Status:    domain.StatusPending,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("request appointment: %w", err)
	}

	if key != "" {
		if err := s.idem.Remember(ctx, key, created.ID); err != nil {
			s.log.Warn().Err(err).Str("appointment_id", created.ID).Msg("failed to store idempotency key")
		}
	}

	s.record(created, domain.EventRequested, in.PatientID)
	s.log.Info().Str("appointment_id", created.ID).Str("patient_id", in.PatientID).Msg("appointment requested")
	return created, nil
}

func (s *AppointmentService) idempotencyKey(patientID, key string) string {
	if key == "" || s.idem == nil {
		return ""
	}
	return "rdv:demande:" + patientID + ":" + key
}

// replay returns the appointment previously stored under key, if any. Store
// failures are logged and treated as a miss.
func (s *AppointmentService) replay(ctx context.Context, key string) *domain.Appointment {
	if key == "" {
		return nil
	}
	id, found, err := s.idem.Lookup(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Msg("idempotency lookup failed, creating appointment")
		return nil
	}
	if !found {
		return nil
	}
	existing, err := s.appointments.FindByID(ctx, id)
	if err != nil {
		s.log.Warn().Err(err).Str("appointment_id", id).Msg("idempotent appointment not found, creating a new one")
		return nil
	}
	s.log.Info().Str("appointment_id", id).Msg("idempotent replay")
	return existing
}

// CreateDirect is the administrative creation path. The doctor is optional.
func (s *AppointmentService) CreateDirect(ctx context.Context, in ports.CreateAppointmentInput) (*domain.Appointment, error) {
	if in.Date.IsZero() {
		return nil, domain.ErrMissingDate
	}
	if in.PatientID == "" {
		return nil, domain.ErrMissingPatient
	}
	if in.DoctorID != "" {
		if err := s.requireDoctor(ctx, in.DoctorID); err != nil {
			return nil, err
		}
	}

	created, err := s.appointments.Create(ctx, &domain.Appointment{
		PatientID: in.PatientID,
		DoctorID:  in.DoctorID,
		Date:      in.Date.UTC(),
		Status:    domain.StatusPending,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrMissingPatient) || errors.Is(err, domain.ErrInvalidDoctor) {
			return nil, err
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.record(created, domain.EventCreated, in.ActorID)
	s.log.Info().Str("appointment_id", created.ID).Str("actor_id", in.ActorID).Msg("appointment created")
	return created, nil
}

// AssignDoctor attaches a doctor to an appointment, replacing any previous
// assignment.
func (s *AppointmentService) AssignDoctor(ctx context.Context, appointmentID, doctorID, actorID string) (*domain.Appointment, error) {
	if appointmentID == "" || doctorID == "" {
		return nil, domain.ErrMissingIDs
	}
	if _, err := s.appointments.FindByID(ctx, appointmentID); err != nil {
		return nil, lookupErr("assign doctor", err)
	}
	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	updated, err := s.appointments.AssignDoctor(ctx, appointmentID, doctorID)
	if err != nil {
		return nil, lookupErr("assign doctor", err)
	}

	s.record(updated, domain.EventAssigned, actorID)
	s.log.Info().Str("appointment_id", appointmentID).Str("doctor_id", doctorID).Msg("doctor assigned")
	return updated, nil
}

// requireDoctor fails with domain.ErrInvalidDoctor unless id names an existing
// user holding the doctor role.
func (s *AppointmentService) requireDoctor(ctx context.Context, id string) error {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrInvalidDoctor
		}
		return fmt.Errorf("find doctor: %w", err)
	}
	if u.Role != domain.RoleDoctor {
		return domain.ErrInvalidDoctor
	}
	return nil
}

// Resolve confirms or cancels an appointment on behalf of its assigned doctor.
// The current status is not checked, so a resolved appointment can be
// resolved again.
func (s *AppointmentService) Resolve(ctx context.Context, appointmentID string, action domain.ResolveAction, callerID string) (domain.AppointmentStatus, error) {
	status, err := action.Status()
	if err != nil {
		return "", err
	}
	if appointmentID == "" {
		return "", domain.ErrAppointmentNotFound
	}

	a, err := s.appointments.FindByID(ctx, appointmentID)
	if err != nil {
		return "", lookupErr("resolve appointment", err)
	}
	if !a.HasDoctor() || a.DoctorID != callerID {
		return "", domain.ErrForbidden
	}

	if err := s.appointments.SetStatus(ctx, appointmentID, callerID, status); err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			return "", err
		}
		return "", fmt.Errorf("resolve appointment: %w", err)
	}

	a.Status = status
	evt := domain.EventConfirmed
	if status == domain.StatusCancelled {
		evt = domain.EventCancelled
	}
	s.record(a, evt, callerID)
	s.log.Info().Str("appointment_id", appointmentID).Str("status", string(status)).Msg("appointment resolved")
	return status, nil
}

func (s *AppointmentService) ListForPatient(ctx context.Context, patientID string) ([]*domain.Appointment, error) {
	if patientID == "" {
		return nil, domain.ErrMissingPatient
	}
	list, err := s.appointments.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list patient appointments: %w", err)
	}
	return list, nil
}

func (s *AppointmentService) ListForDoctor(ctx context.Context, doctorID string) ([]*domain.Appointment, error) {
	list, err := s.appointments.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list doctor appointments: %w", err)
	}
	return list, nil
}

// History returns the audit trail of an appointment, oldest first.
func (s *AppointmentService) History(ctx context.Context, appointmentID string) ([]*domain.AppointmentEvent, error) {
	if _, err := s.appointments.FindByID(ctx, appointmentID); err != nil {
		return nil, lookupErr("appointment history", err)
	}
	events, err := s.history.ListByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("appointment history: %w", err)
	}
	return events, nil
}

func (s *AppointmentService) record(a *domain.Appointment, typ domain.AppointmentEventType, actorID string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(domain.AppointmentEvent{
		AppointmentID: a.ID,
		Type:          typ,
		ActorID:       actorID,
		DoctorID:      a.DoctorID,
		Status:        a.Status,
		At:            s.now().UTC(),
	})
}

func lookupErr(op string, err error) error {
	if errors.Is(err, domain.ErrAppointmentNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
