package domain

import "time"

// AppointmentStatus represents the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Valid reports whether s is one of the enumerated statuses.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// CanResolve reports whether the strict state machine allows moving from s to
// next. Resolution does not consult it: a doctor may re-resolve a confirmed or
// cancelled appointment.
func (s AppointmentStatus) CanResolve(next AppointmentStatus) bool {
	return s == StatusPending && (next == StatusConfirmed || next == StatusCancelled)
}

// ResolveAction is the doctor's decision on an appointment.
type ResolveAction string

const (
	ActionConfirm ResolveAction = "confirmer"
	ActionCancel  ResolveAction = "annuler"
)

// Status maps the action to the status it writes.
func (a ResolveAction) Status() (AppointmentStatus, error) {
	switch a {
	case ActionConfirm:
		return StatusConfirmed, nil
	case ActionCancel:
		return StatusCancelled, nil
	}
	return "", ErrInvalidAction
}

// Appointment links a patient, an optional doctor and a date.
type Appointment struct {
	ID        string            `json:"id"`
	PatientID string            `json:"patient_id"`
	DoctorID  string            `json:"doctor_id,omitempty"`
	Date      time.Time         `json:"date"`
	Status    AppointmentStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`

	// Populated by list queries only.
	Patient *UserRef `json:"patient,omitempty"`
	Doctor  *UserRef `json:"doctor,omitempty"`
}

// HasDoctor reports whether a doctor has been assigned.
func (a *Appointment) HasDoctor() bool { return a.DoctorID != "" }

// AppointmentEventType names an entry of an appointment's audit trail.
type AppointmentEventType string

const (
	EventRequested AppointmentEventType = "requested"
	EventCreated   AppointmentEventType = "created"
	EventAssigned  AppointmentEventType = "assigned"
	EventConfirmed AppointmentEventType = "confirmed"
	EventCancelled AppointmentEventType = "cancelled"
)

// AppointmentEvent records a single mutation of an appointment.
type AppointmentEvent struct {
	AppointmentID string               `json:"appointment_id"`
	Type          AppointmentEventType `json:"type"`
	ActorID       string               `json:"actor_id"`
	DoctorID      string               `json:"doctor_id,omitempty"`
	Status        AppointmentStatus    `json:"status"`
	At            time.Time            `json:"at"`
}
