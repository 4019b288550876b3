package handler

import (
	"strings"
	"time"

	"github.com/clinicflow/rdv-api/internal/core/domain"
)

type requestAppointmentRequest struct {
	Date string `json:"date" validate:"max=64"`
}

type createAppointmentRequest struct {
	PatientID string `json:"patientId" validate:"omitempty,len=24,hexadecimal"`
	DoctorID  string `json:"medecinId" validate:"omitempty,len=24,hexadecimal"`
	Date      string `json:"date"      validate:"max=64"`
}

type assignDoctorRequest struct {
	AppointmentID string `json:"rdvId"     validate:"omitempty,len=24,hexadecimal"`
	DoctorID      string `json:"medecinId" validate:"omitempty,len=24,hexadecimal"`
}

type resolveAppointmentRequest struct {
	AppointmentID string `json:"rdvId"  validate:"omitempty,len=24,hexadecimal"`
	Action        string `json:"action" validate:"max=16"`
}

type userRefResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type appointmentResponse struct {
	ID        string           `json:"id"`
	PatientID string           `json:"patientId"`
	DoctorID  string           `json:"medecinId,omitempty"`
	Patient   *userRefResponse `json:"patient,omitempty"`
	Doctor    *userRefResponse `json:"medecin,omitempty"`
	Date      time.Time        `json:"date"`
	Status    string           `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
}

type appointmentEnvelope struct {
	Message string              `json:"message"`
	RDV     appointmentResponse `json:"rdv"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type appointmentEventResponse struct {
	Type     string    `json:"type"`
	ActorID  string    `json:"actorId"`
	DoctorID string    `json:"medecinId,omitempty"`
	Status   string    `json:"status"`
	At       time.Time `json:"at"`
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"}

// parseDate accepts an RFC 3339 timestamp or a plain calendar date. An empty
// string yields the zero time so the service reports the missing date.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, domain.ErrInvalidDate
}

func toUserRef(u *domain.UserRef) *userRefResponse {
	if u == nil {
		return nil
	}
	return &userRefResponse{ID: u.ID, Username: u.Username, Email: u.Email}
}

func toAppointmentResponse(a *domain.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:        a.ID,
		PatientID: a.PatientID,
		DoctorID:  a.DoctorID,
		Patient:   toUserRef(a.Patient),
		Doctor:    toUserRef(a.Doctor),
		Date:      a.Date,
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt,
	}
}

func toAppointmentList(list []*domain.Appointment) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}
