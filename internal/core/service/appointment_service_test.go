package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicflow/rdv-api/internal/core/domain"
	"github.com/clinicflow/rdv-api/internal/core/ports"
)

type apptFixture struct {
	svc     *AppointmentService
	repo    *stubAppointmentRepo
	users   *stubUserRepo
	audit   *stubAudit
	idem    *stubIdempotency
	patient *domain.User
	doctor  *domain.User
	other   *domain.User
}

func newApptFixture(t *testing.T) *apptFixture {
	t.Helper()
	f := &apptFixture{
		repo:  newStubAppointmentRepo(),
		users: newStubUserRepo(),
		audit: &stubAudit{},
		idem:  &stubIdempotency{keys: make(map[string]string)},
	}
	ctx := context.Background()
	f.patient, _ = f.users.Create(ctx, &domain.User{Username: "pat", Email: "pat@example.com", Role: domain.RolePatient})
	f.doctor, _ = f.users.Create(ctx, &domain.User{Username: "docx", Email: "x@example.com", Role: domain.RoleDoctor})
	f.other, _ = f.users.Create(ctx, &domain.User{Username: "docy", Email: "y@example.com", Role: domain.RoleDoctor})
	f.svc = NewAppointmentService(f.repo, f.users, f.audit, f.audit, f.idem, zerolog.Nop())
	return f
}

var apptDate = time.Date(2026, 11, 3, 9, 30, 0, 0, time.UTC)

func TestAppointmentService_Request(t *testing.T) {
	f := newApptFixture(t)

	a, err := f.svc.Request(context.Background(), ports.RequestAppointmentInput{PatientID: f.patient.ID, Date: apptDate})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if a.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", a.Status)
	}
	if a.HasDoctor() {
		t.Fatalf("doctor must be unset, got %q", a.DoctorID)
	}
	if a.CreatedAt.IsZero() {
		t.Fatalf("createdAt must be set")
	}
	if len(f.audit.events) != 1 || f.audit.events[0].Type != domain.EventRequested {
		t.Fatalf("expected requested event, got %+v", f.audit.events)
	}
}

func TestAppointmentService_Request_Validation(t *testing.T) {
	f := newApptFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Request(ctx, ports.RequestAppointmentInput{PatientID: f.patient.ID}); !errors.Is(err, domain.ErrMissingDate) {
		t.Fatalf("expected ErrMissingDate, got %v", err)
	}
	if _, err := f.svc.Request(ctx, ports.RequestAppointmentInput{Date: apptDate}); !errors.Is(err, domain.ErrMissingPatient) {
		t.Fatalf("expected ErrMissingPatient, got %v", err)
	}
}

func TestAppointmentService_Request_Idempotent(t *testing.T) {
	f := newApptFixture(t)
	ctx := context.Background()
	in := ports.RequestAppointmentInput{PatientID: f.patient.ID, Date: apptDate, IdempotencyKey: "k1"}

	first, err := f.svc.Request(ctx, in)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	second, err := f.svc.Request(ctx, in)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("replay created a new appointment: %s != %s", first.ID, second.ID)
	}
	if len(f.repo.byID) != 1 {
		t.Fatalf("expected 1 stored appointment, got %d", len(f.repo.byID))
	}

	in.IdempotencyKey = "k2"
	third, _ := f.svc.Request(ctx, in)
	if third.ID == first.ID {
		t.Fatalf("a new key must create a new appointment")
	}
}

func TestAppointmentService_CreateDirect(t *testing.T) {
	f := newApptFixture(t)
	ctx := context.Background()

	a, err := f.svc.CreateDirect(ctx, ports.CreateAppointmentInput{PatientID: f.patient.ID, DoctorID: f.doctor.ID, Date: apptDate})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.DoctorID != f.doctor.ID || a.Status != domain.StatusPending {
		t.Fatalf("unexpected appointment: %+v", a)
	}

	if _, err := f.svc.CreateDirect(ctx, ports.CreateAppointmentInput{PatientID: f.patient.ID, Date: apptDate}); err != nil {
		t.Fatalf("create without doctor: %v", err)
	}
	if _, err := f.svc.CreateDirect(ctx, ports.CreateAppointmentInput{PatientID: f.patient.ID, DoctorID: f.patient.ID, Date: apptDate}); !errors.Is(err, domain.ErrInvalidDoctor) {
		t.Fatalf("expected ErrInvalidDoctor, got %v", err)
	}
	if _, err := f.svc.CreateDirect(ctx, ports.CreateAppointmentInput{DoctorID: f.doctor.ID, Date: apptDate}); !errors.Is(err, domain.ErrMissingPatient) {
		t.Fatalf("expected ErrMissingPatient, got %v", err)
	}
	if _, err := f.svc.CreateDirect(ctx, ports.CreateAppointmentInput{PatientID: f.patient.ID}); !errors.Is(err, domain.ErrMissingDate) {
		t.Fatalf("expected ErrMissingDate, got %v", err)
	}
}

func TestAppointmentService_AssignDoctor(t *testing.T) {
	f := newApptFixture(t)
	ctx := context.Background()
	a, _ := f.svc.Request(ctx, ports.RequestAppointmentInput{PatientID: f.patient.ID, Date: apptDate})

	cases := []struct {
		name     string
		apptID   string
		doctorID string
		want     error
	}{
		{"missing ids", "", f.doctor.ID, domain.ErrMissingIDs},
		{"unknown appointment", "nope", f.doctor.ID, domain.ErrAppointmentNotFound},
		{"unknown doctor", a.ID, "ghost", domain.ErrInvalidDoctor},
		{"not a doctor", a.ID, f.patient.ID, domain.ErrInvalidDoctor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.AssignDoctor(ctx, tc.apptID, tc.doctorID, "sec"); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	updated, err := f.svc.AssignDoctor(ctx, a.ID, f.doctor.ID, "sec")
	if err != nil || updated.DoctorID != f.doctor.ID {
		t.Fatalf("assign failed: %v %+v", err, updated)
	}

	// Reassignment overwrites.
	updated, err = f.svc.AssignDoctor(ctx, a.ID, f.other.ID, "sec")
	if err != nil || updated.DoctorID != f.other.ID {
		t.Fatalf("reassign failed: %v %+v", err, updated)
	}
}

func TestAppointmentService_Resolve_Forbidden(t *testing.T) {
	f := newApptFixture(t)
	ctx := context.Background()
	a, _ := f.svc.Request(ctx, ports.RequestAppointmentInput{PatientID: f.patient.ID, Date: apptDate})

	// No doctor assigned yet.
	if _, err := f.svc.Resolve(ctx, a.ID, domain.ActionConfirm, f.doctor.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden without doctor, got %v", err)
	}

	_, _ = f.svc.AssignDoctor(ctx, a.ID, f.doctor.ID, "sec")
	if _, err := f.svc.Resolve(ctx, a.ID, domain.ActionConfirm, f.other.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for another doctor, got %v", err)
	}
	if _, err := f.svc.Resolve(ctx, "nope", domain.ActionConfirm, f.doctor.ID); !errors.Is(err, domain.ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
	if _, err := f.svc.Resolve(ctx, a.ID, "valider", f.doctor.ID); !errors.Is(err, domain.ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
	if got := f.repo.byID[a.ID].Status; got != domain.StatusPending {
		t.Fatalf("status must be untouched, got %s", got)
	}
}

func TestAppointmentService_Lists(t *testing.T) {
	f := newApptFixture(t)
	ctx := context.Background()
	later, _ := f.svc.Request(ctx, ports.RequestAppointmentInput{PatientID: f.patient.ID, Date: apptDate.Add(48 * time.Hour)})
	earlier, _ := f.svc.Request(ctx, ports.RequestAppointmentInput{PatientID: f.patient.ID, Date: apptDate})
	_, _ = f.svc.AssignDoctor(ctx, later.ID, f.doctor.ID, "sec")

	list, err := f.svc.ListForPatient(ctx, f.patient.ID)
	if err != nil {
		t.Fatalf("patient list: %v", err)
	}
	if len(list) != 2 || list[0].ID != earlier.ID || list[1].ID != later.ID {
		t.Fatalf("expected ascending date order, got %+v", list)
	}

	docList, err := f.svc.ListForDoctor(ctx, f.doctor.ID)
	if err != nil || len(docList) != 1 || docList[0].ID != later.ID {
		t.Fatalf("doctor list: %v %+v", err, docList)
	}

	if _, err := f.svc.ListForPatient(ctx, ""); !errors.Is(err, domain.ErrMissingPatient) {
		t.Fatalf("expected ErrMissingPatient, got %v", err)
	}
}

func TestAppointmentService_History(t *testing.T) {
	f := newApptFixture(t)
	ctx := context.Background()
	a, _ := f.svc.Request(ctx, ports.RequestAppointmentInput{PatientID: f.patient.ID, Date: apptDate})
	_, _ = f.svc.AssignDoctor(ctx, a.ID, f.doctor.ID, "sec")
	_, _ = f.svc.Resolve(ctx, a.ID, domain.ActionCancel, f.doctor.ID)

	events, err := f.svc.History(ctx, a.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	want := []domain.AppointmentEventType{domain.EventRequested, domain.EventAssigned, domain.EventCancelled}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, typ := range want {
		if events[i].Type != typ {
			t.Fatalf("event %d: expected %s, got %s", i, typ, events[i].Type)
		}
	}
	if _, err := f.svc.History(ctx, "nope"); !errors.Is(err, domain.ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
}

// TestAppointmentLifecycle walks a patient request through assignment and
// resolution, including the doctor changing their mind after confirming.
func TestAppointmentLifecycle(t *testing.T) {
	auth := newAuthFixture()
	ctx := context.Background()

	patient, err := auth.svc.Register(ctx, registerInput("pat", "pat@example.com", "pw", domain.RolePatient))
	if err != nil {
		t.Fatalf("register patient: %v", err)
	}
	doctorX, _ := auth.svc.Register(ctx, registerInput("x", "x@example.com", "pw", domain.RoleDoctor))
	doctorY, _ := auth.svc.Register(ctx, registerInput("y", "y@example.com", "pw", domain.RoleDoctor))
	_, _ = auth.svc.Register(ctx, registerInput("sec", "sec@example.com", "pw", domain.RoleReceptionist))

	login := func(email string) domain.Identity {
		t.Helper()
		res, err := auth.svc.Login(ctx, email, "pw")
		if err != nil {
			t.Fatalf("login %s: %v", email, err)
		}
		id, err := auth.tokens.Verify(res.Token)
		if err != nil {
			t.Fatalf("verify %s: %v", email, err)
		}
		return id
	}

	repo := newStubAppointmentRepo()
	svc := NewAppointmentService(repo, auth.users, &stubAudit{}, nil, nil, zerolog.Nop())

	// Scenario 1: patient requests an appointment.
	p := login("pat@example.com")
	if p.SubjectID != patient.ID {
		t.Fatalf("token subject mismatch")
	}
	a, err := svc.Request(ctx, ports.RequestAppointmentInput{PatientID: p.SubjectID, Date: apptDate})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	list, _ := svc.ListForPatient(ctx, p.SubjectID)
	if len(list) != 1 || list[0].Status != domain.StatusPending || list[0].HasDoctor() {
		t.Fatalf("unexpected patient list: %+v", list)
	}

	// Scenario 2: receptionist assigns doctor X.
	sec := login("sec@example.com")
	updated, err := svc.AssignDoctor(ctx, a.ID, doctorX.ID, sec.SubjectID)
	if err != nil || updated.DoctorID != doctorX.ID {
		t.Fatalf("assign: %v %+v", err, updated)
	}

	// Scenario 3: doctor X confirms, then cancels; both succeed.
	x := login("x@example.com")
	if status, err := svc.Resolve(ctx, a.ID, domain.ActionConfirm, x.SubjectID); err != nil || status != domain.StatusConfirmed {
		t.Fatalf("confirm: %v %s", err, status)
	}
	if status, err := svc.Resolve(ctx, a.ID, domain.ActionCancel, x.SubjectID); err != nil || status != domain.StatusCancelled {
		t.Fatalf("re-resolve: %v %s", err, status)
	}
	if got := repo.byID[a.ID].Status; got != domain.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got)
	}

	// Scenario 4: doctor Y is not assigned.
	y := login("y@example.com")
	if y.SubjectID != doctorY.ID {
		t.Fatalf("token subject mismatch")
	}
	if _, err := svc.Resolve(ctx, a.ID, domain.ActionConfirm, y.SubjectID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
