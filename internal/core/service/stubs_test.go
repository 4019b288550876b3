package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/clinicflow/rdv-api/internal/core/domain"
	"github.com/clinicflow/rdv-api/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stub repositories
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	byID map[string]*domain.User
	seq  int
	err  error // if set, every call returns it
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{byID: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.byID {
		if u.Email == user.Email {
			return nil, domain.ErrDuplicateEmail
		}
	}
	r.seq++
	c := cloneUser(user)
	c.ID = fmt.Sprintf("u%d", r.seq)
	r.byID[c.ID] = c
	return cloneUser(c), nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.byID {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) List(_ context.Context) ([]*domain.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make([]*domain.User, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *stubUserRepo) CountByRole(_ context.Context, role domain.Role) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	var n int64
	for _, u := range r.byID {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// stubRoleRepo mirrors the conditional increment performed by the Mongo
// implementation.
type stubRoleRepo struct {
	mu      sync.Mutex
	holders map[domain.Role]int64
}

func newStubRoleRepo() *stubRoleRepo {
	return &stubRoleRepo{holders: make(map[domain.Role]int64)}
}

func (r *stubRoleRepo) ReserveSeat(_ context.Context, role domain.Role, limit int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.holders[role] >= limit {
		return domain.ErrQuotaExceeded
	}
	r.holders[role]++
	return nil
}

func (r *stubRoleRepo) ReleaseSeat(_ context.Context, role domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.holders[role] > 0 {
		r.holders[role]--
	}
	return nil
}

type stubAppointmentRepo struct {
	byID map[string]*domain.Appointment
	seq  int
}

func newStubAppointmentRepo() *stubAppointmentRepo {
	return &stubAppointmentRepo{byID: make(map[string]*domain.Appointment)}
}

func cloneAppointment(a *domain.Appointment) *domain.Appointment {
	clone := *a
	return &clone
}

func (r *stubAppointmentRepo) Create(_ context.Context, a *domain.Appointment) (*domain.Appointment, error) {
	r.seq++
	c := cloneAppointment(a)
	c.ID = fmt.Sprintf("a%d", r.seq)
	r.byID[c.ID] = c
	return cloneAppointment(c), nil
}

func (r *stubAppointmentRepo) FindByID(_ context.Context, id string) (*domain.Appointment, error) {
	a, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrAppointmentNotFound
	}
	return cloneAppointment(a), nil
}

func (r *stubAppointmentRepo) AssignDoctor(_ context.Context, id, doctorID string) (*domain.Appointment, error) {
	a, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrAppointmentNotFound
	}
	a.DoctorID = doctorID
	return cloneAppointment(a), nil
}

func (r *stubAppointmentRepo) SetStatus(_ context.Context, id, doctorID string, status domain.AppointmentStatus) error {
	a, ok := r.byID[id]
	if !ok || a.DoctorID != doctorID {
		return domain.ErrForbidden
	}
	a.Status = status
	return nil
}

func (r *stubAppointmentRepo) ListByPatient(_ context.Context, patientID string) ([]*domain.Appointment, error) {
	var out []*domain.Appointment
	for _, a := range r.byID {
		if a.PatientID == patientID {
			out = append(out, cloneAppointment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *stubAppointmentRepo) ListByDoctor(_ context.Context, doctorID string) ([]*domain.Appointment, error) {
	var out []*domain.Appointment
	for _, a := range r.byID {
		if a.DoctorID == doctorID {
			out = append(out, cloneAppointment(a))
		}
	}
	return out, nil
}

// stubAudit doubles as recorder and history store.
type stubAudit struct {
	events []domain.AppointmentEvent
}

func (s *stubAudit) Record(e domain.AppointmentEvent) { s.events = append(s.events, e) }

func (s *stubAudit) InsertEvent(_ context.Context, e *domain.AppointmentEvent) error {
	s.events = append(s.events, *e)
	return nil
}

func (s *stubAudit) ListByAppointment(_ context.Context, id string) ([]*domain.AppointmentEvent, error) {
	var out []*domain.AppointmentEvent
	for i := range s.events {
		if s.events[i].AppointmentID == id {
			e := s.events[i]
			out = append(out, &e)
		}
	}
	return out, nil
}

type stubIdempotency struct {
	keys map[string]string
}

func (s *stubIdempotency) Lookup(_ context.Context, key string) (string, bool, error) {
	id, ok := s.keys[key]
	return id, ok, nil
}

func (s *stubIdempotency) Remember(_ context.Context, key, id string) error {
	s.keys[key] = id
	return nil
}

type stubGuard struct {
	failures map[string]int
	limit    int
}

func (g *stubGuard) Locked(_ context.Context, email string) (bool, error) {
	return g.failures[email] >= g.limit, nil
}

func (g *stubGuard) RecordFailure(_ context.Context, email string) error {
	g.failures[email]++
	return nil
}

func (g *stubGuard) Reset(_ context.Context, email string) error {
	delete(g.failures, email)
	return nil
}

var (
	_ ports.UserRepository        = (*stubUserRepo)(nil)
	_ ports.RoleRepository        = (*stubRoleRepo)(nil)
	_ ports.AppointmentRepository = (*stubAppointmentRepo)(nil)
	_ ports.AuditRepository       = (*stubAudit)(nil)
	_ ports.AuditRecorder         = (*stubAudit)(nil)
	_ ports.IdempotencyStore      = (*stubIdempotency)(nil)
	_ ports.LoginGuard            = (*stubGuard)(nil)
)
