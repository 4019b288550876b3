package mongo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/clinicflow/rdv-api/internal/core/domain"
)

func TestRoleCatalog(t *testing.T) {
	doctor, patient := primitive.NewObjectID(), primitive.NewObjectID()
	c := newRoleCatalog([]roleDoc{
		{ID: doctor, Name: "Medecin", Holders: 3},
		{ID: patient, Name: "Patient"},
		{ID: primitive.NewObjectID(), Name: "Infirmier"},
	})

	if id, ok := c.ID(domain.RoleDoctor); !ok || id != doctor {
		t.Fatalf("doctor id: %v %v", id, ok)
	}
	if role, ok := c.Name(patient); !ok || role != domain.RolePatient {
		t.Fatalf("patient name: %v %v", role, ok)
	}
	if _, ok := c.ID(domain.RoleReceptionist); ok {
		t.Fatalf("receptionist was never loaded")
	}
	if _, ok := c.Name(primitive.NilObjectID); ok {
		t.Fatalf("nil id must not resolve")
	}
	if got := len(c.Records()); got != 2 {
		t.Fatalf("unknown role names must be skipped, got %d records", got)
	}
}

func TestAppointmentDocToDomain(t *testing.T) {
	patient, doctor := primitive.NewObjectID(), primitive.NewObjectID()
	date := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	a := appointmentDoc{ID: primitive.NewObjectID(), Patient: patient, Date: date, Status: "pending"}.toDomain()
	if a.HasDoctor() || a.PatientID != patient.Hex() || !a.Date.Equal(date) {
		t.Fatalf("unexpected appointment: %+v", a)
	}

	a = appointmentDoc{Patient: patient, Doctor: &doctor, Status: "confirmed"}.toDomain()
	if a.DoctorID != doctor.Hex() || a.Status != domain.StatusConfirmed {
		t.Fatalf("unexpected appointment: %+v", a)
	}
}

// The tests below need a reachable MongoDB, e.g.
// MONGO_TEST_URI=mongodb://localhost:27017 go test ./internal/infrastructure/db/mongo/
func testDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx := context.Background()
	client, db, err := Connect(ctx, Config{
		URI:      uri,
		Database: fmt.Sprintf("clinic_test_%d", time.Now().UnixNano()),
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}

func TestStore_Integration(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()

	store, err := Bootstrap(ctx, db)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if got := len(store.Catalog.Records()); got != len(domain.Roles) {
		t.Fatalf("expected %d seeded roles, got %d", len(domain.Roles), got)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	newUser := func(name string, role domain.Role) *domain.User {
		t.Helper()
		u, err := store.Users.Create(ctx, &domain.User{
			Username: name, Email: name + "@example.com", PasswordHash: "hash", Role: role, CreatedAt: now,
		})
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		return u
	}
	patient := newUser("pat", domain.RolePatient)
	doctor := newUser("doc", domain.RoleDoctor)

	t.Run("users", func(t *testing.T) {
		_, err := store.Users.Create(ctx, &domain.User{Username: "x", Email: "pat@example.com", Role: domain.RoleDoctor})
		if !errors.Is(err, domain.ErrDuplicateEmail) {
			t.Fatalf("expected ErrDuplicateEmail, got %v", err)
		}
		found, err := store.Users.FindByEmail(ctx, "doc@example.com")
		if err != nil || found.ID != doctor.ID || found.Role != domain.RoleDoctor {
			t.Fatalf("find by email: %v %+v", err, found)
		}
		if _, err := store.Users.FindByID(ctx, "not-hex"); !errors.Is(err, domain.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
		n, err := store.Users.CountByRole(ctx, domain.RolePatient)
		if err != nil || n != 1 {
			t.Fatalf("count patients: %d %v", n, err)
		}
	})

	t.Run("receptionist seats", func(t *testing.T) {
		for i := 0; i < domain.ReceptionistQuota; i++ {
			if err := store.Roles.ReserveSeat(ctx, domain.RoleReceptionist, domain.ReceptionistQuota); err != nil {
				t.Fatalf("seat %d: %v", i+1, err)
			}
		}
		if err := store.Roles.ReserveSeat(ctx, domain.RoleReceptionist, domain.ReceptionistQuota); !errors.Is(err, domain.ErrQuotaExceeded) {
			t.Fatalf("expected ErrQuotaExceeded, got %v", err)
		}
		if err := store.Roles.ReleaseSeat(ctx, domain.RoleReceptionist); err != nil {
			t.Fatalf("release: %v", err)
		}
		if err := store.Roles.ReserveSeat(ctx, domain.RoleReceptionist, domain.ReceptionistQuota); err != nil {
			t.Fatalf("seat after release: %v", err)
		}

		// Reseeding recomputes holders from the users collection.
		if _, err := store.Roles.Seed(ctx); err != nil {
			t.Fatalf("reseed: %v", err)
		}
		if err := store.Roles.ReserveSeat(ctx, domain.RoleReceptionist, domain.ReceptionistQuota); err != nil {
			t.Fatalf("seat after reseed: %v", err)
		}
	})

	t.Run("appointments", func(t *testing.T) {
		later, err := store.Appointments.Create(ctx, &domain.Appointment{
			PatientID: patient.ID, Date: now.Add(48 * time.Hour), Status: domain.StatusPending, CreatedAt: now,
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		earlier, _ := store.Appointments.Create(ctx, &domain.Appointment{
			PatientID: patient.ID, Date: now, Status: domain.StatusPending, CreatedAt: now,
		})

		if err := store.Appointments.SetStatus(ctx, later.ID, doctor.ID, domain.StatusConfirmed); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("unassigned appointment must be forbidden, got %v", err)
		}

		assigned, err := store.Appointments.AssignDoctor(ctx, later.ID, doctor.ID)
		if err != nil || assigned.DoctorID != doctor.ID {
			t.Fatalf("assign: %v %+v", err, assigned)
		}
		if err := store.Appointments.SetStatus(ctx, later.ID, doctor.ID, domain.StatusConfirmed); err != nil {
			t.Fatalf("set status: %v", err)
		}

		list, err := store.Appointments.ListByPatient(ctx, patient.ID)
		if err != nil || len(list) != 2 {
			t.Fatalf("list by patient: %v %d", err, len(list))
		}
		if list[0].ID != earlier.ID || list[1].Doctor == nil || list[1].Doctor.Username != "doc" {
			t.Fatalf("unexpected patient listing: %+v %+v", list[0], list[1])
		}
		if list[1].Status != domain.StatusConfirmed {
			t.Fatalf("expected confirmed, got %s", list[1].Status)
		}

		docList, err := store.Appointments.ListByDoctor(ctx, doctor.ID)
		if err != nil || len(docList) != 1 || docList[0].Patient == nil || docList[0].Patient.Email != "pat@example.com" {
			t.Fatalf("list by doctor: %v %+v", err, docList)
		}

		if _, err := store.Appointments.FindByID(ctx, primitive.NewObjectID().Hex()); !errors.Is(err, domain.ErrAppointmentNotFound) {
			t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
		}
	})

	t.Run("audit", func(t *testing.T) {
		for i, typ := range []domain.AppointmentEventType{domain.EventRequested, domain.EventAssigned} {
			err := store.Audit.InsertEvent(ctx, &domain.AppointmentEvent{
				AppointmentID: "a1", Type: typ, ActorID: "u1", Status: domain.StatusPending, At: now.Add(time.Duration(i) * time.Second),
			})
			if err != nil {
				t.Fatalf("insert: %v", err)
			}
		}
		events, err := store.Audit.ListByAppointment(ctx, "a1")
		if err != nil || len(events) != 2 || events[0].Type != domain.EventRequested {
			t.Fatalf("list events: %v %+v", err, events)
		}
	})
}
