package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/clinicflow/rdv-api/internal/core/domain"
)

const collectionAppointments = "rendezvous"

type appointmentDoc struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty"`
	Patient   primitive.ObjectID  `bson:"patient"`
	Doctor    *primitive.ObjectID `bson:"doctor,omitempty"`
	Date      time.Time           `bson:"date"`
	Status    string              `bson:"status"`
	CreatedAt time.Time           `bson:"created_at"`
}

type userRefDoc struct {
	ID       primitive.ObjectID `bson:"_id"`
	Username string             `bson:"username"`
	Email    string             `bson:"email"`
}

// appointmentView is an appointment with its counterpart joined by $lookup.
type appointmentView struct {
	appointmentDoc `bson:",inline"`
	PatientRef     []userRefDoc `bson:"patient_ref,omitempty"`
	DoctorRef      []userRefDoc `bson:"doctor_ref,omitempty"`
}

// AppointmentRepository implements ports.AppointmentRepository.
type AppointmentRepository struct {
	col *mongo.Collection
}

func NewAppointmentRepository(db *mongo.Database) *AppointmentRepository {
	return &AppointmentRepository{col: db.Collection(collectionAppointments)}
}

func (r *AppointmentRepository) Create(ctx context.Context, a *domain.Appointment) (*domain.Appointment, error) {
	patient, err := primitive.ObjectIDFromHex(a.PatientID)
	if err != nil {
		return nil, domain.ErrMissingPatient
	}
	doc := appointmentDoc{
		Patient:   patient,
		Date:      a.Date,
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt,
	}
	if a.DoctorID != "" {
		doctor, err := primitive.ObjectIDFromHex(a.DoctorID)
		if err != nil {
			return nil, domain.ErrInvalidDoctor
		}
		doc.Doctor = &doctor
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid
	}
	return doc.toDomain(), nil
}

func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*domain.Appointment, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrAppointmentNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc appointmentDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	return doc.toDomain(), nil
}

// AssignDoctor overwrites the doctor reference and returns the updated document.
func (r *AppointmentRepository) AssignDoctor(ctx context.Context, id, doctorID string) (*domain.Appointment, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrAppointmentNotFound
	}
	doctor, err := primitive.ObjectIDFromHex(doctorID)
	if err != nil {
		return nil, domain.ErrInvalidDoctor
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc appointmentDoc
	err = r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"doctor": doctor}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("assign doctor: %w", err)
	}
	return doc.toDomain(), nil
}

// SetStatus filters on both the appointment and its doctor, so the ownership
// check and the write are a single operation.
func (r *AppointmentRepository) SetStatus(ctx context.Context, id, doctorID string, status domain.AppointmentStatus) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrAppointmentNotFound
	}
	doctor, err := primitive.ObjectIDFromHex(doctorID)
	if err != nil {
		return domain.ErrForbidden
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": oid, "doctor": doctor},
		bson.M{"$set": bson.M{"status": string(status)}},
	)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrForbidden
	}
	return nil
}

func (r *AppointmentRepository) ListByPatient(ctx context.Context, patientID string) ([]*domain.Appointment, error) {
	patient, err := primitive.ObjectIDFromHex(patientID)
	if err != nil {
		return nil, domain.ErrMissingPatient
	}
	return r.list(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"patient": patient}}},
		{{Key: "$sort", Value: bson.D{{Key: "date", Value: 1}}}},
		lookupUser("doctor", "doctor_ref"),
	})
}

func (r *AppointmentRepository) ListByDoctor(ctx context.Context, doctorID string) ([]*domain.Appointment, error) {
	doctor, err := primitive.ObjectIDFromHex(doctorID)
	if err != nil {
		return []*domain.Appointment{}, nil
	}
	return r.list(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"doctor": doctor}}},
		lookupUser("patient", "patient_ref"),
	})
}

func lookupUser(field, as string) bson.D {
	return bson.D{{Key: "$lookup", Value: bson.M{
		"from":         collectionUsers,
		"localField":   field,
		"foreignField": "_id",
		"as":           as,
	}}}
}

func (r *AppointmentRepository) list(ctx context.Context, pipeline mongo.Pipeline) ([]*domain.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	var views []appointmentView
	if err := cur.All(ctx, &views); err != nil {
		return nil, fmt.Errorf("decode appointments: %w", err)
	}

	out := make([]*domain.Appointment, 0, len(views))
	for _, v := range views {
		a := v.toDomain()
		if len(v.PatientRef) > 0 {
			a.Patient = v.PatientRef[0].toDomain()
		}
		if len(v.DoctorRef) > 0 {
			a.Doctor = v.DoctorRef[0].toDomain()
		}
		out = append(out, a)
	}
	return out, nil
}

// EnsureIndexes creates the indexes backing the patient and doctor listings.
func (r *AppointmentRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "patient", Value: 1}, {Key: "date", Value: 1}}},
		{Keys: bson.D{{Key: "doctor", Value: 1}}},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func (d appointmentDoc) toDomain() *domain.Appointment {
	a := &domain.Appointment{
		ID:        d.ID.Hex(),
		PatientID: d.Patient.Hex(),
		Date:      d.Date.UTC(),
		Status:    domain.AppointmentStatus(d.Status),
		CreatedAt: d.CreatedAt.UTC(),
	}
	if d.Doctor != nil {
		a.DoctorID = d.Doctor.Hex()
	}
	return a
}

func (u userRefDoc) toDomain() *domain.UserRef {
	return &domain.UserRef{ID: u.ID.Hex(), Username: u.Username, Email: u.Email}
}
