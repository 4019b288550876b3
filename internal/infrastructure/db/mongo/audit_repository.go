package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/clinicflow/rdv-api/internal/core/domain"
)

const collectionAppointmentEvents = "rendezvous_events"

type eventDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	AppointmentID string             `bson:"appointment_id"`
	Type          string             `bson:"type"`
	ActorID       string             `bson:"actor_id"`
	DoctorID      string             `bson:"doctor_id,omitempty"`
	Status        string             `bson:"status"`
	At            time.Time          `bson:"at"`
	ProcessedAt   time.Time          `bson:"processed_at"`
}

// AuditRepository implements ports.AuditRepository on the appointment events
// collection.
type AuditRepository struct {
	col *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{col: db.Collection(collectionAppointmentEvents)}
}

// InsertEvent persists an appointment event.
func (r *AuditRepository) InsertEvent(ctx context.Context, event *domain.AppointmentEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := eventDoc{
		AppointmentID: event.AppointmentID,
		Type:          string(event.Type),
		ActorID:       event.ActorID,
		DoctorID:      event.DoctorID,
		Status:        string(event.Status),
		At:            event.At.UTC(),
		ProcessedAt:   time.Now().UTC(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert appointment event: %w", err)
	}
	return nil
}

// ListByAppointment returns the events of one appointment, oldest first.
func (r *AuditRepository) ListByAppointment(ctx context.Context, appointmentID string) ([]*domain.AppointmentEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"appointment_id": appointmentID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find appointment events: %w", err)
	}
	var docs []eventDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode appointment events: %w", err)
	}

	out := make([]*domain.AppointmentEvent, 0, len(docs))
	for _, d := range docs {
		out = append(out, &domain.AppointmentEvent{
			AppointmentID: d.AppointmentID,
			Type:          domain.AppointmentEventType(d.Type),
			ActorID:       d.ActorID,
			DoctorID:      d.DoctorID,
			Status:        domain.AppointmentStatus(d.Status),
			At:            d.At.UTC(),
		})
	}
	return out, nil
}

func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "appointment_id", Value: 1}, {Key: "at", Value: 1}},
	})
	return err
}
