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

const collectionRoles = "roles"

type roleDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Holders   int64              `bson:"holders"`
	CreatedAt time.Time          `bson:"created_at"`
}

// RoleRepository implements ports.RoleRepository. The holders counter on
// each role document backs the receptionist quota.
type RoleRepository struct {
	col   *mongo.Collection
	users *mongo.Collection
}

func NewRoleRepository(db *mongo.Database) *RoleRepository {
	return &RoleRepository{
		col:   db.Collection(collectionRoles),
		users: db.Collection(collectionUsers),
	}
}

// Seed inserts any missing role, recomputes each role's holders from the users
// collection and returns the resulting catalog.
func (r *RoleRepository) Seed(ctx context.Context) (*RoleCatalog, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().UTC()
	for _, role := range domain.Roles {
		_, err := r.col.UpdateOne(ctx,
			bson.M{"name": string(role)},
			bson.M{"$setOnInsert": bson.M{"name": string(role), "holders": 0, "created_at": now}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return nil, fmt.Errorf("upsert role %s: %w", role, err)
		}
	}

	docs, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		n, err := r.users.CountDocuments(ctx, bson.M{"role_id": docs[i].ID})
		if err != nil {
			return nil, fmt.Errorf("count holders of %s: %w", docs[i].Name, err)
		}
		if n == docs[i].Holders {
			continue
		}
		if _, err := r.col.UpdateByID(ctx, docs[i].ID, bson.M{"$set": bson.M{"holders": n}}); err != nil {
			return nil, fmt.Errorf("reset holders of %s: %w", docs[i].Name, err)
		}
		docs[i].Holders = n
	}

	return newRoleCatalog(docs), nil
}

func (r *RoleRepository) all(ctx context.Context) ([]roleDoc, error) {
	cur, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find roles: %w", err)
	}
	var docs []roleDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}
	return docs, nil
}

// ReserveSeat increments holders only while it is below limit, so concurrent
// registrations cannot overshoot the quota.
func (r *RoleRepository) ReserveSeat(ctx context.Context, role domain.Role, limit int64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"name": string(role), "holders": bson.M{"$lt": limit}},
		bson.M{"$inc": bson.M{"holders": 1}},
	)
	if err != nil {
		return fmt.Errorf("reserve %s seat: %w", role, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrQuotaExceeded
	}
	return nil
}

func (r *RoleRepository) ReleaseSeat(ctx context.Context, role domain.Role) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.UpdateOne(ctx,
		bson.M{"name": string(role), "holders": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"holders": -1}},
	)
	if err != nil {
		return fmt.Errorf("release %s seat: %w", role, err)
	}
	return nil
}

// EnsureIndexes creates the unique index on role names.
func (r *RoleRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// RoleCatalog resolves role references to names. It is loaded once after
// seeding and is read-only afterwards.
type RoleCatalog struct {
	byName map[domain.Role]primitive.ObjectID
	byID   map[primitive.ObjectID]domain.Role
	roles  []domain.RoleRecord
}

func newRoleCatalog(docs []roleDoc) *RoleCatalog {
	c := &RoleCatalog{
		byName: make(map[domain.Role]primitive.ObjectID, len(docs)),
		byID:   make(map[primitive.ObjectID]domain.Role, len(docs)),
	}
	for _, d := range docs {
		role, ok := domain.ParseRole(d.Name)
		if !ok {
			continue
		}
		c.byName[role] = d.ID
		c.byID[d.ID] = role
		c.roles = append(c.roles, domain.RoleRecord{
			ID:        d.ID.Hex(),
			Name:      role,
			Holders:   d.Holders,
			CreatedAt: d.CreatedAt,
		})
	}
	return c
}

// ID returns the object id of role.
func (c *RoleCatalog) ID(role domain.Role) (primitive.ObjectID, bool) {
	id, ok := c.byName[role]
	return id, ok
}

// Name returns the role stored under id.
func (c *RoleCatalog) Name(id primitive.ObjectID) (domain.Role, bool) {
	role, ok := c.byID[id]
	return role, ok
}

// Records returns the roles as they were when the catalog was loaded.
func (c *RoleCatalog) Records() []domain.RoleRecord {
	out := make([]domain.RoleRecord, len(c.roles))
	copy(out, c.roles)
	return out
}
