package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultTimeout = 10 * time.Second
	indexTimeout   = 30 * time.Second
)

// Config captures the minimal settings required to establish a MongoDB connection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect establishes a MongoDB client, verifies connectivity with a ping, and
// returns both the client and the selected database. A default timeout is
// applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(cfg.Database)
	return client, db, nil
}

// Store bundles the repositories backed by one database.
type Store struct {
	Roles        *RoleRepository
	Catalog      *RoleCatalog
	Users        *UserRepository
	Appointments *AppointmentRepository
	Audit        *AuditRepository
}

// Bootstrap creates indexes, seeds the role registry and returns the
// repositories wired to the loaded role catalog.
func Bootstrap(ctx context.Context, db *mongo.Database) (*Store, error) {
	roles := NewRoleRepository(db)
	if err := roles.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("role indexes: %w", err)
	}
	catalog, err := roles.Seed(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed roles: %w", err)
	}

	s := &Store{
		Roles:        roles,
		Catalog:      catalog,
		Users:        NewUserRepository(db, catalog),
		Appointments: NewAppointmentRepository(db),
		Audit:        NewAuditRepository(db),
	}
	for name, ensure := range map[string]func(context.Context) error{
		collectionUsers:             s.Users.EnsureIndexes,
		collectionAppointments:      s.Appointments.EnsureIndexes,
		collectionAppointmentEvents: s.Audit.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			return nil, fmt.Errorf("%s indexes: %w", name, err)
		}
	}
	return s, nil
}
