package ports

import (
	"context"

	"github.com/clinicflow/rdv-api/internal/core/domain"
)

// UserRepository defines persistence operations for user accounts.
type UserRepository interface {
	// Create inserts the user and returns it with its generated ID. A
	// duplicate email is reported as domain.ErrDuplicateEmail.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	// CountByRole returns domain.ErrRoleNotFound for an unregistered role.
	CountByRole(ctx context.Context, role domain.Role) (int64, error)
}
