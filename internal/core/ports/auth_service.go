package ports

import (
	"context"

	"github.com/clinicflow/rdv-api/internal/core/domain"
)

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token string
	User  *domain.User
}

// AuthService defines account use cases.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	RegisterByReceptionist(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
	CountByRole(ctx context.Context, role string) (int64, error)
}

// TokenService issues and verifies bearer tokens.
type TokenService interface {
	Issue(subjectID string, role domain.Role) (string, error)
	Verify(token string) (domain.Identity, error)
}

// PasswordHasher hashes and verifies credentials.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// LoginGuard throttles repeated failed logins for an email.
type LoginGuard interface {
	Locked(ctx context.Context, email string) (bool, error)
	RecordFailure(ctx context.Context, email string) error
	Reset(ctx context.Context, email string) error
}
