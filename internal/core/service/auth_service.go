package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicflow/rdv-api/internal/core/domain"
	"github.com/clinicflow/rdv-api/internal/core/ports"
)

// AuthService implements registration, login and account queries.
type AuthService struct {
	users  ports.UserRepository
	roles  ports.RoleRepository
	hasher ports.PasswordHasher
	tokens ports.TokenService
	guard  ports.LoginGuard
	log    zerolog.Logger
	now    func() time.Time
}

// NewAuthService wires the auth use cases. guard may be nil, in which case
// failed logins are not throttled.
func NewAuthService(
	users ports.UserRepository,
	roles ports.RoleRepository,
	hasher ports.PasswordHasher,
	tokens ports.TokenService,
	guard ports.LoginGuard,
	log zerolog.Logger,
) *AuthService {
	if guard == nil {
		guard = noopGuard{}
	}
	return &AuthService{
		users:  users,
		roles:  roles,
		hasher: hasher,
		tokens: tokens,
		guard:  guard,
		log:    log,
		now:    time.Now,
	}
}

// Register creates an account for any of the clinic roles. Receptionist
// accounts are subject to domain.ReceptionistQuota.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	in, role, err := normalizeRegistration(in)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, in, role)
}

// RegisterByReceptionist creates a doctor or patient account on behalf of an
// authenticated receptionist. The password must satisfy the complexity policy.
func (s *AuthService) RegisterByReceptionist(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	in, role, err := normalizeRegistration(in)
	if err != nil {
		return nil, err
	}
	if role != domain.RoleDoctor && role != domain.RolePatient {
		return nil, domain.ErrInvalidRole
	}
	if err := domain.ValidatePasswordPolicy(in.Password); err != nil {
		return nil, err
	}
	return s.create(ctx, in, role)
}

func normalizeRegistration(in ports.RegisterInput) (ports.RegisterInput, domain.Role, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" || in.Role == "" {
		return in, "", domain.ErrMissingFields
	}
	role, ok := domain.ParseRole(in.Role)
	if !ok {
		return in, "", domain.ErrInvalidRole
	}
	return in, role, nil
}

func (s *AuthService) create(ctx context.Context, in ports.RegisterInput, role domain.Role) (*domain.User, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	quota := role == domain.RoleReceptionist
	if quota {
		if err := s.roles.ReserveSeat(ctx, role, domain.ReceptionistQuota); err != nil {
			if errors.Is(err, domain.ErrQuotaExceeded) && s.emailTaken(ctx, in.Email) {
				return nil, domain.ErrDuplicateEmail
			}
			return nil, err
		}
	}

	created, err := s.users.Create(ctx, &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		if quota {
			if relErr := s.roles.ReleaseSeat(ctx, role); relErr != nil {
				s.log.Warn().Err(relErr).Str("role", role.String()).Msg("failed to release role seat")
			}
		}
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info().Str("user_id", created.ID).Str("role", role.String()).Msg("user registered")
	return created, nil
}

// emailTaken reports whether an account already uses email. A duplicate email
// takes precedence over a full quota.
func (s *AuthService) emailTaken(ctx context.Context, email string) bool {
	_, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		s.log.Warn().Err(err).Msg("email lookup after quota miss failed")
	}
	return err == nil
}

// Login verifies the credentials and issues a bearer token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrMissingFields
	}

	locked, err := s.guard.Locked(ctx, email)
	if err != nil {
		s.log.Warn().Err(err).Msg("login guard check failed, continuing")
	} else if locked {
		return nil, domain.ErrTooManyAttempts
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.recordFailure(ctx, email)
			return nil, err
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.recordFailure(ctx, email)
		return nil, domain.ErrWrongPassword
	}
	if user.Role == "" {
		return nil, domain.ErrNoRole
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	if err := s.guard.Reset(ctx, email); err != nil {
		s.log.Warn().Err(err).Msg("failed to reset login guard")
	}

	return &ports.LoginResult{Token: token, User: user}, nil
}

func (s *AuthService) recordFailure(ctx context.Context, email string) {
	if err := s.guard.RecordFailure(ctx, email); err != nil {
		s.log.Warn().Err(err).Msg("failed to record login failure")
	}
}

func (s *AuthService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// CountByRole returns how many users hold the named role.
func (s *AuthService) CountByRole(ctx context.Context, name string) (int64, error) {
	role, ok := domain.ParseRole(name)
	if !ok {
		return 0, domain.ErrRoleNotFound
	}
	n, err := s.users.CountByRole(ctx, role)
	if err != nil {
		if errors.Is(err, domain.ErrRoleNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type noopGuard struct{}

func (noopGuard) Locked(context.Context, string) (bool, error) { return false, nil }
func (noopGuard) RecordFailure(context.Context, string) error  { return nil }
func (noopGuard) Reset(context.Context, string) error          { return nil }
