package ports

import (
	"context"

	"github.com/clinicflow/rdv-api/internal/core/domain"
)

// RoleRepository manages the role registry and the per-role holder quota.
type RoleRepository interface {
	// ReserveSeat atomically increments the holder count of role when it is
	// below limit. It returns domain.ErrQuotaExceeded otherwise.
	ReserveSeat(ctx context.Context, role domain.Role, limit int64) error
	// ReleaseSeat undoes a reservation whose user insert failed.
	ReleaseSeat(ctx context.Context, role domain.Role) error
}
