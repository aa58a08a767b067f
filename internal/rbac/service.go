package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartstock/smartstock/internal/shared"
)

// PrincipalResolver loads the caller identity for a session user id.
type PrincipalResolver interface {
	Principal(ctx context.Context, userID int64) (shared.Principal, error)
}

// Service resolves principals from PostgreSQL.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Principal returns the active user with its role and supplier profile state.
func (s *Service) Principal(ctx context.Context, userID int64) (shared.Principal, error) {
	var (
		p      shared.Principal
		role   string
		active bool
	)
	err := s.pool.QueryRow(ctx, `SELECT u.id, u.username, u.role, u.is_active, COALESCE(s.id, 0), COALESCE(s.status, '')
FROM users u
LEFT JOIN suppliers s ON s.user_id = u.id
WHERE u.id = $1`, userID).Scan(&p.ID, &p.Username, &role, &active, &p.SupplierID, &p.SupplierStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.Principal{}, fmt.Errorf("user %d: %w", userID, shared.ErrNotFound)
		}
		return shared.Principal{}, err
	}
	if !active {
		return shared.Principal{}, fmt.Errorf("user %d inactive: %w", userID, shared.ErrForbidden)
	}
	p.Role = shared.Role(role)
	return p, nil
}

var _ PrincipalResolver = (*Service)(nil)
