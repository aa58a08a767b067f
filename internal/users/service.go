package users

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/smartstock/smartstock/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, filter ListFilter) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	DeleteUser(ctx context.Context, id int64) error
	CountActive(ctx context.Context) (int, error)
}

// AuditPort records administrative actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service instance. audit may be nil.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// ListUsers returns staff and supplier accounts. Unknown or admin roles list both.
func (s *Service) ListUsers(ctx context.Context, filter ListFilter) ([]User, error) {
	if !filter.Role.Valid() || filter.Role == shared.RoleAdmin {
		filter.Role = ""
	}
	return s.repo.ListUsers(ctx, filter)
}

// CountActive counts active staff and supplier accounts.
func (s *Service) CountActive(ctx context.Context) (int, error) {
	return s.repo.CountActive(ctx)
}

// DeleteUser removes a staff or supplier account. Admin accounts, including
// the caller's own, cannot be deleted.
func (s *Service) DeleteUser(ctx context.Context, actor shared.Principal, id int64) (User, error) {
	if !actor.Is(shared.RoleAdmin) {
		return User{}, shared.ErrForbidden
	}
	if actor.ID == id {
		return User{}, fmt.Errorf("cannot delete your own account: %w", shared.ErrForbidden)
	}
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if u.Role == shared.RoleAdmin {
		return User{}, fmt.Errorf("cannot delete admin %s: %w", u.Username, shared.ErrForbidden)
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return User{}, err
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "user.delete",
			Entity:   "user",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"username": u.Username, "role": string(u.Role)},
		}); err != nil {
			s.logger.Warn("record audit", slog.String("action", "user.delete"), slog.Any("error", err))
		}
	}
	return u, nil
}
