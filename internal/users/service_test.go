package users

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartstock/smartstock/internal/shared"
)

type memoryRepo struct {
	users map[int64]User
}

func (m *memoryRepo) ListUsers(ctx context.Context, filter ListFilter) ([]User, error) {
	out := []User{}
	for id := int64(1); id <= int64(len(m.users))+10; id++ {
		u, ok := m.users[id]
		if !ok || u.Role == shared.RoleAdmin {
			continue
		}
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (m *memoryRepo) GetUser(ctx context.Context, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	return u, nil
}

func (m *memoryRepo) DeleteUser(ctx context.Context, id int64) error {
	delete(m.users, id)
	return nil
}

func (m *memoryRepo) CountActive(ctx context.Context) (int, error) {
	n := 0
	for _, u := range m.users {
		if u.IsActive && u.Role != shared.RoleAdmin {
			n++
		}
	}
	return n, nil
}

type auditStub struct{ actions []string }

func (a *auditStub) Record(ctx context.Context, log shared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

func newRepo() *memoryRepo {
	return &memoryRepo{users: map[int64]User{
		1: {ID: 1, Username: "root", Role: shared.RoleAdmin, IsActive: true},
		2: {ID: 2, Username: "boss", Role: shared.RoleAdmin, IsActive: true},
		3: {ID: 3, Username: "clerk", Role: shared.RoleStaff, IsActive: true},
		4: {ID: 4, Username: "acme", Role: shared.RoleSupplier, IsActive: true},
		5: {ID: 5, Username: "old", Role: shared.RoleStaff, IsActive: false},
	}}
}

func TestListUsersFiltersRole(t *testing.T) {
	svc := NewService(newRepo(), nil, nil)
	ctx := context.Background()

	all, err := svc.ListUsers(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	staff, err := svc.ListUsers(ctx, ListFilter{Role: shared.RoleStaff})
	require.NoError(t, err)
	assert.Len(t, staff, 2)

	admins, err := svc.ListUsers(ctx, ListFilter{Role: shared.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, admins, 3, "admin filter falls back to everyone listable")

	active, err := svc.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, active)
}

func TestDeleteUserRules(t *testing.T) {
	repo := newRepo()
	audit := &auditStub{}
	svc := NewService(repo, audit, nil)
	ctx := context.Background()
	root := shared.Principal{ID: 1, Role: shared.RoleAdmin}

	_, err := svc.DeleteUser(ctx, root, 1)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.DeleteUser(ctx, root, 2)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.DeleteUser(ctx, shared.Principal{ID: 3, Role: shared.RoleStaff}, 4)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.DeleteUser(ctx, root, 42)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	u, err := svc.DeleteUser(ctx, root, 4)
	require.NoError(t, err)
	assert.Equal(t, "acme", u.Username)
	assert.NotContains(t, repo.users, int64(4))
	assert.Equal(t, []string{"user.delete"}, audit.actions)
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", User{FirstName: "Ada", LastName: "Lovelace"}.FullName())
	assert.Equal(t, "ada", User{Username: "ada"}.FullName())
}
