package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartstock/smartstock/internal/platform/db"
	"github.com/smartstock/smartstock/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, account NewAccount) (int64, error)
	CreateSupplierUser(ctx context.Context, account NewAccount, profile SupplierProfile) (int64, error)
	CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByUsername fetches a user by username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	var role string
	err := r.pool.QueryRow(ctx, `SELECT id, username, password_hash, role, is_active FROM users WHERE username = $1`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	u.Role = shared.Role(role)
	return &u, nil
}

// CreateUser inserts an account. A taken username returns shared.ErrDuplicate.
func (r *PGRepository) CreateUser(ctx context.Context, account NewAccount) (int64, error) {
	return insertUser(ctx, r.pool, account)
}

// CreateSupplierUser inserts a supplier account and its pending profile in
// one transaction.
func (r *PGRepository) CreateSupplierUser(ctx context.Context, account NewAccount, profile SupplierProfile) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		if id, err = insertUser(ctx, tx, account); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO suppliers (user_id, name, contact_person, phone, email, address, status)
VALUES ($1, $2, $3, $4, $5, $6, 'pending')`, id, profile.Name, profile.ContactPerson, profile.Phone, profile.Email, profile.Address)
		return err
	})
	return id, err
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertUser(ctx context.Context, q queryRower, a NewAccount) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `INSERT INTO users (username, password_hash, role, first_name, last_name, phone, gender)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		a.Username, a.PasswordHash, string(a.Role), a.FirstName, a.LastName, a.Phone, a.Gender).Scan(&id)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return 0, fmt.Errorf("username %s: %w", a.Username, shared.ErrDuplicate)
		}
		return 0, err
	}
	return id, nil
}

// CreateSession persists a new login session in the database for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_sessions (id, user_id, created_at, expires_at, ip, ua)
VALUES ($1, $2, NOW(), $3, NULLIF($4, ''), NULLIF($5, ''))`, id, userID, expiresAt.UTC(), ip, ua)
	return err
}

// DeleteSession removes a session record from the database.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_sessions WHERE id = $1`, id)
	return err
}

var _ Repository = (*PGRepository)(nil)
