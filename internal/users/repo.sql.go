package users

import (
	"github.com/jackc/pgx/v5"

	"github.com/smartstock/smartstock/internal/shared"
)

const userSelect = `SELECT id, username, role, first_name, last_name, phone, gender, is_active, created_at FROM users`

func scanUser(row pgx.Row) (User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Username, &role, &u.FirstName, &u.LastName, &u.Phone, &u.Gender, &u.IsActive, &u.CreatedAt); err != nil {
		return User{}, err
	}
	u.Role = shared.Role(role)
	return u, nil
}
