package users

import (
	"strings"
	"time"

	"github.com/smartstock/smartstock/internal/shared"
)

// User is an account as shown in user management.
type User struct {
	ID        int64
	Username  string
	Role      shared.Role
	FirstName string
	LastName  string
	Phone     string
	Gender    string
	IsActive  bool
	CreatedAt time.Time
}

// FullName joins first and last name, falling back to the username.
func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// ListFilter narrows the user listing. An empty Role lists staff and suppliers.
type ListFilter struct {
	Role shared.Role
}
