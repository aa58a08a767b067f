package shared

// Role is the single role attached to a user account.
type Role string

// Roles known to the application.
const (
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleSupplier Role = "supplier"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleSupplier:
		return true
	}
	return false
}

// Label returns a display name.
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleStaff:
		return "Staff"
	case RoleSupplier:
		return "Supplier"
	}
	return string(r)
}

// Principal identifies the authenticated caller of a request.
type Principal struct {
	ID       int64
	Username string
	Role     Role
	// SupplierID is set for supplier accounts with a profile.
	SupplierID int64
	// SupplierStatus mirrors the profile status for supplier accounts.
	SupplierStatus string
}

// Is reports whether the principal holds any of roles.
func (p Principal) Is(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// HomePath is where a freshly authenticated principal lands.
func (p Principal) HomePath() string {
	switch p.Role {
	case RoleAdmin:
		return "/admin/dashboard"
	case RoleStaff:
		return "/staff/dashboard"
	case RoleSupplier:
		if p.SupplierStatus == "approved" {
			return "/supplier/dashboard"
		}
		return "/supplier/pending"
	}
	return "/auth/login"
}
