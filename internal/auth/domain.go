package auth

import "github.com/smartstock/smartstock/internal/shared"

// User represents an account as needed for login.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         shared.Role
	IsActive     bool
}

// LoginInput carries submitted credentials.
type LoginInput struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

// AccountType selects the registration form.
type AccountType string

// Registration account types.
const (
	AccountStaff    AccountType = "staff"
	AccountSupplier AccountType = "supplier"
)

// Credentials are shared by both registration forms.
type Credentials struct {
	Username        string `form:"username" validate:"required,min=3,max=150"`
	Password        string `form:"password" validate:"required,min=8"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
}

// StaffRegistration creates a staff account.
type StaffRegistration struct {
	Credentials
	FirstName string `form:"first_name" validate:"max=150"`
	LastName  string `form:"last_name" validate:"max=150"`
	Phone     string `form:"phone" validate:"max=20"`
	Gender    string `form:"gender" validate:"omitempty,oneof=male female other"`
}

// SupplierRegistration creates a supplier account and its pending profile.
type SupplierRegistration struct {
	Credentials
	Phone         string `form:"phone" validate:"max=20"`
	SupplierName  string `form:"supplier_name" validate:"required,max=200"`
	ContactPerson string `form:"contact_person" validate:"max=200"`
	Email         string `form:"email" validate:"omitempty,email"`
	Address       string `form:"address" validate:"max=1000"`
}

// NewAccount is the user row written by registration.
type NewAccount struct {
	Username     string
	PasswordHash string
	Role         shared.Role
	FirstName    string
	LastName     string
	Phone        string
	Gender       string
}

// SupplierProfile is the profile row written by supplier registration.
type SupplierProfile struct {
	Name          string
	ContactPerson string
	Phone         string
	Email         string
	Address       string
}
