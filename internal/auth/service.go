package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/smartstock/smartstock/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	validate *validator.Validate
	cost     int
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: shared.NewValidator(), cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost, mainly for tests.
func (s *Service) WithHashCost(cost int) *Service {
	s.cost = cost
	return s
}

// Authenticate validates username/password credentials. Unknown users,
// inactive users and wrong passwords all return shared.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, input LoginInput) (*User, error) {
	input.Username = strings.TrimSpace(input.Username)
	if err := shared.ValidateStruct(s.validate, input); err != nil {
		return nil, err
	}
	user, err := s.repo.FindByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// RegisterStaff creates a staff account.
func (s *Service) RegisterStaff(ctx context.Context, input StaffRegistration) (*User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Gender = strings.ToLower(strings.TrimSpace(input.Gender))
	if err := shared.ValidateStruct(s.validate, input); err != nil {
		return nil, err
	}
	account, err := s.newAccount(input.Credentials, shared.RoleStaff)
	if err != nil {
		return nil, err
	}
	account.FirstName = strings.TrimSpace(input.FirstName)
	account.LastName = strings.TrimSpace(input.LastName)
	account.Phone = strings.TrimSpace(input.Phone)
	account.Gender = input.Gender
	id, err := s.repo.CreateUser(ctx, account)
	if err != nil {
		return nil, usernameTaken(err)
	}
	return &User{ID: id, Username: account.Username, Role: shared.RoleStaff, IsActive: true}, nil
}

// RegisterSupplier creates a supplier account with a pending profile.
func (s *Service) RegisterSupplier(ctx context.Context, input SupplierRegistration) (*User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.SupplierName = strings.TrimSpace(input.SupplierName)
	input.Email = strings.TrimSpace(input.Email)
	if err := shared.ValidateStruct(s.validate, input); err != nil {
		return nil, err
	}
	account, err := s.newAccount(input.Credentials, shared.RoleSupplier)
	if err != nil {
		return nil, err
	}
	account.Phone = strings.TrimSpace(input.Phone)
	id, err := s.repo.CreateSupplierUser(ctx, account, SupplierProfile{
		Name:          input.SupplierName,
		ContactPerson: strings.TrimSpace(input.ContactPerson),
		Phone:         account.Phone,
		Email:         input.Email,
		Address:       strings.TrimSpace(input.Address),
	})
	if err != nil {
		return nil, usernameTaken(err)
	}
	return &User{ID: id, Username: account.Username, Role: shared.RoleSupplier, IsActive: true}, nil
}

// EnsureAdmin creates an admin account when username is not taken yet. It
// reports whether a new account was created.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(password) < 8 {
		return false, shared.NewFieldError("username", "admin username and a password of at least 8 characters are required")
	}
	if _, err := s.repo.FindByUsername(ctx, username); err == nil {
		return false, nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		return false, err
	}
	account, err := s.newAccount(Credentials{Username: username, Password: password}, shared.RoleAdmin)
	if err != nil {
		return false, err
	}
	if _, err := s.repo.CreateUser(ctx, account); err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// HashPassword returns the bcrypt hash stored for password.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *Service) newAccount(c Credentials, role shared.Role) (NewAccount, error) {
	hash, err := s.HashPassword(c.Password)
	if err != nil {
		return NewAccount{}, err
	}
	return NewAccount{Username: c.Username, PasswordHash: hash, Role: role}, nil
}

func usernameTaken(err error) error {
	if errors.Is(err, shared.ErrDuplicate) {
		return shared.NewFieldError("username", "username is already taken")
	}
	return err
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
