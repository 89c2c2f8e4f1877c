package users

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/nimbus-billing/nimbus-billing/internal/shared"
)

// ErrWrongPassword indicates the supplied current password did not match.
var ErrWrongPassword = errors.New("users: current password incorrect")

// Service handles account business logic.
type Service struct {
	repo Repository
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RegisterInput carries the fields needed to create an account.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Phone    string
	Role     string
}

// Register creates a new account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*User, error) {
	role := input.Role
	if role == "" {
		role = shared.RoleUser
	}
	if role != shared.RoleUser && role != shared.RoleAdmin {
		return nil, fmt.Errorf("users: unknown role %q", role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}
	user := User{
		Email:        input.Email,
		FullName:     input.FullName,
		Phone:        input.Phone,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
		IsStaff:      role == shared.RoleAdmin,
	}
	id, err := s.repo.Create(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// List returns all accounts, newest first.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Get fetches one account.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateProfile applies the profile fields a user may edit about themselves.
func (s *Service) UpdateProfile(ctx context.Context, id int64, fullName, phone *string) (*User, error) {
	updates := make(map[string]interface{})
	if fullName != nil {
		updates["full_name"] = *fullName
	}
	if phone != nil {
		updates["phone"] = nullText(*phone)
	}
	if len(updates) > 0 {
		if err := s.repo.Update(ctx, id, updates); err != nil {
			return nil, err
		}
	}
	return s.repo.GetByID(ctx, id)
}

// ChangePassword verifies the current password before storing a new hash.
func (s *Service) ChangePassword(ctx context.Context, id int64, current, next string) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrWrongPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("users: hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, id, string(hash))
}

// CurrentUser converts an account into the context identity shape.
func CurrentUser(u *User) *shared.CurrentUser {
	if u == nil {
		return nil
	}
	return &shared.CurrentUser{
		ID:      u.ID,
		Email:   u.Email,
		Name:    u.FullName,
		Role:    u.Role,
		IsStaff: u.IsStaff,
	}
}
