package auth

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nimbus-billing/nimbus-billing/internal/shared"
	"github.com/nimbus-billing/nimbus-billing/internal/users"
)

// UserDirectory is the slice of the users store that login needs.
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (*users.User, error)
	GetByID(ctx context.Context, id int64) (*users.User, error)
	TouchLastLogin(ctx context.Context, id int64) error
}

// Service wraps authentication business rules.
type Service struct {
	directory UserDirectory
	sessions  SessionRepository
}

// NewService constructs a new Service.
func NewService(directory UserDirectory, sessions SessionRepository) *Service {
	return &Service{directory: directory, sessions: sessions}
}

// Authenticate validates email/password credentials. Inactive accounts fail
// identically to unknown ones so the response does not leak account state.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*users.User, error) {
	user, err := s.directory.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if err := s.directory.TouchLastLogin(ctx, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.sessions.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.sessions.DeleteSession(ctx, id)
}

// PurgeExpiredSessions removes session rows past their expiry.
func (s *Service) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return s.sessions.DeleteExpiredSessions(ctx, now)
}
