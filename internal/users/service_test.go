package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nimbus-billing/nimbus-billing/internal/shared"
)

type memoryUserRepo struct {
	users  map[int64]*User
	nextID int64
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[int64]*User)}
}

func (r *memoryUserRepo) List(ctx context.Context) ([]User, error) {
	var out []User
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, nil
}

func (r *memoryUserRepo) GetByID(ctx context.Context, id int64) (*User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *memoryUserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryUserRepo) Create(ctx context.Context, user User) (int64, error) {
	for _, u := range r.users {
		if u.Email == user.Email {
			return 0, ErrEmailTaken
		}
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = &user
	return user.ID, nil
}

func (r *memoryUserRepo) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	u, ok := r.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	if v, ok := updates["full_name"]; ok {
		u.FullName = v.(string)
	}
	return nil
}

func (r *memoryUserRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	u, ok := r.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (r *memoryUserRepo) TouchLastLogin(ctx context.Context, id int64) error {
	u, ok := r.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	now := time.Now()
	u.LastLogin = &now
	return nil
}

func TestRegisterHashesPasswordAndDefaultsRole(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryUserRepo()
	svc := NewService(repo)

	user, err := svc.Register(ctx, RegisterInput{
		Email:    "owner@example.com",
		Password: "supersecret",
		FullName: "Owner",
	})
	require.NoError(t, err)
	require.Equal(t, shared.RoleUser, user.Role)
	require.True(t, user.IsActive)
	require.False(t, user.IsStaff)
	require.NotEqual(t, "supersecret", user.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("supersecret")))
}

func TestRegisterAdminBecomesStaff(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryUserRepo())

	user, err := svc.Register(ctx, RegisterInput{
		Email:    "admin@example.com",
		Password: "supersecret",
		FullName: "Admin",
		Role:     shared.RoleAdmin,
	})
	require.NoError(t, err)
	require.True(t, user.IsStaff)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryUserRepo())

	_, err := svc.Register(ctx, RegisterInput{
		Email:    "x@example.com",
		Password: "supersecret",
		Role:     "superuser",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown role")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryUserRepo())

	_, err := svc.Register(ctx, RegisterInput{Email: "dup@example.com", Password: "supersecret"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Email: "dup@example.com", Password: "othersecret"})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestChangePasswordVerifiesCurrent(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryUserRepo()
	svc := NewService(repo)

	user, err := svc.Register(ctx, RegisterInput{Email: "u@example.com", Password: "oldpassword"})
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, user.ID, "wrongpassword", "newpassword")
	require.ErrorIs(t, err, ErrWrongPassword)

	err = svc.ChangePassword(ctx, user.ID, "oldpassword", "newpassword")
	require.NoError(t, err)

	updated, _ := repo.GetByID(ctx, user.ID)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("newpassword")))
}
