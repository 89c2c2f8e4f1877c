package auth

import (
	"time"

	"github.com/nimbus-billing/nimbus-billing/internal/users"
)

type registerRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	FullName        string `json:"full_name" validate:"required,max=255"`
	PhoneNumber     string `json:"phone_number" validate:"omitempty,max=20"`
	Role            string `json:"role" validate:"omitempty,oneof=user admin"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type updateProfileRequest struct {
	FullName    *string `json:"full_name,omitempty" validate:"omitempty,max=255"`
	PhoneNumber *string `json:"phone_number,omitempty" validate:"omitempty,max=20"`
}

type changePasswordRequest struct {
	OldPassword        string `json:"old_password" validate:"required"`
	NewPassword        string `json:"new_password" validate:"required,min=8"`
	NewPasswordConfirm string `json:"new_password_confirm" validate:"required,eqfield=NewPassword"`
}

// userResponse is the account shape exposed by the API.
type userResponse struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	FullName    string     `json:"full_name"`
	PhoneNumber string     `json:"phone_number"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"is_active"`
	DateJoined  time.Time  `json:"date_joined"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}

func toUserResponse(u *users.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		FullName:    u.FullName,
		PhoneNumber: u.Phone,
		Role:        u.Role,
		IsActive:    u.IsActive,
		DateJoined:  u.CreatedAt,
		LastLogin:   u.LastLogin,
	}
}

func toUserResponses(list []users.User) []userResponse {
	out := make([]userResponse, len(list))
	for i := range list {
		out[i] = toUserResponse(&list[i])
	}
	return out
}
