package users

import "time"

// User represents an account that can sign in and work with billing data.
type User struct {
	ID           int64
	Email        string
	FullName     string
	Phone        string
	PasswordHash string
	Role         string
	IsActive     bool
	IsStaff      bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
