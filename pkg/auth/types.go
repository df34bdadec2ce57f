package auth

import (
	"time"

	"github.com/google/uuid"
)

// Role names a user's privilege level
type Role = string

const (
	RoleUser  Role = "user"  // May read their own record
	RoleAdmin Role = "admin" // May read any record
)

// User represents a registered account
type User struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	DateOfBirth  time.Time  `json:"date_of_birth"`
	JobTitle     *string    `json:"job_title,omitempty"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// Identity is the caller resolved from a verified bearer token.
// Role is taken from the stored user record, not from the token.
type Identity struct {
	ID   uuid.UUID
	Role Role
}

// IsAdmin reports whether the identity holds the admin role
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
