package api

import (
	"github.com/google/uuid"

	"github.com/platinummonkey/iam/pkg/auth"
)

// dateLayout is the wire format for dates of birth
const dateLayout = "2006-01-02"

// UserCreate is the self-registration request body
type UserCreate struct {
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	DateOfBirth string  `json:"date_of_birth"`
	JobTitle    *string `json:"job_title"`
	Password    string  `json:"password"`
}

// LoginRequest is the credential exchange request body
type LoginRequest struct {
	Email    string  `json:"email"`
	Password *string `json:"password"`
}

// UserOut is the public view of a user record
type UserOut struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	DateOfBirth string    `json:"date_of_birth"`
	JobTitle    *string   `json:"job_title"`
	Role        string    `json:"role"`
}

// TokenResponse is returned by a successful login
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func newUserOut(u *auth.User) UserOut {
	return UserOut{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		DateOfBirth: u.DateOfBirth.Format(dateLayout),
		JobTitle:    u.JobTitle,
		Role:        u.Role,
	}
}
