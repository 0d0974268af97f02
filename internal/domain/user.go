package domain

import (
	"strings"
	"time"
)

// Auth providers a user account can originate from.
const (
	AuthProviderEmail  = "email"
	AuthProviderGoogle = "google"
)

type User struct {
	UserID            string    `json:"id" dynamodbav:"user_id"`
	Email             string    `json:"email" dynamodbav:"email"`
	Name              string    `json:"name,omitempty" dynamodbav:"name"`
	FirstName         string    `json:"first_name,omitempty" dynamodbav:"first_name"`
	LastName          string    `json:"last_name,omitempty" dynamodbav:"last_name"`
	ProfilePictureURL string    `json:"profile_picture,omitempty" dynamodbav:"profile_picture_url"`
	Verified          bool      `json:"verified" dynamodbav:"verified"`
	AuthProvider      string    `json:"auth_provider,omitempty" dynamodbav:"auth_provider"` // "email" | "google"
	GoogleSub         string    `json:"-" dynamodbav:"google_sub"`
	CreatedAt         time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt         time.Time `json:"updated" dynamodbav:"updated_at"`
}

// SetNamesFromEmail derives first and last name from the email local part:
// "jane.doe@x.com" becomes first "jane", last "doe". Single-segment local
// parts only set the first name.
func (u *User) SetNamesFromEmail() {
	if u.Email == "" {
		return
	}
	local := strings.SplitN(u.Email, "@", 2)[0]
	parts := strings.SplitN(local, ".", 2)
	u.FirstName = parts[0]
	if len(parts) > 1 {
		u.LastName = parts[1]
	}
}

type LoginRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type GoogleLoginRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

type UpdateUserRequest struct {
	Name *string `json:"name"`
}
