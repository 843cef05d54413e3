package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is the persisted identity record. The password field carries the
// bcrypt hash, never the plaintext, and is excluded from JSON output.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuthUserData is the per-request identity claim extracted from a verified
// token. It lives only for the request's lifetime and is never trusted from
// any other source.
type AuthUserData struct {
	Sub   int64  `json:"sub"`
	Email string `json:"email"`
}

// Claims represents the custom claims included in the JWT access token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries the issued access token.
type TokenResponse struct {
	Token string `json:"token"`
}

// FieldError describes a single invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

const minPasswordLength = 8

// Validate returns the list of field errors, empty when the request is valid.
func (r RegisterRequest) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name must not be empty"})
	}
	if strings.TrimSpace(r.Email) == "" || !strings.Contains(r.Email, "@") {
		errs = append(errs, FieldError{Field: "email", Message: "a valid email is required"})
	}
	if len(r.Password) < minPasswordLength {
		errs = append(errs, FieldError{Field: "password", Message: "password must be at least 8 characters"})
	}
	return errs
}

// Validate returns the list of field errors, empty when the request is valid.
func (r LoginRequest) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.Email) == "" {
		errs = append(errs, FieldError{Field: "email", Message: "email must not be empty"})
	}
	if r.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "password must not be empty"})
	}
	return errs
}
