package api

import "errors"

// Sentinel errors shared by every service and repository. Handlers translate
// these to HTTP statuses; anything unwrapped falls through to 500.
var (
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("action forbidden")
	ErrBadRequest      = errors.New("invalid request")
	ErrInternal        = errors.New("internal server error")
)

// Response represents a generic API response for simple success/error messages.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
