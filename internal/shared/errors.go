package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated occurs when no actor is attached to the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden occurs when the actor lacks the required permission.
	ErrForbidden = errors.New("forbidden")
)
