package api

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to the managers.
var (
	// ErrUnauthorized is returned when the server rejects the session
	// token. The auth transport has already cleared the session by the
	// time callers see this.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrDenied is returned for failed logins. It deliberately carries no
	// detail about which credential was wrong.
	ErrDenied = errors.New("access denied")

	// ErrConflict is returned when a personnel create collides with an
	// existing username.
	ErrConflict = errors.New("username already exists")
)

// StatusError reports an unexpected HTTP status from the backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned status %d", e.Code)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Body)
}
