// Package errs contains sentinel errors shared by the gateway, the booking flow and the UI.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across gateway/service/UI layers.
var (
	// ErrAuthRequired indicates an action needs a logged-in user; no network call was made.
	ErrAuthRequired = errors.New("auth required")

	// ErrNetwork indicates a transport failure, including timeouts.
	ErrNetwork = errors.New("network error")

	// ErrServerRejected indicates a non-success HTTP status. Concrete values are *ServerRejectedError.
	ErrServerRejected = errors.New("server rejected")

	// ErrCancelled indicates a superseded request. Never shown to the user.
	ErrCancelled = errors.New("cancelled")

	// ErrAlreadyBooked indicates the listing is already in the user's booked set.
	ErrAlreadyBooked = errors.New("already booked")

	// ErrUnauthorized indicates failed authentication (bad credentials or rejected token).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")
)

// ServerRejectedError carries the HTTP status and the human-readable message sent by the server.
type ServerRejectedError struct {
	Status  int
	Message string
}

func (e *ServerRejectedError) Error() string {
	return fmt.Sprintf("server rejected (%d): %s", e.Status, e.Message)
}

// Is makes errors.Is(err, ErrServerRejected) match any *ServerRejectedError.
func (e *ServerRejectedError) Is(target error) bool { return target == ErrServerRejected }

// Message returns the user-facing text for err: the server message for rejections,
// a short label for known sentinels, err.Error() otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var rej *ServerRejectedError
	switch {
	case errors.As(err, &rej):
		return rej.Message
	case errors.Is(err, ErrAuthRequired):
		return "Login Required"
	case errors.Is(err, ErrUnauthorized):
		return "Invalid credentials"
	case errors.Is(err, ErrNetwork):
		return "Network Error"
	}
	return err.Error()
}
