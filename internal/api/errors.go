package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel error kinds for the platform API. Call sites branch with
// errors.Is; the full response detail stays available via errors.As
// on *Error.
var (
	ErrAuthRequired = errors.New("authentication required")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrTransient    = errors.New("temporary server error")
)

// Error is an HTTP error response from the platform. Body keeps the
// raw payload because some error responses carry data the client
// recovers from (the register conflict embeds the existing team).
type Error struct {
	Status  int
	Message string
	Body    []byte
	kind    error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.kind }

// statusError classifies an HTTP status into the error taxonomy.
func statusError(status int, message string) *Error {
	e := &Error{Status: status, Message: message}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.kind = ErrAuthRequired
	case status == http.StatusNotFound:
		e.kind = ErrNotFound
	case status >= 400 && status < 500:
		e.kind = ErrValidation
	default:
		e.kind = ErrTransient
	}
	return e
}
