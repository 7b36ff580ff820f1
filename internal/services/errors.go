package services

import "errors"

// Error kinds. Every error a service returns to the HTTP layer either matches one of
// these with errors.Is or is treated as an internal failure.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidInput    = errors.New("invalid input")
)

// Error pairs a kind with the message shown to the client.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func unauthenticated(message string) error { return newError(ErrUnauthenticated, message) }
func forbidden(message string) error       { return newError(ErrForbidden, message) }
func notFound(message string) error        { return newError(ErrNotFound, message) }
func conflict(message string) error        { return newError(ErrConflict, message) }
func invalidInput(message string) error    { return newError(ErrInvalidInput, message) }

// Message returns the client-facing message carried by err, or "" when err is not a
// service error.
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	return ""
}
