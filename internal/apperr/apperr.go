// Package apperr defines the error kinds the HTTP layer maps to status codes.
package apperr

import "errors"

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
)

// Error carries a client-safe message and a kind matched with errors.Is.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

// Validation reports missing or malformed input.
func Validation(msg string) error { return &Error{kind: ErrValidation, msg: msg} }

// NotFound reports an absent user or task.
func NotFound(msg string) error { return &Error{kind: ErrNotFound, msg: msg} }

// Unauthorized reports a missing or invalid bearer token.
func Unauthorized(msg string) error { return &Error{kind: ErrUnauthorized, msg: msg} }

// Conflict reports a uniqueness violation such as a duplicate email.
func Conflict(msg string) error { return &Error{kind: ErrConflict, msg: msg} }

// Message returns the client-safe message of err, or "" if err is not an *Error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.msg
	}
	return ""
}
