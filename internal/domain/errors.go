package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrGone         = errors.New("gone")

	// ErrInternal is a server-side failure whose message is safe to show.
	ErrInternal = errors.New("internal")

	// ErrConcurrentUpdate is returned by stores when a conditional write loses
	// against another writer. Callers may re-read and retry.
	ErrConcurrentUpdate = errors.New("concurrent update")
)

// Error carries a user-facing message and matches its kind via errors.Is.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// NewError returns an *Error of the given kind.
func NewError(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}
