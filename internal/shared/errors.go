package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Domain errors unwrap to exactly one of these so transport
// layers can classify failures without knowing every package.
var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed input rejected before any side effect.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate indicates a uniqueness violation.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrPrecondition indicates a state-dependent rule rejected the request.
	ErrPrecondition = errors.New("precondition failed")
	// ErrConflict indicates a concurrent mutation won the race; callers may retry.
	ErrConflict = errors.New("concurrent modification")
	// ErrInvariant indicates an internal invariant was breached.
	ErrInvariant = errors.New("invariant breach")
)

// Error carries a stable machine code alongside the human message.
type Error struct {
	Kind    error
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Unwrap exposes the kind for errors.Is.
func (e *Error) Unwrap() error { return e.Kind }

// NewError builds a coded domain error of the given kind.
func NewError(kind error, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// NotFound builds a coded not-found error.
func NotFound(code, message string) *Error { return NewError(ErrNotFound, code, message) }

// Validation builds a coded validation error.
func Validation(code, message string) *Error { return NewError(ErrValidation, code, message) }

// Duplicate builds a coded duplicate error.
func Duplicate(code, message string) *Error { return NewError(ErrDuplicate, code, message) }

// Precondition builds a coded precondition error.
func Precondition(code, message string) *Error { return NewError(ErrPrecondition, code, message) }

// Invalidf wraps ErrValidation with a formatted reason.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// CodeOf returns the machine code of the first coded error in the chain.
func CodeOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_FAILED"
	case errors.Is(err, ErrDuplicate):
		return "DUPLICATE"
	case errors.Is(err, ErrPrecondition):
		return "PRECONDITION_FAILED"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrIdempotencyConflict):
		return "IDEMPOTENT_REPLAY"
	default:
		return "INTERNAL"
	}
}
