package model

import "errors"

// Kind classifies an error for callers that need to distinguish rejection
// reasons (transport status codes, CLI exit messages).
type Kind string

const (
	KindValidation         Kind = "ValidationError"
	KindStructuralConflict Kind = "StructuralConflict"
	KindConflict           Kind = "Conflict"
	KindNotFound           Kind = "NotFound"
	KindUnauthenticated    Kind = "Unauthenticated"
	KindForbidden          Kind = "Forbidden"
	KindExpired            Kind = "Expired"
	KindInvalidState       Kind = "InvalidState"
	KindTransient          Kind = "TransientStoreFailure"
	KindRateLimited        Kind = "RateLimited"
	KindInternal           Kind = "Internal"
)

var (
	// ErrInvariant is returned when a write violates a structural invariant
	// (deadline before start, start before end).
	ErrInvariant = errors.New("structural invariant violated")
	// ErrConflict is returned when a write collides with a uniqueness constraint.
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrExpired         = errors.New("registration deadline has passed")
	ErrInvalidState    = errors.New("invalid state")
	// ErrTransient marks store-level I/O failures that a periodic trigger may retry.
	ErrTransient = errors.New("transient store failure")
)

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	var ve *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return KindValidation
	case errors.Is(err, ErrInvariant):
		return KindStructuralConflict
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrExpired):
		return KindExpired
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrTransient):
		return KindTransient
	}
	return KindInternal
}
