package remote

import (
	"errors"
	"fmt"
)

// Kind classifies a remote failure for retry and compensation decisions.
type Kind int

const (
	// KindInternal is an unclassified failure. Not retried.
	KindInternal Kind = iota
	// KindUnavailable is a transient infrastructure failure, including
	// call timeouts. Safe to retry.
	KindUnavailable
	// KindRejected is a permanent business rejection. Never retried.
	KindRejected
	// KindNotFound means the addressed entity does not exist. Never
	// retried.
	KindNotFound
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindRejected:
		return "rejected"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a normalized remote failure carrying which service and operation
// produced it.
type Error struct {
	Kind    Kind
	Service string
	Op      string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Service, e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Service, e.Op, e.Kind)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Unavailable wraps a transient failure.
func Unavailable(service, op string, err error) *Error {
	return &Error{Kind: KindUnavailable, Service: service, Op: op, Err: err}
}

// Rejected wraps a permanent business rejection.
func Rejected(service, op string, err error) *Error {
	return &Error{Kind: KindRejected, Service: service, Op: op, Err: err}
}

// NotFound wraps a missing entity failure.
func NotFound(service, op string, err error) *Error {
	return &Error{Kind: KindNotFound, Service: service, Op: op, Err: err}
}

// Internal wraps an unclassified failure.
func Internal(service, op string, err error) *Error {
	return &Error{Kind: KindInternal, Service: service, Op: op, Err: err}
}

// KindOf extracts the failure kind, KindInternal when err is not a remote
// error.
func KindOf(err error) Kind {
	var remoteErr *Error
	if errors.As(err, &remoteErr) {
		return remoteErr.Kind
	}
	return KindInternal
}

// IsUnavailable reports whether err is a transient remote failure.
func IsUnavailable(err error) bool { return KindOf(err) == KindUnavailable }

// IsRejected reports whether err is a permanent business rejection.
func IsRejected(err error) bool { return KindOf(err) == KindRejected }

// IsNotFound reports whether err addresses a missing entity.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsTransient reports whether the failure is worth retrying.
func IsTransient(err error) bool { return IsUnavailable(err) }
