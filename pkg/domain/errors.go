package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine readable failure class carried in responses.
type ErrorKind string

// Failure classes surfaced to clients.
const (
	KindNotFound            ErrorKind = "NotFound"
	KindIndexOutOfRange     ErrorKind = "IndexOutOfRange"
	KindMalformedRequest    ErrorKind = "MalformedRequest"
	KindDuplicateIDDetected ErrorKind = "DuplicateIdDetected"
	KindInternal            ErrorKind = "Internal"
)

// Sentinels for errors.Is matching; only the Kind is compared.
var (
	ErrNotFound         = &Error{Kind: KindNotFound, Message: "not found"}
	ErrIndexOutOfRange  = &Error{Kind: KindIndexOutOfRange, Message: "index out of range"}
	ErrMalformedRequest = &Error{Kind: KindMalformedRequest, Message: "malformed request"}
	ErrDuplicateID      = &Error{Kind: KindDuplicateIDDetected, Message: "duplicate id detected"}
	ErrInternal         = &Error{Kind: KindInternal, Message: "internal error"}
)

// Error is the domain error type with a kind and optional cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Errorf builds a domain error of the given kind.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a domain error of the given kind around a cause.
func Wrap(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NotFoundError reports a missing band identifier.
func NotFoundError(id int64) *Error {
	return Errorf(KindNotFound, "band %d not found", id)
}

// IndexError reports a positional access outside [0, size) (or [0, size] for inserts).
func IndexError(index, size int) *Error {
	return Errorf(KindIndexOutOfRange, "index %d out of range for collection of size %d", index, size)
}

// KindOf extracts the kind of err, defaulting to KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
