// Package apperr defines the error kinds shared across automation-core's
// components. Every package that can fail in a way the API surface needs
// to render wraps its errors in one of these sentinels so the HTTP layer
// can map kind to status code without knowing which component failed.
package apperr

import "errors"

var (
	// ErrValidation indicates bad input shape or values.
	ErrValidation = errors.New("validation error")

	// ErrNotFound indicates a missing device, rule, or command.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a duplicate id or name.
	ErrConflict = errors.New("conflict")

	// ErrUnavailable indicates the broker is disconnected or a component
	// has not finished initializing.
	ErrUnavailable = errors.New("unavailable")

	// ErrIO indicates a file or network failure that cannot be recovered
	// locally.
	ErrIO = errors.New("io error")

	// ErrInternal indicates a bug or unexpected condition.
	ErrInternal = errors.New("internal error")
)

// Kind classifies an error for status-code mapping and logging.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindUnavailable Kind = "unavailable"
	KindIO          Kind = "io"
	KindInternal    Kind = "internal"
)

// KindOf classifies err against the sentinel kinds. Errors that don't wrap
// one of the sentinels are treated as KindInternal.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrIO):
		return KindIO
	default:
		return KindInternal
	}
}

// StatusCode returns the HTTP status code for err's kind.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return 400
	case KindNotFound:
		return 404
	case KindConflict:
		return 409
	case KindUnavailable:
		return 503
	case KindIO, KindInternal:
		return 500
	default:
		return 500
	}
}

// FieldError carries a field name alongside a validation failure.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

func (e *FieldError) Unwrap() error { return ErrValidation }

// Validation wraps a field-level validation failure.
func Validation(field, message string) error {
	return &FieldError{Field: field, Message: message}
}

// NotFoundError carries the resource kind and identifier that was missing.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return e.Resource + " " + e.ID + " not found"
	}
	return e.Resource + " not found"
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound builds a NotFoundError for resource/id.
func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError carries the resource kind and identifier already in use.
type ConflictError struct {
	Resource string
	ID       string
}

func (e *ConflictError) Error() string {
	return e.Resource + " " + e.ID + " already exists"
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Conflict builds a ConflictError for resource/id.
func Conflict(resource, id string) error {
	return &ConflictError{Resource: resource, ID: id}
}
