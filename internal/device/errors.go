package device

import (
	"errors"
	"fmt"

	"github.com/ctrlhome/automation-core/internal/apperr"
)

// Domain errors for the device package. Check with errors.Is against
// apperr's kind sentinels, or against these directly for finer handling.
var (
	// ErrNotFound is returned when a device id does not exist.
	ErrNotFound = fmt.Errorf("device: %w", apperr.ErrNotFound)

	// ErrExists is returned when creating a device with an id already in use.
	ErrExists = fmt.Errorf("device: %w", apperr.ErrConflict)

	// ErrInvalid is returned when device validation fails.
	ErrInvalid = fmt.Errorf("device: %w", apperr.ErrValidation)

	// ErrCommandNotFound is returned when resolving a command an actuator
	// does not declare.
	ErrCommandNotFound = fmt.Errorf("device: %w", apperr.ErrValidation)
)

// notFound builds an ErrNotFound-compatible error naming the missing id.
func notFound(id string) error {
	return fmt.Errorf("%w: device %q", ErrNotFound, id)
}

// exists builds an ErrExists-compatible error naming the conflicting id.
func exists(id string) error {
	return fmt.Errorf("%w: device %q already exists", ErrExists, id)
}

// invalid builds an ErrInvalid-compatible error with a message.
func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalid, msg)
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
