package rules

import (
	"errors"
	"fmt"

	"github.com/ctrlhome/automation-core/internal/apperr"
)

var (
	// ErrNotFound is returned when a rule id or name does not match.
	ErrNotFound = fmt.Errorf("rules: %w", apperr.ErrNotFound)

	// ErrExists is returned when adding a rule whose id already exists.
	ErrExists = fmt.Errorf("rules: %w", apperr.ErrConflict)

	// ErrInvalid is returned when rule validation fails.
	ErrInvalid = fmt.Errorf("rules: %w", apperr.ErrValidation)
)

func notFound(identifier string) error {
	return fmt.Errorf("%w: rule %q", ErrNotFound, identifier)
}

func exists(id string) error {
	return fmt.Errorf("%w: rule %q already exists", ErrExists, id)
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalid, msg)
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
