package bus

import (
	"errors"
	"fmt"

	"github.com/ctrlhome/automation-core/internal/apperr"
)

var (
	// ErrUnavailable is returned by Publish when the broker connection is
	// not currently up (disconnected, or reconnect attempts exhausted).
	ErrUnavailable = fmt.Errorf("bus: %w", apperr.ErrUnavailable)

	// ErrSerialize is returned by Publish when the payload cannot be
	// marshalled as JSON.
	ErrSerialize = fmt.Errorf("bus: %w", apperr.ErrValidation)

	// ErrPublish is returned by Publish when the broker rejects or times
	// out the publish attempt.
	ErrPublish = fmt.Errorf("bus: %w", apperr.ErrIO)
)

func unavailable() error {
	return fmt.Errorf("%w: broker connection is not up", ErrUnavailable)
}

func serializeFailed(err error) error {
	return fmt.Errorf("%w: marshalling payload: %v", ErrSerialize, err)
}

func publishFailed(err error) error {
	return fmt.Errorf("%w: %v", ErrPublish, err)
}

// IsUnavailable reports whether err is (or wraps) ErrUnavailable.
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }
