package inventory

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when an operation is called in the
	// wrong coordinator state.
	ErrInvalidTransition = errors.New("inventory: invalid state transition")

	// ErrPlatformConsistency is wrapped by PlatformConsistencyError.
	ErrPlatformConsistency = errors.New("inventory: platform consistency violation")

	// ErrSourceUnavailable is returned when the registry source cannot be read.
	ErrSourceUnavailable = errors.New("inventory: source unavailable")
)

// PlatformConsistencyError reports a device accepted for a platform that has
// no PlatformProfile. It aborts the inventory pass.
type PlatformConsistencyError struct {
	DeviceID string
	Platform string
}

func (e *PlatformConsistencyError) Error() string {
	return fmt.Sprintf("inventory: device %s accepted for platform %q which has no profile", e.DeviceID, e.Platform)
}

func (e *PlatformConsistencyError) Unwrap() error {
	return ErrPlatformConsistency
}
