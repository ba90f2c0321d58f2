package readiness

import "errors"

var (
	// ErrConfiguration wraps operator input that cannot be applied. No
	// discovery has happened when it is returned.
	ErrConfiguration = errors.New("readiness: invalid configuration")

	// ErrAlreadyRun is returned by a second Run call.
	ErrAlreadyRun = errors.New("readiness: pipeline already run")

	// ErrClosed is returned by Run after Close.
	ErrClosed = errors.New("readiness: setup closed")
)
