package evidence

import (
	"errors"
	"fmt"
)

// Domain-specific errors for evidence provisioning and collection.
var (
	// ErrInvalidKey is returned when a string is not a well-formed store key.
	ErrInvalidKey = errors.New("evidence: invalid store key")

	// ErrUnknownChannel is returned for a platform sub-channel outside the
	// key scheme.
	ErrUnknownChannel = errors.New("evidence: unknown channel")

	// ErrAlreadyProvisioned is returned by a second Provision call.
	ErrAlreadyProvisioned = errors.New("evidence: already provisioned")

	// ErrKeyCollision is recorded when two objects map to the same key.
	ErrKeyCollision = errors.New("evidence: store key collision")

	// ErrStoreAllocation wraps backend failures opening a store.
	ErrStoreAllocation = errors.New("evidence: store allocation failed")

	// ErrVersionMismatch is returned when an existing store carries a
	// different storage version.
	ErrVersionMismatch = errors.New("evidence: storage version mismatch")

	// ErrCredentialUnavailable wraps secret resolution failures for LAN
	// components.
	ErrCredentialUnavailable = errors.New("evidence: credential unavailable")

	// ErrStoreNotFound is returned when no store has the requested key.
	ErrStoreNotFound = errors.New("evidence: store not found")
)

// ProvisionFailure reports one object whose store could not be provisioned.
// Provisioning continues past it.
type ProvisionFailure struct {
	Category Category
	ObjectID string
	Key      string
	Err      error
}

func (f *ProvisionFailure) Error() string {
	return fmt.Sprintf("provisioning %s %s (%s): %v", f.Category, f.ObjectID, f.Key, f.Err)
}

func (f *ProvisionFailure) Unwrap() error {
	return f.Err
}

// RegistrationError reports a collection path whose subscription could not
// be set up. The path may be retried.
type RegistrationError struct {
	Path Path
	Err  error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("evidence: registering %s path: %v", e.Path, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}
