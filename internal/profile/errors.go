package profile

import "errors"

// Domain errors for the profile package.
var (
	// ErrDeviceNotFound is returned when a device id is not in the registry.
	ErrDeviceNotFound = errors.New("profile: device not found")

	// ErrPlatformNotFound is returned when admitting a device whose platform
	// has no PlatformProfile.
	ErrPlatformNotFound = errors.New("profile: platform not found")

	// ErrPlatformUnset is returned when admitting a device with no PlatformName.
	ErrPlatformUnset = errors.New("profile: device has no platform")

	// ErrPlatformExists is returned when adding a platform twice.
	ErrPlatformExists = errors.New("profile: platform already exists")

	// ErrLanComponentExists is returned when adding a LAN component twice.
	ErrLanComponentExists = errors.New("profile: LAN component already exists")

	// ErrInvalidProfile is returned for profiles without an id or name.
	ErrInvalidProfile = errors.New("profile: invalid profile")
)
