// Package profile defines the typed profiles of objects of forensic
// interest and the Registry that holds them.
//
// There are three closed categories:
//   - DeviceProfile: a device accepted by the interest filter
//   - PlatformProfile: an accepted platform integration, back-linking its devices
//   - LanComponentProfile: a LAN component such as the site router
//
// The Build* functions are pure constructors over raw registry rows. They
// make no filtering decisions.
package profile
