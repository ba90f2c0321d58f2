// Package inventory builds and maintains the registry of objects of
// forensic interest.
//
// A Coordinator reads the host platform's registries through a Source,
// filters devices with an interest.Filter and assembles a profile.Registry.
// After the initial pass it can follow device join, update and leave
// notifications on the bus, mutating the same registry in place while the
// evidence registrar reads it.
package inventory
