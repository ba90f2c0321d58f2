package profile

import (
	"fmt"
	"slices"
	"sync"
)

// EntityRoute locates the device profile that owns an entity.
type EntityRoute struct {
	EntityID string
	DeviceID string
	Platform string
}

// Counts summarises registry membership.
type Counts struct {
	Devices       int `json:"devices"`
	Platforms     int `json:"platforms"`
	LanComponents int `json:"lan_components"`
	Entities      int `json:"entities"`
}

// Snapshot is a detached, deterministic view of a registry. Lists are
// sorted by id or name so snapshots of equal registries compare equal.
type Snapshot struct {
	Devices       []DeviceProfile       `json:"devices"`
	Platforms     []PlatformSummary     `json:"platforms"`
	LanComponents []LanComponentProfile `json:"lan_components"`
}

// PlatformSummary is a platform profile as seen in a Snapshot.
type PlatformSummary struct {
	Name      string   `json:"name"`
	DeviceIDs []string `json:"device_ids"`
}

// Registry holds the profiles of every object of forensic interest in three
// typed mappings, plus an entity to device index used to route events.
//
// A single RWMutex guards all of it: admitting or removing a device updates
// the device mapping, the entity index and the platform back-link in one
// critical section, so readers never see a device without its back-link.
//
// All public methods are thread-safe and return copies.
type Registry struct {
	mu        sync.RWMutex
	devices   map[string]*DeviceProfile
	platforms map[string]*PlatformProfile
	lan       map[string]*LanComponentProfile
	entities  map[string]string // entity id -> device id
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		devices:   make(map[string]*DeviceProfile),
		platforms: make(map[string]*PlatformProfile),
		lan:       make(map[string]*LanComponentProfile),
		entities:  make(map[string]string),
	}
}

// AddPlatform inserts a platform profile. Back-links in p are ignored;
// devices are linked by AdmitDevice.
// Returns ErrPlatformExists if the name is already present.
func (r *Registry) AddPlatform(p *PlatformProfile) error {
	if p == nil || p.Name == "" {
		return fmt.Errorf("%w: platform name is required", ErrInvalidProfile)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.platforms[p.Name]; ok {
		return fmt.Errorf("%w: %s", ErrPlatformExists, p.Name)
	}

	stored := BuildPlatformProfile(p.Name)
	r.platforms[p.Name] = stored
	return nil
}

// AdmitDevice inserts dp, or replaces the profile with the same id, and
// back-links it to its platform. Entities dp claims that another device
// owned move to dp.
//
// dp.PlatformName must be set (ErrPlatformUnset) and name a platform
// already in the registry (ErrPlatformNotFound). On error nothing changes.
//
// Parameters:
//   - dp: The evaluated device profile; the registry stores a copy
//
// Returns:
//   - error: nil, ErrInvalidProfile, ErrPlatformUnset, or ErrPlatformNotFound
func (r *Registry) AdmitDevice(dp *DeviceProfile) error {
	if dp == nil || dp.ID == "" {
		return fmt.Errorf("%w: device id is required", ErrInvalidProfile)
	}
	if dp.PlatformName == "" {
		return fmt.Errorf("%w: %s", ErrPlatformUnset, dp.ID)
	}

	stored := dp.DeepCopy()

	r.mu.Lock()
	defer r.mu.Unlock()

	platform, ok := r.platforms[stored.PlatformName]
	if !ok {
		return fmt.Errorf("%w: %s (device %s)", ErrPlatformNotFound, stored.PlatformName, stored.ID)
	}

	r.removeLocked(stored.ID)

	r.devices[stored.ID] = stored
	platform.devices[stored.ID] = stored
	for _, e := range stored.Entities {
		if owner, ok := r.entities[e.EntityID]; ok && owner != stored.ID {
			r.releaseEntityLocked(owner, e.EntityID)
		}
		r.entities[e.EntityID] = stored.ID
	}
	return nil
}

// releaseEntityLocked drops entityID from the stale profile of its previous
// owner. An entity belongs to exactly one device.
func (r *Registry) releaseEntityLocked(owner, entityID string) {
	prev, ok := r.devices[owner]
	if !ok {
		return
	}
	kept := prev.Entities[:0]
	for _, e := range prev.Entities {
		if e.EntityID != entityID {
			kept = append(kept, e)
		}
	}
	prev.Entities = kept
}

// RemoveDevice deletes a device, its entity index entries and its platform
// back-link. Returns ErrDeviceNotFound if absent.
func (r *Registry) RemoveDevice(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.removeLocked(id) {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return nil
}

// removeLocked must be called with r.mu held for writing.
func (r *Registry) removeLocked(id string) bool {
	existing, ok := r.devices[id]
	if !ok {
		return false
	}

	delete(r.devices, id)
	if p, ok := r.platforms[existing.PlatformName]; ok {
		delete(p.devices, id)
	}
	for _, e := range existing.Entities {
		if r.entities[e.EntityID] == id {
			delete(r.entities, e.EntityID)
		}
	}
	return true
}

// AddLanComponent inserts a LAN component profile.
func (r *Registry) AddLanComponent(l *LanComponentProfile) error {
	if l == nil || l.ID == "" {
		return fmt.Errorf("%w: LAN component id is required", ErrInvalidProfile)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.lan[l.ID]; ok {
		return fmt.Errorf("%w: %s", ErrLanComponentExists, l.ID)
	}
	r.lan[l.ID] = l.DeepCopy()
	return nil
}

// Device returns a copy of the device profile with the given id.
func (r *Registry) Device(id string) (*DeviceProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, false
	}
	return d.DeepCopy(), true
}

// Platform returns a copy of the named platform profile. The copy's
// back-links point at detached device copies.
func (r *Registry) Platform(name string) (*PlatformProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.platforms[name]
	if !ok {
		return nil, false
	}

	cpy := BuildPlatformProfile(p.Name)
	for id, d := range p.devices {
		cpy.devices[id] = d.DeepCopy()
	}
	return cpy, true
}

// LanComponent returns a copy of the LAN component profile with the given id.
func (r *Registry) LanComponent(id string) (*LanComponentProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.lan[id]
	if !ok {
		return nil, false
	}
	return l.DeepCopy(), true
}

// DeviceIDs returns all device ids, sorted.
func (r *Registry) DeviceIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedIDs(r.devices)
}

// PlatformNames returns all platform names, sorted.
func (r *Registry) PlatformNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedIDs(r.platforms)
}

// LanComponentIDs returns all LAN component ids, sorted.
func (r *Registry) LanComponentIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedIDs(r.lan)
}

// PlatformDeviceIDs returns the ids back-linked to the named platform, sorted.
// Returns nil for an unknown platform.
func (r *Registry) PlatformDeviceIDs(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.platforms[name]
	if !ok {
		return nil
	}
	return p.DeviceIDs()
}

// EntityIDs returns the union of entity ids across all device profiles, sorted.
func (r *Registry) EntityIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedIDs(r.entities)
}

// ResolveEntity finds the device profile owning entityID.
func (r *Registry) ResolveEntity(entityID string) (EntityRoute, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	deviceID, ok := r.entities[entityID]
	if !ok {
		return EntityRoute{}, false
	}
	return EntityRoute{
		EntityID: entityID,
		DeviceID: deviceID,
		Platform: r.devices[deviceID].PlatformName,
	}, true
}

// Counts returns membership totals.
func (r *Registry) Counts() Counts {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Counts{
		Devices:       len(r.devices),
		Platforms:     len(r.platforms),
		LanComponents: len(r.lan),
		Entities:      len(r.entities),
	}
}

// Snapshot returns a detached copy of the whole registry taken under one
// read lock.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Devices:       make([]DeviceProfile, 0, len(r.devices)),
		Platforms:     make([]PlatformSummary, 0, len(r.platforms)),
		LanComponents: make([]LanComponentProfile, 0, len(r.lan)),
	}
	for _, id := range sortedIDs(r.devices) {
		snap.Devices = append(snap.Devices, *r.devices[id].DeepCopy())
	}
	for _, name := range sortedIDs(r.platforms) {
		snap.Platforms = append(snap.Platforms, PlatformSummary{
			Name:      name,
			DeviceIDs: r.platforms[name].DeviceIDs(),
		})
	}
	for _, id := range sortedIDs(r.lan) {
		snap.LanComponents = append(snap.LanComponents, *r.lan[id].DeepCopy())
	}
	return snap
}

func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
