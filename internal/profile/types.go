package profile

import (
	"encoding/json"
	"slices"

	"github.com/nerrad567/gray-logic-forensics/internal/secrets"
)

// Connection is a (type, value) pair through which a device is reachable,
// e.g. ("mac", "00:17:88:01:02:03").
type Connection struct {
	Type  string `json:"type" yaml:"type"`
	Value string `json:"value" yaml:"value"`
}

// Identifier is a stable (domain, id) pair identifying a device within an
// integration, e.g. ("hue", "00:17:88:01:02:03-0b").
type Identifier struct {
	Domain string `json:"domain" yaml:"domain"`
	ID     string `json:"id" yaml:"id"`
}

// DeviceRecord is a raw device row from the host platform's device registry.
type DeviceRecord struct {
	ID            string       `json:"id" yaml:"id"`
	Name          string       `json:"name" yaml:"name"`
	NameByUser    string       `json:"name_by_user,omitempty" yaml:"name_by_user"`
	Manufacturer  string       `json:"manufacturer,omitempty" yaml:"manufacturer"`
	Model         string       `json:"model,omitempty" yaml:"model"`
	SWVersion     string       `json:"sw_version,omitempty" yaml:"sw_version"`
	HWVersion     string       `json:"hw_version,omitempty" yaml:"hw_version"`
	ViaDeviceID   string       `json:"via_device_id,omitempty" yaml:"via_device_id"`
	AreaID        string       `json:"area_id,omitempty" yaml:"area_id"`
	EntryType     string       `json:"entry_type,omitempty" yaml:"entry_type"`
	Connections   []Connection `json:"connections,omitempty" yaml:"connections"`
	Identifiers   []Identifier `json:"identifiers,omitempty" yaml:"identifiers"`
	ConfigEntries []string     `json:"config_entries,omitempty" yaml:"config_entries"`
}

// EntityRecord is a raw row from the entity registry. Platform is the domain
// of the integration providing the entity.
type EntityRecord struct {
	EntityID      string `json:"entity_id" yaml:"entity_id"`
	Platform      string `json:"platform" yaml:"platform"`
	DeviceID      string `json:"device_id,omitempty" yaml:"device_id"`
	ConfigEntryID string `json:"config_entry_id,omitempty" yaml:"config_entry_id"`
	UniqueID      string `json:"unique_id,omitempty" yaml:"unique_id"`
	OriginalName  string `json:"original_name,omitempty" yaml:"original_name"`
	Disabled      bool   `json:"disabled,omitempty" yaml:"disabled"`
}

// IntegrationBinding is a config entry: one configured instance of an
// integration. Domain is the integration's platform name.
type IntegrationBinding struct {
	EntryID string `json:"entry_id" yaml:"entry_id"`
	Domain  string `json:"domain" yaml:"domain"`
	Title   string `json:"title,omitempty" yaml:"title"`
	Source  string `json:"source,omitempty" yaml:"source"`
}

// DeviceProfile describes one device of forensic interest.
//
// PlatformName is empty until the owning integration has been resolved by
// the interest filter. Only profiles with a PlatformName are admitted to a
// Registry.
type DeviceProfile struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	NameByUser   string               `json:"name_by_user,omitempty"`
	Manufacturer string               `json:"manufacturer,omitempty"`
	Model        string               `json:"model,omitempty"`
	SWVersion    string               `json:"sw_version,omitempty"`
	HWVersion    string               `json:"hw_version,omitempty"`
	ViaDeviceID  string               `json:"via_device_id,omitempty"`
	AreaID       string               `json:"area_id,omitempty"`
	EntryType    string               `json:"entry_type,omitempty"`
	Connections  []Connection         `json:"connections,omitempty"`
	Identifiers  []Identifier         `json:"identifiers,omitempty"`
	Entities     []EntityRecord       `json:"entities"`
	Bindings     []IntegrationBinding `json:"bindings"`
	PlatformName string               `json:"platform_name,omitempty"`
}

// OwnerDomains returns the distinct integration domains of the device's
// bindings, in binding order.
func (d *DeviceProfile) OwnerDomains() []string {
	domains := make([]string, 0, len(d.Bindings))
	for _, b := range d.Bindings {
		if b.Domain != "" && !slices.Contains(domains, b.Domain) {
			domains = append(domains, b.Domain)
		}
	}
	return domains
}

// EntityIDs returns the ids of the device's entities, in entity order.
func (d *DeviceProfile) EntityIDs() []string {
	ids := make([]string, 0, len(d.Entities))
	for _, e := range d.Entities {
		ids = append(ids, e.EntityID)
	}
	return ids
}

// DeepCopy returns an independent copy of the profile.
func (d *DeviceProfile) DeepCopy() *DeviceProfile {
	if d == nil {
		return nil
	}

	cpy := *d
	cpy.Connections = slices.Clone(d.Connections)
	cpy.Identifiers = slices.Clone(d.Identifiers)
	cpy.Entities = slices.Clone(d.Entities)
	cpy.Bindings = slices.Clone(d.Bindings)
	return &cpy
}

// PlatformProfile is an accepted platform integration and the devices
// confirmed to belong to it.
//
// The device mapping holds back-references only; device lifetime is owned
// by the Registry. Every referenced device has PlatformName == Name.
type PlatformProfile struct {
	Name    string
	devices map[string]*DeviceProfile
}

// DeviceIDs returns the ids of the platform's devices, sorted.
func (p *PlatformProfile) DeviceIDs() []string {
	ids := make([]string, 0, len(p.devices))
	for id := range p.devices {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// HasDevice reports whether id is back-linked to this platform.
func (p *PlatformProfile) HasDevice(id string) bool {
	_, ok := p.devices[id]
	return ok
}

// Len returns the number of back-linked devices.
func (p *PlatformProfile) Len() int {
	return len(p.devices)
}

// MarshalJSON renders the platform as its name and sorted device ids.
func (p *PlatformProfile) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name      string   `json:"name"`
		DeviceIDs []string `json:"device_ids"`
	}{p.Name, p.DeviceIDs()})
}

// LanKind classifies a LAN-resident component.
type LanKind string

// LAN component kinds.
const (
	LanKindRouter      LanKind = "router"
	LanKindAccessPoint LanKind = "access_point"
	LanKindSwitch      LanKind = "switch"
	LanKindGateway     LanKind = "gateway"
	LanKindOther       LanKind = "other"
)

// ParseLanKind maps a configured kind onto a known LanKind; unknown kinds
// become LanKindOther.
func ParseLanKind(s string) LanKind {
	switch k := LanKind(s); k {
	case LanKindRouter, LanKindAccessPoint, LanKindSwitch, LanKindGateway:
		return k
	default:
		return LanKindOther
	}
}

// CredentialRefs point at the secrets used to reach a LAN component. The
// values themselves are never held in a profile.
type CredentialRefs struct {
	Username *secrets.Ref `json:"username,omitempty"`
	Password *secrets.Ref `json:"password,omitempty"`
}

// ConnectionParams are the static attributes used to build a LAN profile.
type ConnectionParams struct {
	Address     string
	Port        int
	Credentials CredentialRefs
}

// LanComponentProfile describes a LAN component that is not a
// platform-bound device, such as the site router.
type LanComponentProfile struct {
	ID          string         `json:"id"`
	Kind        LanKind        `json:"kind"`
	Address     string         `json:"address"`
	Port        int            `json:"port,omitempty"`
	Credentials CredentialRefs `json:"credentials"`
}

// DeepCopy returns an independent copy of the profile.
func (l *LanComponentProfile) DeepCopy() *LanComponentProfile {
	if l == nil {
		return nil
	}
	cpy := *l
	if l.Credentials.Username != nil {
		u := *l.Credentials.Username
		cpy.Credentials.Username = &u
	}
	if l.Credentials.Password != nil {
		p := *l.Credentials.Password
		cpy.Credentials.Password = &p
	}
	return &cpy
}
