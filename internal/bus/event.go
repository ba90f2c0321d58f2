package bus

import (
	"encoding/json"
	"slices"
	"time"
)

// EventType classifies a notification.
type EventType string

// Event types delivered by the bus.
const (
	// EventStateChanged reports a new state for one entity.
	EventStateChanged EventType = "state_changed"

	// EventDeviceJoined reports a device added to an integration.
	EventDeviceJoined EventType = "device_joined"

	// EventDeviceUpdated reports a change to a registered device.
	EventDeviceUpdated EventType = "device_updated"

	// EventDeviceLeft reports a device removed from an integration.
	EventDeviceLeft EventType = "device_left"
)

// IsRegistryChange reports whether t is a join/update/leave notification.
func (t EventType) IsRegistryChange() bool {
	return t == EventDeviceJoined || t == EventDeviceUpdated || t == EventDeviceLeft
}

// Event is one notification from the host platform.
type Event struct {
	Type      EventType       `json:"type"`
	Domain    string          `json:"domain"`
	EntityID  string          `json:"entity_id,omitempty"`
	DeviceID  string          `json:"device_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Filter restricts the events a subscriber receives. Empty fields match
// everything; non-empty fields must all match.
type Filter struct {
	Entities []string
	Domains  []string
	Types    []EventType
}

// matcher is a Filter compiled into sets.
type matcher struct {
	entities map[string]struct{}
	domains  map[string]struct{}
	types    []EventType
}

func (f Filter) compile() matcher {
	m := matcher{types: slices.Clone(f.Types)}
	if len(f.Entities) > 0 {
		m.entities = make(map[string]struct{}, len(f.Entities))
		for _, e := range f.Entities {
			m.entities[e] = struct{}{}
		}
	}
	if len(f.Domains) > 0 {
		m.domains = make(map[string]struct{}, len(f.Domains))
		for _, d := range f.Domains {
			m.domains[d] = struct{}{}
		}
	}
	return m
}

func (m matcher) match(ev Event) bool {
	if m.entities != nil {
		if _, ok := m.entities[ev.EntityID]; !ok {
			return false
		}
	}
	if m.domains != nil {
		if _, ok := m.domains[ev.Domain]; !ok {
			return false
		}
	}
	if len(m.types) > 0 && !slices.Contains(m.types, ev.Type) {
		return false
	}
	return true
}
