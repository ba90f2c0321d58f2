package evidence

import (
	"github.com/nerrad567/gray-logic-forensics/internal/bus"
	"github.com/nerrad567/gray-logic-forensics/internal/profile"
)

// Append is one pending write of an event into a store.
type Append struct {
	Handle *Handle
	Record Record
}

// Route maps a state-change event onto store appends: the owning device's
// store, then the owning platform's poll/push store when one is tracked.
// Events for unknown entities, or devices without a store, yield nothing.
//
// Route has no side effects.
func Route(ev bus.Event, reg *profile.Registry, handles *HandleSet) []Append {
	if reg == nil || handles == nil || ev.EntityID == "" {
		return nil
	}

	route, ok := reg.ResolveEntity(ev.EntityID)
	if !ok {
		return nil
	}
	device, ok := handles.Device(route.DeviceID)
	if !ok {
		return nil
	}

	rec := Record{
		EntityID:   ev.EntityID,
		DeviceID:   route.DeviceID,
		Platform:   route.Platform,
		EventType:  string(ev.Type),
		Payload:    ev.Payload,
		ObservedAt: ev.Timestamp,
	}

	appends := []Append{{Handle: device, Record: rec}}
	if platform, ok := handles.Platform(route.Platform); ok {
		appends = append(appends, Append{Handle: platform, Record: rec})
	}
	return appends
}
