package inventory

import (
	"context"
	"slices"

	"github.com/nerrad567/gray-logic-forensics/internal/profile"
)

// Source reads the host platform's device, entity and integration
// registries. Each call returns a fresh snapshot taken at call time.
type Source interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Snapshot is one read of the host registries.
type Snapshot struct {
	Devices  []profile.DeviceRecord       `json:"devices" yaml:"devices"`
	Entities []profile.EntityRecord       `json:"entities" yaml:"entities"`
	Bindings []profile.IntegrationBinding `json:"config_entries" yaml:"config_entries"`
}

// EntitiesForDevice returns the entities registered to deviceID, in
// registry order.
func (s *Snapshot) EntitiesForDevice(deviceID string) []profile.EntityRecord {
	var out []profile.EntityRecord
	for _, e := range s.Entities {
		if e.DeviceID == deviceID {
			out = append(out, e)
		}
	}
	return out
}

// Binding returns the config entry with the given id.
func (s *Snapshot) Binding(entryID string) (profile.IntegrationBinding, bool) {
	for _, b := range s.Bindings {
		if b.EntryID == entryID {
			return b, true
		}
	}
	return profile.IntegrationBinding{}, false
}

// BindingsForDevice returns the config entries owning dev: the device's own
// config entries first, then any further entries its entities belong to.
// Unknown entry ids are skipped.
func (s *Snapshot) BindingsForDevice(dev profile.DeviceRecord, entities []profile.EntityRecord) []profile.IntegrationBinding {
	entryIDs := slices.Clone(dev.ConfigEntries)
	for _, e := range entities {
		if e.ConfigEntryID != "" && !slices.Contains(entryIDs, e.ConfigEntryID) {
			entryIDs = append(entryIDs, e.ConfigEntryID)
		}
	}

	out := make([]profile.IntegrationBinding, 0, len(entryIDs))
	for _, id := range entryIDs {
		if b, ok := s.Binding(id); ok {
			out = append(out, b)
		}
	}
	return out
}

// StaticSource serves a fixed snapshot. Used in tests and for inventories
// pushed by the host rather than read from disk.
type StaticSource struct {
	snap Snapshot
}

// NewStaticSource returns a Source that always yields a copy of snap.
func NewStaticSource(snap Snapshot) *StaticSource {
	return &StaticSource{snap: snap}
}

// Snapshot returns a copy of the fixed snapshot.
func (s *StaticSource) Snapshot(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Snapshot{
		Devices:  slices.Clone(s.snap.Devices),
		Entities: slices.Clone(s.snap.Entities),
		Bindings: slices.Clone(s.snap.Bindings),
	}, nil
}
