package inventory

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-forensics/internal/bus"
	"github.com/nerrad567/gray-logic-forensics/internal/interest"
	"github.com/nerrad567/gray-logic-forensics/internal/profile"
)

// DeviceChange is the payload of a registry change notification.
type DeviceChange struct {
	Action   string                       `json:"action"`
	Device   profile.DeviceRecord         `json:"device"`
	Entities []profile.EntityRecord       `json:"entities"`
	Bindings []profile.IntegrationBinding `json:"config_entries"`
}

// maintainer applies registry change events to a registry.
type maintainer struct {
	registry *profile.Registry
	filter   *interest.Filter
	logger   Logger
}

func (m *maintainer) handle(ev bus.Event) {
	if err := m.apply(ev); err != nil {
		m.logger.Warn("registry change not applied",
			"event_type", ev.Type,
			"device_id", ev.DeviceID,
			"error", err,
		)
	}
}

// apply mutates the registry for one event. Every mutation is a single
// Registry call, so the platform back-link changes with the device.
func (m *maintainer) apply(ev bus.Event) error {
	if !ev.Type.IsRegistryChange() {
		return nil
	}

	switch ev.Type {
	case bus.EventDeviceLeft:
		err := m.registry.RemoveDevice(ev.DeviceID)
		if errors.Is(err, profile.ErrDeviceNotFound) {
			m.logger.Debug("left device was not tracked", "device_id", ev.DeviceID)
			return nil
		}
		if err == nil {
			m.logger.Info("device removed", "device_id", ev.DeviceID)
		}
		return err

	default:
		return m.admit(ev)
	}
}

func (m *maintainer) admit(ev bus.Event) error {
	var change DeviceChange
	if err := json.Unmarshal(ev.Payload, &change); err != nil {
		return fmt.Errorf("decoding device change: %w", err)
	}
	if change.Device.ID == "" {
		change.Device.ID = ev.DeviceID
	}

	bindings := change.Bindings
	if len(bindings) == 0 {
		// The notification arrived on the owning integration's topic.
		bindings = []profile.IntegrationBinding{{Domain: ev.Domain}}
	}

	dp := profile.BuildDeviceProfile(change.Device, change.Entities, bindings)
	verdict := m.filter.Evaluate(dp, dp.OwnerDomains())

	if !verdict.Accepted {
		if err := m.registry.RemoveDevice(dp.ID); err == nil {
			m.logger.Info("device no longer of interest", "device_id", dp.ID)
		}
		return nil
	}

	dp.PlatformName = verdict.MatchedPlatform
	if err := m.registry.AdmitDevice(dp); err != nil {
		if errors.Is(err, profile.ErrPlatformNotFound) {
			return &PlatformConsistencyError{DeviceID: dp.ID, Platform: dp.PlatformName}
		}
		return err
	}

	m.logger.Info("device admitted", "device_id", dp.ID, "platform", dp.PlatformName, "event_type", ev.Type)
	return nil
}
