package profile

import "slices"

// BuildDeviceProfile assembles a device profile from raw registry rows.
//
// Attributes are copied verbatim; no filtering happens here and
// PlatformName is left empty. Entities belonging to other devices are
// skipped.
func BuildDeviceProfile(dev DeviceRecord, entities []EntityRecord, bindings []IntegrationBinding) *DeviceProfile {
	dp := &DeviceProfile{
		ID:           dev.ID,
		Name:         dev.Name,
		NameByUser:   dev.NameByUser,
		Manufacturer: dev.Manufacturer,
		Model:        dev.Model,
		SWVersion:    dev.SWVersion,
		HWVersion:    dev.HWVersion,
		ViaDeviceID:  dev.ViaDeviceID,
		AreaID:       dev.AreaID,
		EntryType:    dev.EntryType,
		Connections:  slices.Clone(dev.Connections),
		Identifiers:  slices.Clone(dev.Identifiers),
		Entities:     make([]EntityRecord, 0, len(entities)),
		Bindings:     slices.Clone(bindings),
	}
	if dp.Bindings == nil {
		dp.Bindings = []IntegrationBinding{}
	}

	for _, e := range entities {
		if e.DeviceID != "" && e.DeviceID != dev.ID {
			continue
		}
		dp.Entities = append(dp.Entities, e)
	}

	return dp
}

// BuildPlatformProfile returns a platform profile with no devices.
func BuildPlatformProfile(name string) *PlatformProfile {
	return &PlatformProfile{
		Name:    name,
		devices: make(map[string]*DeviceProfile),
	}
}

// BuildLanComponentProfile returns a LAN component profile.
func BuildLanComponentProfile(id string, kind LanKind, params ConnectionParams) *LanComponentProfile {
	l := &LanComponentProfile{
		ID:          id,
		Kind:        kind,
		Address:     params.Address,
		Port:        params.Port,
		Credentials: params.Credentials,
	}
	// Detach the refs from the caller's params.
	return l.DeepCopy()
}
