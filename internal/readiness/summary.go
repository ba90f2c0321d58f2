package readiness

// Summary is the flat, serialisable view of a Report published to the bus
// and the timeline after each run.
type Summary struct {
	Devices           int      `json:"devices"`
	Platforms         []string `json:"platforms"`
	LanComponents     int      `json:"lan_components"`
	Entities          int      `json:"entities"`
	Stores            int      `json:"stores"`
	ReservedKeys      int      `json:"reserved_keys"`
	ProvisionFailures int      `json:"provision_failures"`
	ActivePaths       []string `json:"active_paths"`
	FailedPaths       []string `json:"failed_paths"`
	Maintained        bool     `json:"maintained"`
}

// Summary flattens the report.
func (r *Report) Summary() Summary {
	s := Summary{
		Devices:           r.Counts.Devices,
		Platforms:         append([]string{}, r.Platforms...),
		LanComponents:     r.Counts.LanComponents,
		Entities:          r.Counts.Entities,
		Stores:            r.Stores,
		ReservedKeys:      r.ReservedKeys,
		ProvisionFailures: len(r.ProvisionFailures),
		ActivePaths:       []string{},
		FailedPaths:       []string{},
		Maintained:        r.MaintenanceErr == nil,
	}
	for _, res := range r.Registration {
		switch {
		case res.Err != nil:
			s.FailedPaths = append(s.FailedPaths, string(res.Path))
		case res.Active:
			s.ActivePaths = append(s.ActivePaths, string(res.Path))
		}
	}
	return s
}

// Fields returns the numeric summary as timeline point fields.
func (s Summary) Fields() map[string]interface{} {
	return map[string]interface{}{
		"devices":            s.Devices,
		"platforms":          len(s.Platforms),
		"lan_components":     s.LanComponents,
		"entities":           s.Entities,
		"stores":             s.Stores,
		"reserved_keys":      s.ReservedKeys,
		"provision_failures": s.ProvisionFailures,
		"active_paths":       len(s.ActivePaths),
		"failed_paths":       len(s.FailedPaths),
		"maintained":         s.Maintained,
	}
}
