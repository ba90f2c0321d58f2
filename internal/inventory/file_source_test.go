package inventory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const testExport = `
devices:
  - id: dev-1
    name: Kitchen lamp
    manufacturer: Signify
    config_entries: [entry-hue]
  - id: dev-2
    name: Orphan
entities:
  - entity_id: light.kitchen
    platform: hue
    device_id: dev-1
    config_entry_id: entry-hue
  - entity_id: sensor.kitchen_power
    platform: hue
    device_id: dev-1
    config_entry_id: entry-extra
config_entries:
  - entry_id: entry-hue
    domain: hue
    title: Hue bridge
  - entry_id: entry-extra
    domain: powercalc
`

func writeExport(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write export: %v", err)
	}
	return path
}

func TestFileSource_Snapshot(t *testing.T) {
	src := NewFileSource(writeExport(t, testExport))

	snap, err := src.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	if len(snap.Devices) != 2 || len(snap.Entities) != 2 || len(snap.Bindings) != 2 {
		t.Fatalf("Snapshot() = %d devices, %d entities, %d bindings",
			len(snap.Devices), len(snap.Entities), len(snap.Bindings))
	}
	if snap.Devices[0].Manufacturer != "Signify" {
		t.Errorf("Manufacturer = %q", snap.Devices[0].Manufacturer)
	}

	dev := snap.Devices[0]
	bindings := snap.BindingsForDevice(dev, snap.EntitiesForDevice(dev.ID))
	if len(bindings) != 2 || bindings[0].Domain != "hue" || bindings[1].Domain != "powercalc" {
		t.Errorf("BindingsForDevice() = %+v, want hue then powercalc", bindings)
	}

	if got := snap.EntitiesForDevice("dev-2"); len(got) != 0 {
		t.Errorf("EntitiesForDevice(dev-2) = %v", got)
	}
}

func TestFileSource_Errors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.yaml") }},
		{"invalid yaml", func(t *testing.T) string { return writeExport(t, "devices: [unterminated") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFileSource(tt.path(t)).Snapshot(context.Background())
			if !errors.Is(err, ErrSourceUnavailable) {
				t.Errorf("Snapshot() error = %v, want ErrSourceUnavailable", err)
			}
		})
	}
}

func TestFileSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewFileSource(writeExport(t, testExport)).Snapshot(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Snapshot() error = %v, want context.Canceled", err)
	}
}
