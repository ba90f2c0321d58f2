package inventory

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-forensics/internal/bus"
	"github.com/nerrad567/gray-logic-forensics/internal/profile"
)

func changePayload(t *testing.T, change DeviceChange) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(change)
	if err != nil {
		t.Fatalf("marshal change: %v", err)
	}
	return data
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDynamicMaintenance_JoinAndLeave(t *testing.T) {
	c, b := newConfiguredCoordinator(t, alphaZzzSnapshot(), "all")
	ctx := context.Background()

	reg, err := c.BuildInitialInventory(ctx)
	if err != nil {
		t.Fatal(err)
	}
	sub, err := c.StartDynamicMaintenance(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe() //nolint:errcheck // Test cleanup

	b.Publish(bus.Event{
		Type:     bus.EventDeviceJoined,
		Domain:   "hue",
		DeviceID: "dev-hue",
		Payload: changePayload(t, DeviceChange{
			Action: "joined",
			Device: profile.DeviceRecord{ID: "dev-hue", Name: "Hallway bulb"},
			Entities: []profile.EntityRecord{
				{EntityID: "light.hallway", Platform: "hue", DeviceID: "dev-hue"},
			},
		}),
	})

	waitFor(t, "joined device", func() bool {
		_, ok := reg.Device("dev-hue")
		return ok
	})
	if got := reg.PlatformDeviceIDs("hue"); !reflect.DeepEqual(got, []string{"dev-hue"}) {
		t.Errorf("PlatformDeviceIDs(hue) = %v", got)
	}
	if route, ok := reg.ResolveEntity("light.hallway"); !ok || route.Platform != "hue" {
		t.Errorf("ResolveEntity() = %+v, %v", route, ok)
	}

	b.Publish(bus.Event{Type: bus.EventDeviceLeft, Domain: "alpha", DeviceID: "dev-alpha"})

	waitFor(t, "left device", func() bool {
		_, ok := reg.Device("dev-alpha")
		return !ok
	})
	if got := reg.PlatformDeviceIDs("alpha"); len(got) != 0 {
		t.Errorf("back-link not removed: %v", got)
	}
}

func TestMaintainer_Apply(t *testing.T) {
	c, _ := newConfiguredCoordinator(t, alphaZzzSnapshot(), "alpha")
	reg, err := c.BuildInitialInventory(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	m := &maintainer{registry: reg, filter: c.filter, logger: noopLogger{}}

	tests := []struct {
		name    string
		ev      bus.Event
		wantErr bool
		wantIDs []string
	}{
		{
			name: "device of another platform ignored",
			ev: bus.Event{
				Type: bus.EventDeviceJoined, Domain: "hue", DeviceID: "dev-hue",
				Payload: changePayload(t, DeviceChange{Device: profile.DeviceRecord{ID: "dev-hue"}}),
			},
			wantIDs: []string{"dev-alpha"},
		},
		{
			name: "updated device rebinds out of interest and is removed",
			ev: bus.Event{
				Type: bus.EventDeviceUpdated, Domain: "alpha", DeviceID: "dev-alpha",
				Payload: changePayload(t, DeviceChange{
					Device:   profile.DeviceRecord{ID: "dev-alpha"},
					Bindings: []profile.IntegrationBinding{{EntryID: "e", Domain: "zzz"}},
				}),
			},
			wantIDs: []string{},
		},
		{
			name:    "leave of untracked device is a no-op",
			ev:      bus.Event{Type: bus.EventDeviceLeft, Domain: "alpha", DeviceID: "ghost"},
			wantIDs: []string{},
		},
		{
			name: "malformed payload",
			ev: bus.Event{
				Type: bus.EventDeviceJoined, Domain: "alpha", DeviceID: "x",
				Payload: json.RawMessage(`{not json`),
			},
			wantErr: true,
			wantIDs: []string{},
		},
		{
			name: "state change is not a registry change",
			ev: bus.Event{
				Type: bus.EventStateChanged, Domain: "alpha", DeviceID: "x",
				Payload: json.RawMessage(`{not json`),
			},
			wantIDs: []string{},
		},
		{
			name: "device id taken from event",
			ev: bus.Event{
				Type: bus.EventDeviceJoined, Domain: "alpha", DeviceID: "dev-new",
				Payload: changePayload(t, DeviceChange{Device: profile.DeviceRecord{Name: "New"}}),
			},
			wantIDs: []string{"dev-new"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.apply(tt.ev)
			if (err != nil) != tt.wantErr {
				t.Fatalf("apply() error = %v, wantErr %v", err, tt.wantErr)
			}
			got := reg.DeviceIDs()
			if len(got) == 0 && len(tt.wantIDs) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.wantIDs) {
				t.Errorf("DeviceIDs() = %v, want %v", got, tt.wantIDs)
			}
		})
	}
}
