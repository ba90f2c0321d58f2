package evidence

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-forensics/internal/bus"
	"github.com/nerrad567/gray-logic-forensics/internal/profile"
)

func provisionMem(t *testing.T, reg *profile.Registry) (*HandleSet, *memBackend) {
	t.Helper()
	backend := newMemBackend()
	set, err := NewProvisioner(backend, nil, 0).Provision(context.Background(), reg)
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	return set, backend
}

func waitForRecords(t *testing.T, s *memStore, n int) []Record {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		got, _ := s.Records(context.Background(), 0) //nolint:errcheck // memStore never fails reads
		if len(got) >= n {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout: %s has %d records, want %d", s.key, len(got), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRoute(t *testing.T) {
	reg := newTestRegistry(t,
		[]string{"hue", "zwave"},
		[]testDevice{
			{id: "lamp", platform: "hue", entities: []string{"light.lamp"}},
			{id: "plug", platform: "zwave", entities: []string{"switch.plug"}},
		},
	)
	backend := newMemBackend()
	backend.fail["fe_ppp_zwave"] = errors.New("unavailable")
	set, err := NewProvisioner(backend, nil, 0).Provision(context.Background(), reg)
	if err != nil {
		t.Fatal(err)
	}

	ts := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		entityID string
		wantKeys []string
	}{
		{"device and platform store", "light.lamp", []string{"fe_dev_lamp", "fe_ppp_hue"}},
		{"untracked platform store", "switch.plug", []string{"fe_dev_plug"}},
		{"unknown entity", "light.stranger", nil},
		{"empty entity", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := bus.Event{
				Type:      bus.EventStateChanged,
				EntityID:  tt.entityID,
				Payload:   []byte(`{"state":"on"}`),
				Timestamp: ts,
			}
			appends := Route(ev, reg, set)

			var keys []string
			for _, a := range appends {
				keys = append(keys, a.Handle.Key)
				if a.Record.EntityID != tt.entityID || !a.Record.ObservedAt.Equal(ts) {
					t.Errorf("Record = %+v", a.Record)
				}
			}
			if !reflect.DeepEqual(keys, tt.wantKeys) {
				t.Errorf("Route() keys = %v, want %v", keys, tt.wantKeys)
			}
		})
	}
}

func TestRoute_DeviceWithoutStore(t *testing.T) {
	reg := newTestRegistry(t, []string{"hue"}, []testDevice{{id: "lamp", platform: "hue", entities: []string{"light.lamp"}}})
	backend := newMemBackend()
	backend.fail[DeviceKey("lamp")] = errors.New("unavailable")
	set, err := NewProvisioner(backend, nil, 0).Provision(context.Background(), reg)
	if err != nil {
		t.Fatal(err)
	}

	if got := Route(bus.Event{Type: bus.EventStateChanged, EntityID: "light.lamp"}, reg, set); len(got) != 0 {
		t.Errorf("Route() = %v, want no appends", got)
	}
}

func TestRegisterAll_SubscribesExactEntitySet(t *testing.T) {
	reg := newTestRegistry(t,
		[]string{"hue"},
		[]testDevice{
			{id: "lamp", platform: "hue", entities: []string{"light.lamp", "sensor.lamp_power"}},
			{id: "strip", platform: "hue", entities: []string{"light.strip"}},
		},
	)
	set, _ := provisionMem(t, reg)
	b := bus.NewLocal(8)
	t.Cleanup(b.Close)

	rg := NewRegistrar(b).RegisterAll(context.Background(), reg, set)
	defer rg.Unsubscribe() //nolint:errcheck // Test cleanup

	want := []string{"light.lamp", "light.strip", "sensor.lamp_power"}
	if got := rg.Cloud().Entities(); !reflect.DeepEqual(got, want) {
		t.Errorf("Entities() = %v, want %v", got, want)
	}

	results := rg.Results()
	if len(results) != 3 {
		t.Fatalf("Results() = %+v", results)
	}
	if !results[0].Active || results[0].Path != PathCloud || results[0].Entities != 3 {
		t.Errorf("cloud result = %+v", results[0])
	}
	for _, res := range results[1:] {
		if res.Active || !res.Reserved || res.Err != nil {
			t.Errorf("%s result = %+v, want reserved", res.Path, res)
		}
	}
	if rg.Err() != nil {
		t.Errorf("Err() = %v", rg.Err())
	}

	// A device admitted later is not part of this registration.
	dp := profile.BuildDeviceProfile(profile.DeviceRecord{ID: "late"},
		[]profile.EntityRecord{{EntityID: "light.late", DeviceID: "late"}}, nil)
	dp.PlatformName = "hue"
	if err := reg.AdmitDevice(dp); err != nil {
		t.Fatal(err)
	}
	if got := rg.Cloud().Entities(); !reflect.DeepEqual(got, want) {
		t.Errorf("Entities() after join = %v, want %v", got, want)
	}
}

func TestRegisterAll_PreservesPerEntityOrder(t *testing.T) {
	reg := newTestRegistry(t, []string{"hue"}, []testDevice{{id: "lamp", platform: "hue", entities: []string{"light.lamp"}}})
	set, backend := provisionMem(t, reg)
	b := bus.NewLocal(2)
	t.Cleanup(b.Close)

	rg := NewRegistrar(b).RegisterAll(context.Background(), reg, set)
	defer rg.Unsubscribe() //nolint:errcheck // Test cleanup

	const n = 50
	for i := 0; i < n; i++ {
		b.Publish(bus.Event{
			Type:     bus.EventStateChanged,
			Domain:   "hue",
			EntityID: "light.lamp",
			Payload:  []byte(fmt.Sprintf(`{"seq":%d}`, i)),
		})
	}
	// Out-of-set entity is never routed.
	b.Publish(bus.Event{Type: bus.EventStateChanged, Domain: "hue", EntityID: "light.other"})

	for _, key := range []string{"fe_dev_lamp", "fe_ppp_hue"} {
		records := waitForRecords(t, backend.stores[key], n)
		for i, rec := range records {
			if want := fmt.Sprintf(`{"seq":%d}`, i); string(rec.Payload) != want {
				t.Fatalf("%s record %d payload = %s, want %s", key, i, rec.Payload, want)
			}
		}
	}
}

type recordingMirror struct {
	mu   sync.Mutex
	keys []string
}

func (m *recordingMirror) MirrorRecord(h *Handle, _ Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, h.Key)
}

func (m *recordingMirror) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

func TestRegisterAll_MirrorsStoredRecordsOnly(t *testing.T) {
	reg := newTestRegistry(t, []string{"hue"}, []testDevice{{id: "lamp", platform: "hue", entities: []string{"light.lamp"}}})
	set, backend := provisionMem(t, reg)
	backend.stores["fe_ppp_hue"].failing = true

	b := bus.NewLocal(4)
	t.Cleanup(b.Close)
	mirror := &recordingMirror{}
	r := NewRegistrar(b)
	r.SetMirror(mirror)
	rg := r.RegisterAll(context.Background(), reg, set)

	b.Publish(bus.Event{Type: bus.EventStateChanged, EntityID: "light.lamp"})
	waitForRecords(t, backend.stores["fe_dev_lamp"], 1)

	// Unsubscribe waits for the handler, so the mirror is settled after it.
	if err := rg.Unsubscribe(); err != nil {
		t.Fatal(err)
	}
	if got := mirror.count(); got != 1 {
		t.Errorf("mirrored %d records, want 1", got)
	}
}

func TestMirrors_FanOut(t *testing.T) {
	a, b := &recordingMirror{}, &recordingMirror{}
	ms := Mirrors{a, nil, b}

	ms.MirrorRecord(&Handle{Key: "fe_dev_lamp"}, Record{EntityID: "light.lamp"})

	if a.count() != 1 || b.count() != 1 {
		t.Errorf("mirrored %d/%d records, want 1/1", a.count(), b.count())
	}
}

func TestRegisterAll_IdempotentAndUnsubscribe(t *testing.T) {
	reg := newTestRegistry(t, []string{"hue"}, []testDevice{{id: "lamp", platform: "hue", entities: []string{"light.lamp"}}})
	set, backend := provisionMem(t, reg)
	b := bus.NewLocal(4)
	t.Cleanup(b.Close)

	rg := NewRegistrar(b).RegisterAll(context.Background(), reg, set)
	first := rg.Results()[0].SubscriptionID

	again := rg.Retry(context.Background())
	if again[0].SubscriptionID != first {
		t.Errorf("Retry() resubscribed: %s != %s", again[0].SubscriptionID, first)
	}
	if b.Subscribers() != 1 {
		t.Errorf("Subscribers() = %d, want 1", b.Subscribers())
	}

	if err := rg.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if err := rg.Unsubscribe(); err != nil {
		t.Fatalf("second Unsubscribe() error = %v", err)
	}
	if b.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d after unsubscribe", b.Subscribers())
	}
	if rg.Results()[0].Active {
		t.Error("cloud path still active")
	}

	b.Publish(bus.Event{Type: bus.EventStateChanged, EntityID: "light.lamp"})
	time.Sleep(20 * time.Millisecond)
	if got, _ := backend.stores["fe_dev_lamp"].Records(context.Background(), 0); len(got) != 0 { //nolint:errcheck // memStore never fails reads
		t.Errorf("records after unsubscribe = %d", len(got))
	}
}

// flakyBus fails the first Subscribe call.
type flakyBus struct {
	*bus.Local
	mu    sync.Mutex
	calls int
}

func (f *flakyBus) Subscribe(ctx context.Context, filter bus.Filter, h bus.Handler) (bus.Subscription, error) {
	f.mu.Lock()
	f.calls++
	first := f.calls == 1
	f.mu.Unlock()
	if first {
		return nil, errors.New("broker unavailable")
	}
	return f.Local.Subscribe(ctx, filter, h)
}

func TestRegisterAll_FailureIsRetriable(t *testing.T) {
	reg := newTestRegistry(t, []string{"hue"}, []testDevice{{id: "lamp", platform: "hue", entities: []string{"light.lamp"}}})
	set, _ := provisionMem(t, reg)
	b := &flakyBus{Local: bus.NewLocal(4)}
	t.Cleanup(b.Close)

	rg := NewRegistrar(b).RegisterAll(context.Background(), reg, set)
	defer rg.Unsubscribe() //nolint:errcheck // Test cleanup

	res := rg.Results()
	var regErr *RegistrationError
	if !errors.As(res[0].Err, &regErr) || regErr.Path != PathCloud {
		t.Fatalf("cloud result = %+v, want *RegistrationError", res[0])
	}
	if res[0].Active {
		t.Error("failed path reported active")
	}
	if !res[1].Reserved || !res[2].Reserved {
		t.Error("reserved paths affected by cloud failure")
	}
	if rg.Err() == nil {
		t.Error("Err() = nil after failure")
	}

	res = rg.Retry(context.Background())
	if !res[0].Active || res[0].Err != nil {
		t.Errorf("after retry = %+v", res[0])
	}
}

func TestRegisterAll_EmptyRegistry(t *testing.T) {
	reg := newTestRegistry(t, []string{"hue"}, nil)
	set, _ := provisionMem(t, reg)
	b := bus.NewLocal(4)
	t.Cleanup(b.Close)

	rg := NewRegistrar(b).RegisterAll(context.Background(), reg, set)
	if res := rg.Results()[0]; res.Active || res.Err != nil {
		t.Errorf("cloud result = %+v, want inactive without error", res)
	}
	if b.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", b.Subscribers())
	}
}
