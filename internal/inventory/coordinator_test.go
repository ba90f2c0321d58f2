package inventory

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/nerrad567/gray-logic-forensics/internal/bus"
	"github.com/nerrad567/gray-logic-forensics/internal/interest"
	"github.com/nerrad567/gray-logic-forensics/internal/profile"
	"github.com/nerrad567/gray-logic-forensics/internal/secrets"
)

func testVocabulary() interest.Vocabulary {
	return interest.NewVocabulary([]string{"alpha", "hue"}, []string{"light", "switch"})
}

// alphaZzzSnapshot has one device owned by "alpha" (supported) and one by
// "zzz" (not in the vocabulary).
func alphaZzzSnapshot() Snapshot {
	return Snapshot{
		Devices: []profile.DeviceRecord{
			{ID: "dev-alpha", Name: "Alpha lamp", ConfigEntries: []string{"entry-alpha"}},
			{ID: "dev-zzz", Name: "Unknown gadget", ConfigEntries: []string{"entry-zzz"}},
		},
		Entities: []profile.EntityRecord{
			{EntityID: "light.alpha_lamp", Platform: "alpha", DeviceID: "dev-alpha", ConfigEntryID: "entry-alpha"},
			{EntityID: "switch.zzz", Platform: "zzz", DeviceID: "dev-zzz", ConfigEntryID: "entry-zzz"},
		},
		Bindings: []profile.IntegrationBinding{
			{EntryID: "entry-alpha", Domain: "alpha"},
			{EntryID: "entry-zzz", Domain: "zzz"},
		},
	}
}

func testLAN() []LanComponent {
	return []LanComponent{{
		ID:   "router",
		Kind: profile.LanKindRouter,
		Params: profile.ConnectionParams{
			Address: "192.168.1.1",
			Credentials: profile.CredentialRefs{
				Password: &secrets.Ref{ID: "router", Key: "password"},
			},
		},
	}}
}

func newConfiguredCoordinator(t *testing.T, snap Snapshot, platforms string) (*Coordinator, *bus.Local) {
	t.Helper()

	vocab := testVocabulary()
	sel, err := interest.ParseSelection(vocab, platforms, "all")
	if err != nil {
		t.Fatalf("ParseSelection() error = %v", err)
	}
	f := interest.NewFilter(vocab)
	if err := f.Configure(sel.Platforms, sel.DeviceTypes); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	b := bus.NewLocal(16)
	t.Cleanup(b.Close)

	c := NewCoordinator(NewStaticSource(snap), b, testLAN())
	if err := c.Configure(f); err != nil {
		t.Fatalf("Coordinator.Configure() error = %v", err)
	}
	return c, b
}

func TestBuildInitialInventory_AllScenario(t *testing.T) {
	c, _ := newConfiguredCoordinator(t, alphaZzzSnapshot(), "all")

	reg, err := c.BuildInitialInventory(context.Background())
	if err != nil {
		t.Fatalf("BuildInitialInventory() error = %v", err)
	}

	if got := reg.DeviceIDs(); !reflect.DeepEqual(got, []string{"dev-alpha"}) {
		t.Errorf("DeviceIDs() = %v, want [dev-alpha]", got)
	}
	if got := reg.PlatformNames(); !reflect.DeepEqual(got, []string{"alpha", "hue"}) {
		t.Errorf("PlatformNames() = %v, want every supported platform", got)
	}
	if got := reg.PlatformDeviceIDs("alpha"); !reflect.DeepEqual(got, []string{"dev-alpha"}) {
		t.Errorf("PlatformDeviceIDs(alpha) = %v, want [dev-alpha]", got)
	}
	if got := reg.PlatformDeviceIDs("hue"); len(got) != 0 {
		t.Errorf("PlatformDeviceIDs(hue) = %v, want empty", got)
	}
	if dp, _ := reg.Device("dev-alpha"); dp.PlatformName != "alpha" {
		t.Errorf("PlatformName = %q, want alpha", dp.PlatformName)
	}
	if got := reg.LanComponentIDs(); !reflect.DeepEqual(got, []string{"router"}) {
		t.Errorf("LanComponentIDs() = %v", got)
	}
	if c.State() != StateInventoryBuilt {
		t.Errorf("State() = %s, want inventory_built", c.State())
	}
}

func TestBuildInitialInventory_Idempotent(t *testing.T) {
	c, _ := newConfiguredCoordinator(t, alphaZzzSnapshot(), "all")
	ctx := context.Background()

	first, err := c.BuildInitialInventory(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.BuildInitialInventory(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if first == second {
		t.Error("second pass should build a fresh registry")
	}
	if !reflect.DeepEqual(first.Snapshot(), second.Snapshot()) {
		t.Errorf("registries differ:\n%+v\n%+v", first.Snapshot(), second.Snapshot())
	}
}

func TestBuildInitialInventory_OutOfFilterEntityNeverIndexed(t *testing.T) {
	c, _ := newConfiguredCoordinator(t, alphaZzzSnapshot(), "alpha")

	reg, err := c.BuildInitialInventory(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range reg.EntityIDs() {
		if id == "switch.zzz" {
			t.Fatal("entity of an out-of-filter device was indexed")
		}
	}
}

// TestAdmitDevices_PlatformConsistency simulates a platform accepted by the
// filter but never instantiated.
func TestAdmitDevices_PlatformConsistency(t *testing.T) {
	c, _ := newConfiguredCoordinator(t, alphaZzzSnapshot(), "alpha")
	snap := alphaZzzSnapshot()

	reg := profile.NewRegistry() // no platforms seeded
	err := c.admitDevices(context.Background(), reg, &snap)

	var consistency *PlatformConsistencyError
	if !errors.As(err, &consistency) {
		t.Fatalf("admitDevices() error = %v, want *PlatformConsistencyError", err)
	}
	if consistency.DeviceID != "dev-alpha" || consistency.Platform != "alpha" {
		t.Errorf("error = %+v", consistency)
	}
	if !errors.Is(err, ErrPlatformConsistency) {
		t.Error("error should wrap ErrPlatformConsistency")
	}
}

type failingSource struct{}

func (failingSource) Snapshot(context.Context) (*Snapshot, error) {
	return nil, ErrSourceUnavailable
}

func TestBuildInitialInventory_FailureKeepsPublishedRegistry(t *testing.T) {
	c, _ := newConfiguredCoordinator(t, alphaZzzSnapshot(), "all")
	ctx := context.Background()

	first, err := c.BuildInitialInventory(ctx)
	if err != nil {
		t.Fatal(err)
	}

	c.source = failingSource{}
	if _, err := c.BuildInitialInventory(ctx); err == nil {
		t.Fatal("expected error from failing source")
	}
	if c.Registry() != first {
		t.Error("failed pass replaced the published registry")
	}
	if c.State() != StateInventoryBuilt {
		t.Errorf("State() = %s, want inventory_built", c.State())
	}
}

// TestBuildInitialInventory_ConsistencyFailureKeepsPublishedRegistry runs a
// full pass in which an accepted platform is never instantiated.
func TestBuildInitialInventory_ConsistencyFailureKeepsPublishedRegistry(t *testing.T) {
	c, _ := newConfiguredCoordinator(t, alphaZzzSnapshot(), "all")
	ctx := context.Background()

	first, err := c.BuildInitialInventory(ctx)
	if err != nil {
		t.Fatal(err)
	}

	c.seedNames = func() []string { return []string{"hue"} }
	reg, err := c.BuildInitialInventory(ctx)

	var consistency *PlatformConsistencyError
	if !errors.As(err, &consistency) {
		t.Fatalf("BuildInitialInventory() error = %v, want *PlatformConsistencyError", err)
	}
	if consistency.DeviceID != "dev-alpha" || consistency.Platform != "alpha" {
		t.Errorf("error = %+v", consistency)
	}
	if reg != nil {
		t.Errorf("BuildInitialInventory() registry = %p, want nil", reg)
	}
	if c.Registry() != first {
		t.Error("failed pass replaced the published registry")
	}
	if _, ok := first.Platform("alpha"); !ok {
		t.Error("published registry lost its alpha platform")
	}
	if c.State() != StateInventoryBuilt {
		t.Errorf("State() = %s, want inventory_built", c.State())
	}
}

func TestCoordinator_Transitions(t *testing.T) {
	ctx := context.Background()
	b := bus.NewLocal(4)
	t.Cleanup(b.Close)
	c := NewCoordinator(NewStaticSource(alphaZzzSnapshot()), b, nil)

	if _, err := c.BuildInitialInventory(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("build before configure error = %v", err)
	}
	if _, err := c.StartDynamicMaintenance(ctx, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("maintenance before build error = %v", err)
	}

	f := interest.NewFilter(testVocabulary())
	if err := f.Configure([]string{"all"}, []string{"all"}); err != nil {
		t.Fatal(err)
	}
	if err := c.Configure(f); err != nil {
		t.Fatal(err)
	}
	if _, err := c.BuildInitialInventory(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Configure(f); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("configure after build error = %v", err)
	}

	sub, err := c.StartDynamicMaintenance(ctx, nil)
	if err != nil {
		t.Fatalf("StartDynamicMaintenance() error = %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck // Test cleanup

	if c.State() != StateDynamicallyMaintained {
		t.Errorf("State() = %s", c.State())
	}
	if _, err := c.BuildInitialInventory(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("build while maintained error = %v", err)
	}
}

func TestBuildInitialInventory_SourceError(t *testing.T) {
	c, _ := newConfiguredCoordinator(t, alphaZzzSnapshot(), "all")
	c.source = NewFileSource("/nonexistent/inventory.yaml")

	if _, err := c.BuildInitialInventory(context.Background()); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("error = %v, want ErrSourceUnavailable", err)
	}
}
