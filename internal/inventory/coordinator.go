package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-forensics/internal/bus"
	"github.com/nerrad567/gray-logic-forensics/internal/interest"
	"github.com/nerrad567/gray-logic-forensics/internal/profile"
)

// State is a coordinator lifecycle state.
type State int

// Coordinator states, in lifecycle order.
const (
	StateUninitialized State = iota
	StateFilterConfigured
	StateInventoryBuilt
	StateDynamicallyMaintained
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateFilterConfigured:
		return "filter_configured"
	case StateInventoryBuilt:
		return "inventory_built"
	case StateDynamicallyMaintained:
		return "dynamically_maintained"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// LanComponent is the static description of one LAN component.
type LanComponent struct {
	ID     string
	Kind   profile.LanKind
	Params profile.ConnectionParams
}

// Logger defines the logging interface used by the Coordinator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Coordinator drives discovery: it reads the host registries, applies the
// interest filter, and owns the resulting profile registry.
//
// Lifecycle:
//
//	Uninitialized --Configure--> FilterConfigured --BuildInitialInventory--> InventoryBuilt
//	InventoryBuilt --StartDynamicMaintenance--> DynamicallyMaintained
//
// BuildInitialInventory may be repeated from InventoryBuilt; each call
// builds a fresh registry. All methods are safe for concurrent use.
type Coordinator struct {
	source Source
	bus    bus.Bus
	lan    []LanComponent

	mu          sync.Mutex
	state       State
	filter      *interest.Filter
	registry    *profile.Registry
	maintenance bus.Subscription

	// seedNames overrides the platforms instantiated by a pass. Nil means
	// the filter's accepted set.
	seedNames func() []string

	logger Logger
}

// NewCoordinator creates a coordinator reading from source. b is used for
// dynamic maintenance; lan lists the statically configured LAN components.
func NewCoordinator(source Source, b bus.Bus, lan []LanComponent) *Coordinator {
	return &Coordinator{
		source: source,
		bus:    b,
		lan:    append([]LanComponent(nil), lan...),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the coordinator.
func (c *Coordinator) SetLogger(logger Logger) {
	c.logger = logger
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Registry returns the published registry, or nil before the first
// successful build.
func (c *Coordinator) Registry() *profile.Registry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry
}

// Configure installs the interest filter. It may be repeated until the
// inventory is built.
func (c *Coordinator) Configure(filter *interest.Filter) error {
	if filter == nil {
		return fmt.Errorf("%w: nil filter", ErrInvalidTransition)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateUninitialized && c.state != StateFilterConfigured {
		return fmt.Errorf("%w: configure in state %s", ErrInvalidTransition, c.state)
	}
	c.filter = filter
	c.state = StateFilterConfigured
	return nil
}

// BuildInitialInventory runs one discovery pass:
//  1. a PlatformProfile for every platform in the filter's accepted set
//  2. a DeviceProfile for every raw device, evaluated by the filter
//  3. accepted devices admitted and back-linked to their platform
//  4. LAN component profiles from static configuration
//
// A device accepted for a platform without a profile aborts the pass with
// a *PlatformConsistencyError; the previous registry (if any) stays
// published. Rejected devices are simply omitted.
//
// Parameters:
//   - ctx: Bounds the source snapshot and device evaluation
//
// Returns:
//   - *profile.Registry: The newly published registry; nil on error
//   - error: ErrInvalidTransition, a wrapped source error, or a
//     *PlatformConsistencyError
func (c *Coordinator) BuildInitialInventory(ctx context.Context) (*profile.Registry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateFilterConfigured && c.state != StateInventoryBuilt {
		return nil, fmt.Errorf("%w: build in state %s", ErrInvalidTransition, c.state)
	}

	snap, err := c.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading inventory: %w", err)
	}

	reg := profile.NewRegistry()

	if err := c.seedPlatforms(reg); err != nil {
		return nil, err
	}
	if err := c.admitDevices(ctx, reg, snap); err != nil {
		var consistency *PlatformConsistencyError
		if errors.As(err, &consistency) {
			c.logger.Error("inventory pass aborted",
				"device_id", consistency.DeviceID,
				"platform", consistency.Platform,
			)
		}
		return nil, err
	}
	if err := c.addLanComponents(reg); err != nil {
		return nil, err
	}

	c.registry = reg
	c.state = StateInventoryBuilt

	counts := reg.Counts()
	c.logger.Info("inventory built",
		"devices", counts.Devices,
		"platforms", counts.Platforms,
		"lan_components", counts.LanComponents,
		"entities", counts.Entities,
	)
	return reg, nil
}

func (c *Coordinator) seedPlatforms(reg *profile.Registry) error {
	names := c.filter.Config().Platforms()
	if c.seedNames != nil {
		names = c.seedNames()
	}
	for _, name := range names {
		if err := reg.AddPlatform(profile.BuildPlatformProfile(name)); err != nil {
			return fmt.Errorf("seeding platform %s: %w", name, err)
		}
	}
	return nil
}

// admitDevices evaluates every device in snap and admits the accepted ones
// into reg.
func (c *Coordinator) admitDevices(ctx context.Context, reg *profile.Registry, snap *Snapshot) error {
	for _, dev := range snap.Devices {
		if err := ctx.Err(); err != nil {
			return err
		}
		if dev.ID == "" {
			c.logger.Warn("skipping device without id", "name", dev.Name)
			continue
		}

		entities := snap.EntitiesForDevice(dev.ID)
		dp := profile.BuildDeviceProfile(dev, entities, snap.BindingsForDevice(dev, entities))

		verdict := c.filter.Evaluate(dp, dp.OwnerDomains())
		if !verdict.Accepted {
			c.logger.Debug("device not of interest", "device_id", dev.ID, "domains", dp.OwnerDomains())
			continue
		}
		dp.PlatformName = verdict.MatchedPlatform

		if err := reg.AdmitDevice(dp); err != nil {
			if errors.Is(err, profile.ErrPlatformNotFound) {
				return &PlatformConsistencyError{DeviceID: dp.ID, Platform: dp.PlatformName}
			}
			return fmt.Errorf("admitting device %s: %w", dp.ID, err)
		}
	}
	return nil
}

func (c *Coordinator) addLanComponents(reg *profile.Registry) error {
	for _, l := range c.lan {
		lp := profile.BuildLanComponentProfile(l.ID, l.Kind, l.Params)
		if err := reg.AddLanComponent(lp); err != nil {
			return fmt.Errorf("adding LAN component %s: %w", l.ID, err)
		}
	}
	return nil
}

// StartDynamicMaintenance subscribes to device join, update and leave
// notifications for domains (default: the accepted platforms) and applies
// them to the published registry.
//
// A subscription failure is returned and the call may be retried; the
// state is unchanged.
//
// Parameters:
//   - ctx: Stops the maintainer when cancelled
//   - domains: Integration domains to follow; empty means the accepted platforms
//
// Returns:
//   - bus.Subscription: The live subscription, also released by Close
//   - error: ErrInvalidTransition or the wrapped bus subscription error
func (c *Coordinator) StartDynamicMaintenance(ctx context.Context, domains []string) (bus.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateInventoryBuilt {
		return nil, fmt.Errorf("%w: maintenance in state %s", ErrInvalidTransition, c.state)
	}
	if len(domains) == 0 {
		domains = c.filter.Config().Platforms()
	}

	m := &maintainer{
		registry: c.registry,
		filter:   c.filter,
		logger:   c.logger,
	}

	sub, err := c.bus.Subscribe(ctx, bus.Filter{
		Domains: domains,
		Types:   []bus.EventType{bus.EventDeviceJoined, bus.EventDeviceUpdated, bus.EventDeviceLeft},
	}, m.handle)
	if err != nil {
		return nil, fmt.Errorf("subscribing to registry changes: %w", err)
	}

	c.maintenance = sub
	c.state = StateDynamicallyMaintained
	c.logger.Info("dynamic maintenance started", "domains", domains, "subscription", sub.ID())
	return sub, nil
}

// Close stops dynamic maintenance, if running.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	sub := c.maintenance
	c.maintenance = nil
	c.mu.Unlock()

	if sub == nil {
		return nil
	}
	return sub.Unsubscribe()
}
