package evidence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-forensics/internal/bus"
	"github.com/nerrad567/gray-logic-forensics/internal/profile"
)

// appendTimeout bounds one store append on the delivery goroutine.
const appendTimeout = 5 * time.Second

// Path names a collection path.
type Path string

// Collection paths.
const (
	PathCloud  Path = "cloud"
	PathLAN    Path = "lan"
	PathDevice Path = "device"
)

// RegistrationResult is the outcome of registering one path.
type RegistrationResult struct {
	Path           Path   `json:"path"`
	Active         bool   `json:"active"`
	Reserved       bool   `json:"reserved,omitempty"`
	Entities       int    `json:"entities"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	Err            error  `json:"-"`
}

// Collector is one evidence collection path. Register is idempotent and may
// be retried after a failure; Unregister is idempotent.
type Collector interface {
	Path() Path
	Register(ctx context.Context) RegistrationResult
	Unregister() error
}

// Mirror receives every record after it has been stored.
type Mirror interface {
	MirrorRecord(h *Handle, rec Record)
}

// Mirrors fans a record out to several mirrors in order. Nil entries are skipped.
type Mirrors []Mirror

// MirrorRecord implements Mirror.
func (ms Mirrors) MirrorRecord(h *Handle, rec Record) {
	for _, m := range ms {
		if m != nil {
			m.MirrorRecord(h, rec)
		}
	}
}

// CloudCollector subscribes to state changes of every entity in the
// registry and appends them to the owning device and platform stores.
type CloudCollector struct {
	bus      bus.Bus
	registry *profile.Registry
	handles  *HandleSet
	mirror   Mirror
	logger   Logger

	mu       sync.Mutex
	sub      bus.Subscription
	entities []string
}

// NewCloudCollector creates the cloud path. mirror may be nil.
func NewCloudCollector(b bus.Bus, reg *profile.Registry, handles *HandleSet, mirror Mirror, logger Logger) *CloudCollector {
	if logger == nil {
		logger = noopLogger{}
	}
	return &CloudCollector{
		bus:      b,
		registry: reg,
		handles:  handles,
		mirror:   mirror,
		logger:   logger,
	}
}

// Path returns PathCloud.
func (c *CloudCollector) Path() Path { return PathCloud }

// Register subscribes once to exactly the registry's current entity set.
// A second call while subscribed returns the existing registration.
func (c *CloudCollector) Register(ctx context.Context) RegistrationResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub != nil {
		return c.resultLocked()
	}

	entities := c.registry.EntityIDs()
	if len(entities) == 0 {
		// An empty entity filter would match every entity.
		c.logger.Info("no entities to collect", "path", PathCloud)
		return RegistrationResult{Path: PathCloud}
	}

	sub, err := c.bus.Subscribe(ctx, bus.Filter{
		Entities: entities,
		Types:    []bus.EventType{bus.EventStateChanged},
	}, c.handle)
	if err != nil {
		regErr := &RegistrationError{Path: PathCloud, Err: err}
		c.logger.Warn("evidence collection registration failed", "path", PathCloud, "error", err)
		return RegistrationResult{Path: PathCloud, Entities: len(entities), Err: regErr}
	}

	c.sub = sub
	c.entities = entities
	c.logger.Info("evidence collection registered",
		"path", PathCloud,
		"entities", len(entities),
		"subscription", sub.ID(),
	)
	return c.resultLocked()
}

func (c *CloudCollector) resultLocked() RegistrationResult {
	return RegistrationResult{
		Path:           PathCloud,
		Active:         true,
		Entities:       len(c.entities),
		SubscriptionID: c.sub.ID(),
	}
}

// Entities returns the entity set of the active subscription.
func (c *CloudCollector) Entities() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.entities...)
}

// Unregister cancels the subscription.
func (c *CloudCollector) Unregister() error {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.entities = nil
	c.mu.Unlock()

	if sub == nil {
		return nil
	}
	return sub.Unsubscribe()
}

// handle runs on the subscription's delivery goroutine, so appends for one
// entity happen in delivery order.
func (c *CloudCollector) handle(ev bus.Event) {
	for _, a := range Route(ev, c.registry, c.handles) {
		ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
		rec, err := a.Handle.Store.Append(ctx, a.Record)
		cancel()
		if err != nil {
			c.logger.Error("evidence append failed",
				"key", a.Handle.Key,
				"entity_id", ev.EntityID,
				"error", err,
			)
			continue
		}
		if c.mirror != nil {
			c.mirror.MirrorRecord(a.Handle, rec)
		}
	}
}

// reservedCollector is a path with no collection logic yet.
type reservedCollector struct {
	path Path
}

func (r reservedCollector) Path() Path { return r.path }

func (r reservedCollector) Register(context.Context) RegistrationResult {
	return RegistrationResult{Path: r.path, Reserved: true}
}

func (reservedCollector) Unregister() error { return nil }

// Registrar sets up every evidence collection path.
type Registrar struct {
	bus    bus.Bus
	mirror Mirror
	logger Logger
}

// NewRegistrar creates a registrar delivering from b.
func NewRegistrar(b bus.Bus) *Registrar {
	return &Registrar{bus: b, logger: noopLogger{}}
}

// SetLogger sets the logger for the registrar and its collectors.
func (r *Registrar) SetLogger(logger Logger) {
	r.logger = logger
}

// SetMirror installs a mirror receiving every stored record.
func (r *Registrar) SetMirror(m Mirror) {
	r.mirror = m
}

// RegisterAll registers the cloud, LAN and device paths independently. A
// failing path does not prevent the others; it is reported in the results
// and can be retried with Registration.Retry.
//
// Parameters:
//   - ctx: Lifetime of the started collectors
//   - reg: The published profile registry
//   - handles: Stores allocated by Provisioner.Provision
//
// Returns:
//   - *Registration: Per-path results; never nil
func (r *Registrar) RegisterAll(ctx context.Context, reg *profile.Registry, handles *HandleSet) *Registration {
	rg := &Registration{
		collectors: []Collector{
			NewCloudCollector(r.bus, reg, handles, r.mirror, r.logger),
			reservedCollector{path: PathLAN},
			reservedCollector{path: PathDevice},
		},
		logger: r.logger,
	}
	rg.register(ctx)
	return rg
}

// Registration is the handle returned by RegisterAll.
type Registration struct {
	mu         sync.Mutex
	collectors []Collector
	results    []RegistrationResult
	logger     Logger
}

func (rg *Registration) register(ctx context.Context) {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	rg.results = rg.results[:0]
	for _, c := range rg.collectors {
		rg.results = append(rg.results, c.Register(ctx))
	}
}

// Retry re-registers every path. Active paths are unchanged.
func (rg *Registration) Retry(ctx context.Context) []RegistrationResult {
	rg.register(ctx)
	return rg.Results()
}

// Results returns the latest result of each path, in path order.
func (rg *Registration) Results() []RegistrationResult {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	return append([]RegistrationResult(nil), rg.results...)
}

// Err joins the errors of every failed path, or returns nil.
func (rg *Registration) Err() error {
	var errs []error
	for _, res := range rg.Results() {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

// Cloud returns the cloud collector.
func (rg *Registration) Cloud() *CloudCollector {
	for _, c := range rg.collectors {
		if cc, ok := c.(*CloudCollector); ok {
			return cc
		}
	}
	return nil
}

// Unsubscribe tears down every path in reverse registration order. It is
// idempotent.
func (rg *Registration) Unsubscribe() error {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	var errs []error
	for i := len(rg.collectors) - 1; i >= 0; i-- {
		if err := rg.collectors[i].Unregister(); err != nil {
			rg.logger.Warn("evidence collection unregister failed", "path", rg.collectors[i].Path(), "error", err)
			errs = append(errs, err)
		}
	}
	for i := range rg.results {
		rg.results[i].Active = false
		rg.results[i].SubscriptionID = ""
	}
	return errors.Join(errs...)
}
