package evidence

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/gray-logic-forensics/internal/profile"
	"github.com/nerrad567/gray-logic-forensics/internal/secrets"
)

// SecretResolver resolves a secret reference to its value.
type SecretResolver interface {
	Resolve(ref secrets.Ref) (string, error)
}

// Credentials are resolved LAN component credentials. They are held in
// memory only and never serialised.
type Credentials struct {
	Username string
	Password string
}

// Handle binds one object of forensic interest to its evidence store.
type Handle struct {
	Key      string   `json:"key"`
	Category Category `json:"category"`
	ObjectID string   `json:"object_id"`
	Channel  Channel  `json:"channel,omitempty"`
	Version  int      `json:"version"`

	Store       Store        `json:"-"`
	Credentials *Credentials `json:"-"`
}

// HandleSet is the result of one provisioning pass. It is read-only once
// returned and safe for concurrent use.
type HandleSet struct {
	byKey     map[string]*Handle
	devices   map[string]*Handle
	platforms map[string]*Handle
	lan       map[string]*Handle
	reserved  []string
	failures  []*ProvisionFailure
}

func newHandleSet() *HandleSet {
	return &HandleSet{
		byKey:     make(map[string]*Handle),
		devices:   make(map[string]*Handle),
		platforms: make(map[string]*Handle),
		lan:       make(map[string]*Handle),
	}
}

// Device returns the handle of a device store.
func (s *HandleSet) Device(id string) (*Handle, bool) {
	h, ok := s.devices[id]
	return h, ok
}

// Platform returns the poll/push handle of a platform.
func (s *HandleSet) Platform(name string) (*Handle, bool) {
	h, ok := s.platforms[name]
	return h, ok
}

// LAN returns the handle of a LAN component store.
func (s *HandleSet) LAN(id string) (*Handle, bool) {
	h, ok := s.lan[id]
	return h, ok
}

// Get returns the handle with the given key.
func (s *HandleSet) Get(key string) (*Handle, bool) {
	h, ok := s.byKey[key]
	return h, ok
}

// Handles returns every allocated handle, sorted by key.
func (s *HandleSet) Handles() []*Handle {
	out := make([]*Handle, 0, len(s.byKey))
	for _, h := range s.byKey {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Len returns the number of allocated handles.
func (s *HandleSet) Len() int {
	return len(s.byKey)
}

// Reserved returns the keys held for reserved platform sub-channels.
func (s *HandleSet) Reserved() []string {
	return append([]string(nil), s.reserved...)
}

// Failures returns the objects that could not be provisioned.
func (s *HandleSet) Failures() []*ProvisionFailure {
	return append([]*ProvisionFailure(nil), s.failures...)
}

// Logger is the logging interface used by the provisioner and registrar.
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

// Provisioner allocates one evidence store per object of forensic
// interest. It runs once per process.
type Provisioner struct {
	backend  Backend
	resolver SecretResolver
	version  int
	logger   Logger

	mu          sync.Mutex
	provisioned bool
}

// NewProvisioner creates a provisioner. resolver may be nil when no LAN
// component carries credentials. A version <= 0 means StorageVersion.
func NewProvisioner(backend Backend, resolver SecretResolver, version int) *Provisioner {
	if version <= 0 {
		version = StorageVersion
	}
	return &Provisioner{
		backend:  backend,
		resolver: resolver,
		version:  version,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the provisioner.
func (p *Provisioner) SetLogger(logger Logger) {
	p.logger = logger
}

// Provision allocates stores for every platform, device and LAN component
// in reg, in that order and sorted by id within each category.
//
// A failure for one object is recorded in the HandleSet and logged;
// provisioning continues with the rest. The returned error is non-nil only
// when the pass as a whole cannot run: a second call, a nil registry, or a
// cancelled context.
//
// Parameters:
//   - ctx: Checked between objects
//   - reg: The published profile registry
//
// Returns:
//   - *HandleSet: Handles, reserved keys and per-object failures
//   - error: ErrAlreadyProvisioned, a nil registry error, or ctx.Err()
func (p *Provisioner) Provision(ctx context.Context, reg *profile.Registry) (*HandleSet, error) {
	if reg == nil {
		return nil, fmt.Errorf("evidence: nil registry")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.provisioned {
		return nil, ErrAlreadyProvisioned
	}

	run := &provisionRun{p: p, set: newHandleSet()}

	for _, name := range reg.PlatformNames() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		run.platform(ctx, name)
	}
	for _, id := range reg.DeviceIDs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		run.allocate(ctx, CategoryDevice, "", id, DeviceKey(id), nil)
	}
	for _, id := range reg.LanComponentIDs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lp, ok := reg.LanComponent(id)
		if !ok {
			continue
		}
		run.lanComponent(ctx, lp)
	}

	p.provisioned = true
	p.logger.Info("evidence stores provisioned",
		"stores", run.set.Len(),
		"reserved", len(run.set.reserved),
		"failures", len(run.set.failures),
	)
	return run.set, nil
}

// provisionRun carries the state of one Provision call.
type provisionRun struct {
	p   *Provisioner
	set *HandleSet
}

func (r *provisionRun) platform(ctx context.Context, name string) {
	for _, ch := range ReservedChannels {
		key, err := PlatformKey(ch, name)
		if err != nil {
			r.fail(CategoryPlatform, name, "", err)
			continue
		}
		if r.taken(key) {
			r.fail(CategoryPlatform, name, key, ErrKeyCollision)
			continue
		}
		r.set.reserved = append(r.set.reserved, key)
	}

	key, err := PlatformKey(ChannelPollPush, name)
	if err != nil {
		r.fail(CategoryPlatform, name, "", err)
		return
	}
	r.allocate(ctx, CategoryPlatform, ChannelPollPush, name, key, nil)
}

func (r *provisionRun) lanComponent(ctx context.Context, lp *profile.LanComponentProfile) {
	key := LANKey(lp.ID)

	creds, err := r.credentials(lp.Credentials)
	if err != nil {
		r.fail(CategoryLAN, lp.ID, key, err)
		return
	}
	r.allocate(ctx, CategoryLAN, "", lp.ID, key, creds)
}

func (r *provisionRun) credentials(refs profile.CredentialRefs) (*Credentials, error) {
	if refs.Username == nil && refs.Password == nil {
		return nil, nil
	}
	if r.p.resolver == nil {
		return nil, fmt.Errorf("%w: no secret resolver configured", ErrCredentialUnavailable)
	}

	var creds Credentials
	if refs.Username != nil {
		v, err := r.p.resolver.Resolve(*refs.Username)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCredentialUnavailable, refs.Username, err)
		}
		creds.Username = v
	}
	if refs.Password != nil {
		v, err := r.p.resolver.Resolve(*refs.Password)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCredentialUnavailable, refs.Password, err)
		}
		creds.Password = v
	}
	return &creds, nil
}

func (r *provisionRun) taken(key string) bool {
	if _, ok := r.set.byKey[key]; ok {
		return true
	}
	for _, k := range r.set.reserved {
		if k == key {
			return true
		}
	}
	return false
}

func (r *provisionRun) allocate(ctx context.Context, cat Category, ch Channel, id, key string, creds *Credentials) {
	if r.taken(key) {
		r.fail(cat, id, key, ErrKeyCollision)
		return
	}

	store, err := r.p.backend.Open(ctx, r.p.version, key)
	if err != nil {
		r.fail(cat, id, key, fmt.Errorf("%w: %w", ErrStoreAllocation, err))
		return
	}

	h := &Handle{
		Key:         key,
		Category:    cat,
		ObjectID:    id,
		Channel:     ch,
		Version:     store.Version(),
		Store:       store,
		Credentials: creds,
	}
	r.set.byKey[key] = h

	switch cat {
	case CategoryDevice:
		r.set.devices[id] = h
	case CategoryPlatform:
		r.set.platforms[id] = h
	case CategoryLAN:
		r.set.lan[id] = h
	}

	r.p.logger.Debug("evidence store allocated", "key", key, "category", cat)
}

func (r *provisionRun) fail(cat Category, id, key string, err error) {
	f := &ProvisionFailure{Category: cat, ObjectID: id, Key: key, Err: err}
	r.set.failures = append(r.set.failures, f)
	r.p.logger.Warn("evidence store not provisioned",
		"category", cat,
		"object_id", id,
		"key", key,
		"error", err,
	)
}
