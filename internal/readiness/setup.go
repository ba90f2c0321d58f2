package readiness

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-forensics/internal/bus"
	"github.com/nerrad567/gray-logic-forensics/internal/evidence"
	"github.com/nerrad567/gray-logic-forensics/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-forensics/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-forensics/internal/interest"
	"github.com/nerrad567/gray-logic-forensics/internal/inventory"
	"github.com/nerrad567/gray-logic-forensics/internal/profile"
)

// Phase is the furthest pipeline stage reached.
type Phase string

// Pipeline phases.
const (
	PhaseIdle           Phase = "idle"
	PhaseConfigured     Phase = "configured"
	PhaseInventoryBuilt Phase = "inventory_built"
	PhaseProvisioned    Phase = "provisioned"
	PhaseRegistered     Phase = "registered"
	PhaseFailed         Phase = "failed"
	PhaseClosed         Phase = "closed"
)

// Deps holds the collaborators of a Setup.
type Deps struct {
	Readiness config.ReadinessConfig
	Evidence  config.EvidenceConfig
	LAN       config.LANConfig

	Logger  *logging.Logger
	Source  inventory.Source
	Bus     bus.Bus
	Backend evidence.Backend
	Secrets evidence.SecretResolver

	// Mirror is optional.
	Mirror evidence.Mirror
}

// Report summarises one pipeline run.
type Report struct {
	Counts            profile.Counts
	Platforms         []string
	Stores            int
	ReservedKeys      int
	ProvisionFailures []*evidence.ProvisionFailure
	Registration      []evidence.RegistrationResult

	// MaintenanceErr is set when dynamic maintenance could not be started.
	MaintenanceErr error
}

// Setup owns the readiness pipeline of one process.
type Setup struct {
	deps   Deps
	logger *logging.Logger

	mu           sync.RWMutex
	phase        Phase
	coordinator  *inventory.Coordinator
	handles      *evidence.HandleSet
	registration *evidence.Registration
}

// New validates deps and returns an idle Setup.
func New(deps Deps) (*Setup, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Source == nil {
		return nil, fmt.Errorf("inventory source is required")
	}
	if deps.Bus == nil {
		return nil, fmt.Errorf("notification bus is required")
	}
	if deps.Backend == nil {
		return nil, fmt.Errorf("evidence backend is required")
	}

	return &Setup{
		deps:   deps,
		logger: deps.Logger.With("component", "readiness"),
		phase:  PhaseIdle,
	}, nil
}

// Run executes the pipeline once.
//
// Returns:
//   - *Report: Summary of what is covered; nil on a fatal error
//   - error: ErrConfiguration, a *inventory.PlatformConsistencyError, a
//     source error, or ErrAlreadyRun
func (s *Setup) Run(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	switch s.phase {
	case PhaseIdle:
	case PhaseClosed:
		s.mu.Unlock()
		return nil, ErrClosed
	default:
		s.mu.Unlock()
		return nil, ErrAlreadyRun
	}
	s.phase = PhaseConfigured
	s.mu.Unlock()

	report, err := s.run(ctx)
	if err != nil {
		s.setPhase(PhaseFailed)
		return nil, err
	}
	return report, nil
}

func (s *Setup) run(ctx context.Context) (*Report, error) {
	filter, err := s.buildFilter()
	if err != nil {
		return nil, err
	}

	coord := inventory.NewCoordinator(s.deps.Source, s.deps.Bus, LANComponents(s.deps.LAN))
	coord.SetLogger(s.deps.Logger.With("component", "inventory"))
	if err := coord.Configure(filter); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.coordinator = coord
	s.mu.Unlock()

	reg, err := coord.BuildInitialInventory(ctx)
	if err != nil {
		var consistency *inventory.PlatformConsistencyError
		if errors.As(err, &consistency) {
			s.logger.Error("inventory inconsistent, readiness aborted", "error", err)
		}
		return nil, fmt.Errorf("building inventory: %w", err)
	}
	s.setPhase(PhaseInventoryBuilt)

	report := &Report{
		Counts:    reg.Counts(),
		Platforms: reg.PlatformNames(),
	}

	if _, err := coord.StartDynamicMaintenance(ctx, s.deps.Readiness.MaintenanceDomains); err != nil {
		s.logger.Warn("dynamic maintenance not started", "error", err)
		report.MaintenanceErr = err
	}

	prov := evidence.NewProvisioner(s.deps.Backend, s.deps.Secrets, s.deps.Evidence.StorageVersion)
	prov.SetLogger(s.deps.Logger.With("component", "evidence"))
	handles, err := prov.Provision(ctx, reg)
	if err != nil {
		return nil, fmt.Errorf("provisioning evidence stores: %w", err)
	}
	s.mu.Lock()
	s.handles = handles
	s.phase = PhaseProvisioned
	s.mu.Unlock()

	report.Stores = handles.Len()
	report.ReservedKeys = len(handles.Reserved())
	report.ProvisionFailures = handles.Failures()

	registrar := evidence.NewRegistrar(s.deps.Bus)
	registrar.SetLogger(s.deps.Logger.With("component", "collection"))
	if s.deps.Mirror != nil {
		registrar.SetMirror(s.deps.Mirror)
	}
	registration := registrar.RegisterAll(ctx, reg, handles)

	s.mu.Lock()
	s.registration = registration
	s.phase = PhaseRegistered
	s.mu.Unlock()

	report.Registration = registration.Results()
	if err := registration.Err(); err != nil {
		s.logger.Warn("evidence collection partially registered", "error", err)
	}

	s.logger.Info("forensic readiness established",
		"devices", report.Counts.Devices,
		"platforms", report.Counts.Platforms,
		"lan_components", report.Counts.LanComponents,
		"stores", report.Stores,
		"provision_failures", len(report.ProvisionFailures),
	)
	return report, nil
}

func (s *Setup) buildFilter() (*interest.Filter, error) {
	cfg := s.deps.Readiness
	vocab := interest.DefaultVocabulary()
	if len(cfg.Vocabulary.Platforms) > 0 {
		vocab = interest.NewVocabulary(cfg.Vocabulary.Platforms, cfg.Vocabulary.DeviceTypes)
	}

	sel, err := interest.ParseSelection(vocab, cfg.Platform, cfg.DeviceType)
	if err != nil {
		s.logger.Error("readiness preferences rejected", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	filter := interest.NewFilter(vocab)
	if err := filter.Configure(sel.Platforms, sel.DeviceTypes); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return filter, nil
}

// RetryRegistration re-registers collection paths that failed. It returns
// the latest results, or nil before registration has run.
func (s *Setup) RetryRegistration(ctx context.Context) []evidence.RegistrationResult {
	s.mu.RLock()
	rg := s.registration
	s.mu.RUnlock()

	if rg == nil {
		return nil
	}
	return rg.Retry(ctx)
}

func (s *Setup) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

// Phase returns the furthest stage reached.
func (s *Setup) Phase() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return string(s.phase)
}

// Registry returns the published profile registry, or nil.
func (s *Setup) Registry() *profile.Registry {
	s.mu.RLock()
	coord := s.coordinator
	s.mu.RUnlock()

	if coord == nil {
		return nil
	}
	return coord.Registry()
}

// Handles returns the provisioned store handles, or nil.
func (s *Setup) Handles() *evidence.HandleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handles
}

// RegistrationResults returns the state of each collection path.
func (s *Setup) RegistrationResults() []evidence.RegistrationResult {
	s.mu.RLock()
	rg := s.registration
	s.mu.RUnlock()

	if rg == nil {
		return nil
	}
	return rg.Results()
}

// Close tears down evidence collection, then dynamic maintenance. It is
// idempotent.
func (s *Setup) Close() error {
	s.mu.Lock()
	rg := s.registration
	coord := s.coordinator
	s.registration = nil
	s.phase = PhaseClosed
	s.mu.Unlock()

	var errs []error
	if rg != nil {
		if err := rg.Unsubscribe(); err != nil {
			errs = append(errs, fmt.Errorf("unsubscribing collectors: %w", err))
		}
	}
	if coord != nil {
		if err := coord.Close(); err != nil {
			errs = append(errs, fmt.Errorf("stopping maintenance: %w", err))
		}
	}
	return errors.Join(errs...)
}
