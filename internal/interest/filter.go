package interest

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-forensics/internal/profile"
)

// Check flags accumulated by Evaluate. A device is accepted only when every
// flag in checkAll is raised.
const (
	checkPlatform uint8 = 1 << iota
	checkDeviceType

	checkAll = checkPlatform | checkDeviceType
)

// FilterConfig is the normalised, immutable interest selection.
type FilterConfig struct {
	platforms   map[string]struct{}
	deviceTypes map[string]struct{}
}

// Platforms returns the accepted platform names, sorted.
func (c FilterConfig) Platforms() []string {
	return sortedKeys(c.platforms)
}

// DeviceTypes returns the accepted device types, sorted.
func (c FilterConfig) DeviceTypes() []string {
	return sortedKeys(c.deviceTypes)
}

// Verdict is the outcome of evaluating one device.
type Verdict struct {
	Accepted bool
	// MatchedPlatform is the owning domain that satisfied the platform
	// check. Empty when not accepted.
	MatchedPlatform string
}

// Filter evaluates devices against an operator's interest selection.
//
// Configure may be called any number of times until the first Evaluate or
// IsPlatformOfInterest call; after that the configuration is fixed.
// All methods are safe for concurrent use.
type Filter struct {
	vocab Vocabulary

	mu     sync.RWMutex
	cfg    FilterConfig
	sealed atomic.Bool
}

// NewFilter creates an unconfigured filter over vocab. An unconfigured
// filter accepts nothing.
func NewFilter(vocab Vocabulary) *Filter {
	return &Filter{
		vocab: vocab,
		cfg: FilterConfig{
			platforms:   map[string]struct{}{},
			deviceTypes: map[string]struct{}{},
		},
	}
}

// Vocabulary returns the vocabulary the filter was built with.
func (f *Filter) Vocabulary() Vocabulary {
	return f.vocab
}

// Configure sets the accepted platforms and device types. "all" in either
// list expands to the full vocabulary for that dimension (the literal itself
// is never stored).
//
// Configuring with the same input twice yields the same configuration.
// Unsupported tokens return a *ConfigError and leave the previous
// configuration untouched. Returns ErrFilterSealed after evaluation began.
//
// Parameters:
//   - platforms: Platform tokens, or "all"
//   - deviceTypes: Device type tokens, or "all"
//
// Returns:
//   - error: nil, a *ConfigError, or ErrFilterSealed
func (f *Filter) Configure(platforms, deviceTypes []string) error {
	if f.sealed.Load() {
		return ErrFilterSealed
	}

	p, err := expand("platform", platforms, f.vocab.Platforms)
	if err != nil {
		return err
	}
	d, err := expand("device_type", deviceTypes, f.vocab.DeviceTypes)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sealed.Load() {
		return ErrFilterSealed
	}
	f.cfg = FilterConfig{platforms: p, deviceTypes: d}
	return nil
}

// Config returns the current configuration.
func (f *Filter) Config() FilterConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cfg
}

// IsPlatformOfInterest reports whether name is in the accepted platform set.
func (f *Filter) IsPlatformOfInterest(name string) bool {
	f.sealed.Store(true)

	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.cfg.platforms[name]
	return ok
}

// Evaluate decides whether device is an object of interest given the
// domains of the integrations that own it.
//
// Every owner domain is inspected; there is no short-circuit. The first
// domain found in the platform set becomes MatchedPlatform. A device with
// no owner domains is rejected.
func (f *Filter) Evaluate(device *profile.DeviceProfile, ownerDomains []string) Verdict {
	f.sealed.Store(true)

	f.mu.RLock()
	cfg := f.cfg
	f.mu.RUnlock()

	var flags uint8
	var matched string
	for _, domain := range ownerDomains {
		if _, ok := cfg.platforms[domain]; ok {
			flags |= checkPlatform
			if matched == "" {
				matched = domain
			}
		}
		if deviceTypeOfInterest(cfg, device, domain) {
			flags |= checkDeviceType
		}
	}

	if flags&checkAll != checkAll {
		return Verdict{}
	}
	return Verdict{Accepted: true, MatchedPlatform: matched}
}

// deviceTypeOfInterest is the device-type dimension. Device types are not
// yet derivable from registry data, so every evaluated domain passes.
func deviceTypeOfInterest(_ FilterConfig, _ *profile.DeviceProfile, _ string) bool {
	return true
}

func expand(field string, tokens, vocab []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(vocab))
	var unsupported []string

	for _, t := range tokens {
		switch {
		case t == All:
			for _, v := range vocab {
				out[v] = struct{}{}
			}
		case slices.Contains(vocab, t):
			out[t] = struct{}{}
		default:
			unsupported = append(unsupported, t)
		}
	}

	if len(unsupported) > 0 {
		return nil, &ConfigError{Field: field, Tokens: unsupported}
	}
	return out, nil
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
