package evidence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-forensics/internal/profile"
	"github.com/nerrad567/gray-logic-forensics/internal/secrets"
)

// memBackend is an in-memory Backend with per-key failure injection.
type memBackend struct {
	mu     sync.Mutex
	stores map[string]*memStore
	fail   map[string]error
}

func newMemBackend() *memBackend {
	return &memBackend{stores: make(map[string]*memStore), fail: make(map[string]error)}
}

func (b *memBackend) Open(_ context.Context, version int, key string) (Store, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.fail[key]; err != nil {
		return nil, err
	}
	if s, ok := b.stores[key]; ok {
		return s, nil
	}
	s := &memStore{key: key, version: version}
	b.stores[key] = s
	return s, nil
}

type memStore struct {
	key     string
	version int

	mu      sync.Mutex
	records []Record
	failing bool
}

func (s *memStore) Key() string  { return s.key }
func (s *memStore) Version() int { return s.version }

func (s *memStore) Append(_ context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return Record{}, errors.New("disk full")
	}
	rec.ID = fmt.Sprintf("%s-%d", s.key, len(s.records))
	rec.StoreKey = s.key
	s.records = append(s.records, rec)
	return rec, nil
}

func (s *memStore) Records(_ context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.records
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return append([]Record(nil), out...), nil
}

// fakeResolver resolves refs from a map keyed by Ref.String().
type fakeResolver map[string]string

func (f fakeResolver) Resolve(ref secrets.Ref) (string, error) {
	v, ok := f[ref.String()]
	if !ok {
		return "", secrets.ErrSecretNotFound
	}
	return v, nil
}

type testDevice struct {
	id       string
	platform string
	entities []string
}

// newTestRegistry builds a registry directly, bypassing the filter.
func newTestRegistry(t *testing.T, platforms []string, devices []testDevice, lan ...*profile.LanComponentProfile) *profile.Registry {
	t.Helper()

	reg := profile.NewRegistry()
	for _, name := range platforms {
		if err := reg.AddPlatform(profile.BuildPlatformProfile(name)); err != nil {
			t.Fatalf("AddPlatform(%s) error = %v", name, err)
		}
	}
	for _, d := range devices {
		var entities []profile.EntityRecord
		for _, e := range d.entities {
			entities = append(entities, profile.EntityRecord{EntityID: e, Platform: d.platform, DeviceID: d.id})
		}
		dp := profile.BuildDeviceProfile(profile.DeviceRecord{ID: d.id, Name: d.id}, entities, nil)
		dp.PlatformName = d.platform
		if err := reg.AdmitDevice(dp); err != nil {
			t.Fatalf("AdmitDevice(%s) error = %v", d.id, err)
		}
	}
	for _, l := range lan {
		if err := reg.AddLanComponent(l); err != nil {
			t.Fatalf("AddLanComponent(%s) error = %v", l.ID, err)
		}
	}
	return reg
}
