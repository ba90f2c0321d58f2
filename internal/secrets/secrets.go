// Package secrets resolves scoped secret references.
//
// Credentials for LAN components are never written into configuration or
// source. Config carries a Ref naming a secret and a key within it; the
// Resolver looks the value up at provisioning time, first in the process
// environment and then in mounted secret directories (Docker/Kubernetes
// style, one file per key).
package secrets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvPrefix starts every environment variable consulted by the Resolver.
const EnvPrefix = "FORENSICS_SECRET_"

var (
	// ErrSecretNotFound is returned when no source holds the referenced secret.
	ErrSecretNotFound = errors.New("secrets: not found")

	// ErrInvalidRef is returned for refs with an empty or path-like id or key.
	ErrInvalidRef = errors.New("secrets: invalid reference")
)

// Ref names one value of a secret.
type Ref struct {
	ID  string `json:"id" yaml:"id"`
	Key string `json:"key" yaml:"key"`
}

func (r Ref) String() string {
	return r.ID + "/" + r.Key
}

// EnvName returns the environment variable consulted for r,
// e.g. {"router-main", "password"} -> FORENSICS_SECRET_ROUTER_MAIN_PASSWORD.
func (r Ref) EnvName() string {
	return EnvPrefix + envToken(r.ID) + "_" + envToken(r.Key)
}

func (r Ref) validate() error {
	for _, part := range []string{r.ID, r.Key} {
		if part == "" || !filepath.IsLocal(part) || strings.ContainsAny(part, `/\`) {
			return fmt.Errorf("%w: %q", ErrInvalidRef, r.String())
		}
	}
	return nil
}

func envToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
}

// Resolver looks up secret values. The zero value consults only the
// environment.
type Resolver struct {
	paths     []string
	lookupEnv func(string) (string, bool)
}

// NewResolver creates a resolver reading mounted secrets below paths, in order.
func NewResolver(paths []string) *Resolver {
	return &Resolver{
		paths:     append([]string(nil), paths...),
		lookupEnv: os.LookupEnv,
	}
}

// Resolve returns the value of ref. The environment wins over mounted files;
// trailing newlines in files are trimmed.
func (r *Resolver) Resolve(ref Ref) (string, error) {
	if err := ref.validate(); err != nil {
		return "", err
	}

	lookup := r.lookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(ref.EnvName()); ok {
		return v, nil
	}

	for _, base := range r.paths {
		data, err := os.ReadFile(filepath.Join(base, ref.ID, ref.Key))
		if err == nil {
			return strings.TrimRight(string(data), "\r\n"), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("reading secret %s: %w", ref, err)
		}
	}

	return "", fmt.Errorf("%w: %s", ErrSecretNotFound, ref)
}
