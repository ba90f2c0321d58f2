package interest

import (
	"slices"
	"strings"
)

// All is the operator token selecting every supported value.
const All = "all"

// Vocabulary lists the platform and device-type tokens an operator may select.
// Neither list contains All.
type Vocabulary struct {
	Platforms   []string `json:"platforms" yaml:"platforms"`
	DeviceTypes []string `json:"device_types" yaml:"device_types"`
}

// DefaultVocabulary returns the built-in vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Platforms:   []string{"hue"},
		DeviceTypes: []string{"light", "switch"},
	}
}

// NewVocabulary builds a vocabulary from configured lists, normalising
// tokens to lower case and dropping blanks, duplicates and All.
func NewVocabulary(platforms, deviceTypes []string) Vocabulary {
	return Vocabulary{
		Platforms:   normaliseTokens(platforms),
		DeviceTypes: normaliseTokens(deviceTypes),
	}
}

// SupportsPlatform reports whether name is a selectable platform.
func (v Vocabulary) SupportsPlatform(name string) bool {
	return slices.Contains(v.Platforms, name)
}

// SupportsDeviceType reports whether name is a selectable device type.
func (v Vocabulary) SupportsDeviceType(name string) bool {
	return slices.Contains(v.DeviceTypes, name)
}

func normaliseTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || t == All || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}
