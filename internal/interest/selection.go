package interest

import (
	"fmt"
	"strings"
)

// Selection is validated operator input, before "all" is expanded.
type Selection struct {
	Platforms   []string
	DeviceTypes []string
}

// ParseSelection splits the operator's comma-separated platform and device
// type fields and checks every token against vocab.
//
// Tokens are trimmed and lower-cased; empty tokens are ignored. "all" is
// accepted in either field. Any token outside the vocabulary rejects the
// whole selection with a *ConfigError.
func ParseSelection(vocab Vocabulary, platformInput, deviceTypeInput string) (Selection, error) {
	platforms, err := parseField("platform", platformInput, vocab.SupportsPlatform)
	if err != nil {
		return Selection{}, err
	}

	deviceTypes, err := parseField("device_type", deviceTypeInput, vocab.SupportsDeviceType)
	if err != nil {
		return Selection{}, err
	}

	return Selection{Platforms: platforms, DeviceTypes: deviceTypes}, nil
}

func parseField(field, input string, supported func(string) bool) ([]string, error) {
	var tokens, unsupported []string

	for _, raw := range strings.Split(input, ",") {
		token := strings.ToLower(strings.TrimSpace(raw))
		if token == "" {
			continue
		}
		if token != All && !supported(token) {
			unsupported = append(unsupported, token)
			continue
		}
		tokens = append(tokens, token)
	}

	if len(unsupported) > 0 {
		return nil, &ConfigError{Field: field, Tokens: unsupported}
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySelection, field)
	}
	return tokens, nil
}
