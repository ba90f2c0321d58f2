package interest

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedToken is wrapped by ConfigError.
	ErrUnsupportedToken = errors.New("interest: unsupported token")

	// ErrEmptySelection is returned when an operator field contains no tokens.
	ErrEmptySelection = errors.New("interest: empty selection")

	// ErrFilterSealed is returned by Configure once evaluation has begun.
	ErrFilterSealed = errors.New("interest: filter already in use")
)

// ConfigError reports operator tokens that are not in the vocabulary.
// Nothing is configured when it is returned.
type ConfigError struct {
	Field  string
	Tokens []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("interest: unsupported %s value(s): %s", e.Field, strings.Join(e.Tokens, ", "))
}

func (e *ConfigError) Unwrap() error {
	return ErrUnsupportedToken
}
