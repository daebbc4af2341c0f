package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownRadar is returned when a radar identifier has no site metadata.
var ErrUnknownRadar = errors.New("unknown radar")

// ParseError reports overlay text that does not match the expected grammar.
type ParseError struct {
	Rule  string // "valid", "timerange" or "coordinate"
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s %q: %v", e.Rule, e.Input, e.Err)
	}
	return fmt.Sprintf("parse %s %q", e.Rule, e.Input)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConfigError reports replay parameters that cannot be used, such as a
// transposition without a resolvable origin radar or a non-positive speed.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
