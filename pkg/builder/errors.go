package builder

import (
	"fmt"
	"strings"
)

// UnknownDriverError is returned when a module declares a driver that has no
// registered provider.
type UnknownDriverError struct {
	Driver DriverKind
}

func (err *UnknownDriverError) Error() string {
	return fmt.Sprintf("unknown driver %q", string(err.Driver))
}

// InvalidMappingFormatError is returned when a provider exposes no factory
// method for the requested mapping format.
type InvalidMappingFormatError struct {
	Format   MappingFormat
	Provider string
	Method   string

	// Supported lists the factory methods the provider does expose.
	Supported []string
}

func (err *InvalidMappingFormatError) Error() string {
	msg := fmt.Sprintf("the mapping format %q is invalid for %s (no method %s), must be \"xml\", \"yml\" or \"annotation\"",
		string(err.Format), err.Provider, err.Method)
	if len(err.Supported) > 0 {
		msg += " (available: " + strings.Join(err.Supported, ", ") + ")"
	}
	return msg
}
