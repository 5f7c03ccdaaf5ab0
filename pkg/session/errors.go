package session

import "fmt"

// ConfigurationError is returned for an invalid Config. It is never returned
// by Start or Stop.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func configErrorf(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// StateError is returned when a session is started while another one is
// active, or stopped when it is not running.
type StateError struct {
	Op     string
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("session %s: %s", e.Op, e.Reason)
}
