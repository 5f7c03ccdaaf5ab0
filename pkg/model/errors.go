package model

// MalformedProfileError is returned when a Profile violates its reference
// invariants: a location pointing at a missing function, or a sample stack
// pointing at a missing location.
type MalformedProfileError struct {
	Reason string
}

func (e *MalformedProfileError) Error() string {
	return "malformed profile: " + e.Reason
}
