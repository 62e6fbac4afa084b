// Package check defines the Check Record data model: the tri-state
// status, remediation notes and the kind-specific diagnostic payloads.
package check

// Status is the tri-state outcome of a check.
// The zero value is StatusUnknown.
type Status int

const (
	// StatusUnknown means the check could not determine the truth.
	StatusUnknown Status = iota
	// StatusPass means the host is configured as expected.
	StatusPass
	// StatusFail means the host is misconfigured.
	StatusFail
)

// String returns the report label for the status.
func (s Status) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// Passed reports whether s is exactly pass.
func (s Status) Passed() bool { return s == StatusPass }

// Failed reports whether s is exactly fail.
func (s Status) Failed() bool { return s == StatusFail }

// Known reports whether s is pass or fail.
func (s Status) Known() bool { return s == StatusPass || s == StatusFail }

// FromBool converts a determinate boolean into a Status.
func FromBool(ok bool) Status {
	if ok {
		return StatusPass
	}
	return StatusFail
}

// All combines statuses: fail wins, then unknown, then pass.
// An empty argument list is a pass.
func All(statuses ...Status) Status {
	result := StatusPass
	for _, s := range statuses {
		switch s {
		case StatusFail:
			return StatusFail
		case StatusUnknown:
			result = StatusUnknown
		}
	}
	return result
}

// MarshalText renders the status as its report label.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
