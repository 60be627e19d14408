package core

import "fmt"

// Status is the execution state of a test record.
type Status int

const (
	StatusPending Status = iota // Not yet started
	StatusRunning               // Currently executing
	StatusPassed                // Completed, expectation held
	StatusFailed                // Assertion against expected UI state did not hold
	StatusErrored               // Unexpected error (driver, I/O, timeout, panic)
	StatusSkipped               // Never executed (stop signal, filter, policy)
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// ParseStatus is the inverse of String.
func ParseStatus(s string) (Status, error) {
	for st := StatusPending; st <= StatusSkipped; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// MarshalText encodes the status as its name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// IsTerminal returns true if the status is a final state
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusErrored, StatusSkipped:
		return true
	default:
		return false
	}
}

// IsSuccess returns true if the record does not count against the run.
func (s Status) IsSuccess() bool {
	return s == StatusPassed || s == StatusSkipped
}

// CanTransitionTo reports whether next is a legal successor of s.
//
//	PENDING -> RUNNING | SKIPPED
//	RUNNING -> PASSED | FAILED | ERRORED | SKIPPED
//
// Terminal states have no successors.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusSkipped
	case StatusRunning:
		return next == StatusPassed || next == StatusFailed || next == StatusErrored || next == StatusSkipped
	default:
		return false
	}
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryAssertion                       // Expected UI state did not hold
	ErrCategoryTimeout                         // Wait or action precondition timed out
	ErrCategoryConnection                      // Driver or HTTP endpoint unreachable
	ErrCategoryData                            // Data file missing or malformed
	ErrCategoryConfig                          // Invalid configuration, missing required field
	ErrCategoryInternal                        // Panic or unclassified failure
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryData:
		return "data"
	case ErrCategoryConfig:
		return "config"
	case ErrCategoryInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// MarshalText encodes the category as its name.
func (c ErrorCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a category name.
func (c *ErrorCategory) UnmarshalText(text []byte) error {
	for cat := ErrCategoryNone; cat <= ErrCategoryInternal; cat++ {
		if cat.String() == string(text) {
			*c = cat
			return nil
		}
	}
	return fmt.Errorf("unknown error category %q", text)
}
