package types

import (
	"errors"
	"fmt"
)

// Error classes. Concrete errors wrap one of these so callers can use errors.Is.
var (
	// ErrConfig marks a missing or invalid piece of configuration.
	ErrConfig = errors.New("configuration error")

	// ErrTimeout marks a bounded wait that expired.
	ErrTimeout = errors.New("timeout")

	// ErrAssertion marks an assertion that did not hold.
	ErrAssertion = errors.New("assertion failed")

	// ErrProvider marks a failure talking to a verification backend.
	ErrProvider = errors.New("provider error")
)

// AssertionError reports a failed assertion.
type AssertionError struct {
	Type     string
	Selector string
	Detail   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("Assertion failed: %s on %s", e.Type, e.Selector)
}

// Unwrap returns ErrAssertion.
func (e *AssertionError) Unwrap() error {
	return ErrAssertion
}

// ValidationError reports a malformed action, assertion or test declaration.
type ValidationError struct {
	Kind  string // action, assertion, test
	Type  string
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Msg != "":
		return fmt.Sprintf("invalid %s %q: %s", e.Kind, e.Type, e.Msg)
	case e.Field != "":
		return fmt.Sprintf("invalid %s %q: %s is required", e.Kind, e.Type, e.Field)
	default:
		return fmt.Sprintf("invalid %s %q", e.Kind, e.Type)
	}
}

// Unwrap returns ErrConfig.
func (e *ValidationError) Unwrap() error {
	return ErrConfig
}

// TimeoutError wraps the underlying error of an expired bounded wait.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: timed out", e.Op)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Is matches ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Unwrap returns the underlying error.
func (e *TimeoutError) Unwrap() error {
	return e.Err
}
