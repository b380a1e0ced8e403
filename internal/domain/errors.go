package domain

import (
	"errors"
	"fmt"
)

var (
	ErrFormNotFound  = errors.New("form not found")
	ErrAlertNotFound = errors.New("alert not found")
)

// ConfigError wraps a missing or invalid configuration lookup. Fatal to the
// call that hit it: no partial processing happens after one.
type ConfigError struct {
	What  string
	Cause error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration: %s: %v", e.What, e.Cause)
	}
	return fmt.Sprintf("configuration: %s", e.What)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// NewConfigError wraps err as a fatal configuration failure.
func NewConfigError(what string, err error) *ConfigError {
	return &ConfigError{What: what, Cause: err}
}

// IsConfigError reports whether err is (or wraps) a configuration failure.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ContentionError marks a counter or alert storage race that is safe to
// retry. The pipeline retries these internally with bounded backoff before
// surfacing a transient failure.
type ContentionError struct {
	Op    string
	Cause error
}

func (e *ContentionError) Error() string {
	return fmt.Sprintf("contention during %s: %v", e.Op, e.Cause)
}

func (e *ContentionError) Unwrap() error { return e.Cause }

// NewContentionError wraps err as a retryable storage race.
func NewContentionError(op string, err error) *ContentionError {
	return &ContentionError{Op: op, Cause: err}
}

// IsContention reports whether err is (or wraps) a retryable storage race.
func IsContention(err error) bool {
	var ce *ContentionError
	return errors.As(err, &ce)
}
