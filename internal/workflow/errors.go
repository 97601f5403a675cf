package workflow

import (
	"errors"
	"fmt"
)

// Error types for workflow actions.
var (
	// ErrGuardRejected is returned when advancing past a stage whose guard does not hold.
	ErrGuardRejected = errors.New("stage guard rejected advance")
	// ErrAnalysisFailed wraps the gateway error of a failed project analysis.
	ErrAnalysisFailed = errors.New("project analysis failed")
	// ErrApplyInFlight is returned when an apply for the same key is still pending.
	ErrApplyInFlight = errors.New("apply already in progress")
	// ErrSuperseded is returned when a newer request for the same key replaced this one.
	ErrSuperseded = errors.New("superseded by a newer request")
	// ErrUnknownKey is returned when a suggestion or audit fix names no known item.
	ErrUnknownKey = errors.New("unknown item key")
	// ErrProjectReadOnly is returned when an analyzed project is overwritten in place.
	ErrProjectReadOnly = errors.New("project is read-only after analysis")
)

// GuardRejectedError names the stage whose guard failed.
type GuardRejectedError struct {
	Stage string
	Guard string
}

func (e *GuardRejectedError) Error() string {
	return fmt.Sprintf("cannot leave stage %q: %s not satisfied", e.Stage, e.Guard)
}

func (e *GuardRejectedError) Unwrap() error {
	return ErrGuardRejected
}

// ValidationError is a client-side precondition failure. No backend call was made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
