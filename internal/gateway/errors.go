package gateway

import (
	"errors"
	"fmt"
)

// Error types for backend operations.
var (
	// ErrAITimeout matches a TransportError raised when an AI call exceeds its extended budget.
	ErrAITimeout = errors.New("ai request timed out")
	// ErrTimeout matches any TransportError raised by an exceeded request budget.
	ErrTimeout = errors.New("request timed out")
)

// TransportError is a network failure or an exceeded request budget.
// No response (or no complete response) was received from the backend.
type TransportError struct {
	Op      string // Gateway operation, e.g. "suggest"
	Timeout bool
	AI      bool // The call belongs to the extended-budget AI class
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: request timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports timeout classification so callers can use errors.Is(err, ErrAITimeout).
func (e *TransportError) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Timeout
	case ErrAITimeout:
		return e.Timeout && e.AI
	}
	return false
}

// DomainError is a non-success response, or a response whose body did not
// match the operation's schema.
type DomainError struct {
	Op      string
	Status  int    // HTTP status; 0 when the status was 2xx but the body was malformed
	Message string // Server-supplied message when available
}

func (e *DomainError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.Status, e.Message)
}

// malformed builds the DomainError for a response that failed schema validation.
func malformed(op, format string, args ...interface{}) *DomainError {
	return &DomainError{Op: op, Message: "malformed response: " + fmt.Sprintf(format, args...)}
}
