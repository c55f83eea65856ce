package meeting

import (
	"fmt"
	"time"
)

// Kind classifies an Error into the taxonomy the boundary and callers
// dispatch on. It names a disposition, not a Go type.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not_found"
	KindStateConflict      Kind = "state_conflict"
	KindAuthFailed         Kind = "auth_failed"
	KindRateLimited        Kind = "rate_limited"
	KindNetwork            Kind = "network"
	KindProviderError      Kind = "provider_error"
	KindPersistenceFailed  Kind = "persistence_failed"
	KindCancelled          Kind = "cancelled"
)

// Error is the engine's domain error type, returned by the meeting state
// machine, the store, the turn engine and the boundary service. Model
// adapters return the llms package's own error types, and config and
// registry return plain errors. Component/Operation name where the
// failure originated, matching the logging package's {component,
// operation} tags.
type Error struct {
	Kind      Kind
	Component string
	Operation string
	Message   string
	Err       error
	Timestamp time.Time
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Component, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Component, e.Operation, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, &Error{Kind: KindNotFound}) match by Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == "" {
		return false
	}
	return e.Kind == t.Kind
}

// NewError constructs an Error stamped with the current time.
func NewError(kind Kind, component, operation, message string, err error) *Error {
	return &Error{
		Kind:      kind,
		Component: component,
		Operation: operation,
		Message:   message,
		Err:       err,
		Timestamp: time.Now(),
	}
}
