package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the engine.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNetwork       = errors.New("network failure")
	ErrConflict      = errors.New("conflict")
	ErrTerminalState = errors.New("terminal state")
	ErrAuth          = errors.New("authentication failed")
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
)

// ValidationError is a local, pre-network rejection. It never reaches the wire.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NetworkError wraps a transport failure. Retryable.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network: %s: %v", e.Op, e.Err) }

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

func Network(op string, err error) error { return &NetworkError{Op: op, Err: err} }

// ConflictError means the server rejected an action because the client's view
// was stale. The caller is expected to resync, not to patch locally.
type ConflictError struct {
	Op     string
	Detail string
}

func (e *ConflictError) Error() string { return fmt.Sprintf("conflict: %s: %s", e.Op, e.Detail) }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func Conflict(op, detail string) error { return &ConflictError{Op: op, Detail: detail} }

// TerminalStateError rejects mutation of an entity already in a terminal state.
type TerminalStateError struct {
	Entity string
	State  string
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("%s is terminal in state %q", e.Entity, e.State)
}

func (e *TerminalStateError) Is(target error) bool { return target == ErrTerminalState }

func Terminal(entity, state string) error { return &TerminalStateError{Entity: entity, State: state} }

// AuthError is forwarded to the auth collaborator; the engine never tries to
// refresh credentials itself.
type AuthError struct {
	Detail string
}

func (e *AuthError) Error() string { return "auth: " + e.Detail }

func (e *AuthError) Is(target error) bool { return target == ErrAuth }

func Auth(detail string) error { return &AuthError{Detail: detail} }

// Retryable reports whether the caller may usefully retry the failed action.
func Retryable(err error) bool {
	return errors.Is(err, ErrNetwork)
}
