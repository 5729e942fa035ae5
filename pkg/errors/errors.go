// Package errors provides custom error types for the ebbsync engine.
// These errors enable programmatic error checking across the reconciliation
// pipeline: run-fatal adapter failures, item-scoped store failures with an
// ignorable/fatal classification, serialization failures, and internal
// invariant violations that indicate bugs rather than runtime conditions.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is is an alias for the standard library errors.Is.
var Is = errors.Is

// As is an alias for the standard library errors.As.
var As = errors.As

// Common sentinel errors for the ebbsync engine
var (
	// ErrAdapterUnavailable indicates the storage adapter reference is
	// absent or unreachable. This is run-fatal: no further storage calls
	// can succeed for the batch.
	ErrAdapterUnavailable = errors.New("storage adapter unavailable")

	// ErrRunInProgress indicates a new batch was offered while a run is
	// still active. The engine is not a queue; callers serialize batches.
	ErrRunInProgress = errors.New("reconciliation run already in progress")

	// ErrNotFound indicates that a requested record was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that a record already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")

	// ErrPreconditionFailed indicates a store write precondition did not hold
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrSchemaUnknown indicates an envelope named a schema that is not
	// registered in the schema registry
	ErrSchemaUnknown = errors.New("schema not registered")
)

// StoreError represents a failure of a single storage operation. The
// Ignorable flag carries the adapter's classification: ignorable failures
// drop the affected item while the batch proceeds; fatal ones drop the
// item and are surfaced with the underlying cause.
type StoreError struct {
	Op        string // "save", "delete", "metadata", "query"
	Schema    string
	ID        string
	Ignorable bool
	Err       error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("store %s failed for %s/%s: %v", e.Op, e.Schema, e.ID, e.Err)
	}
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError
func NewStoreError(op, schema, id string, ignorable bool, err error) *StoreError {
	return &StoreError{
		Op:        op,
		Schema:    schema,
		ID:        id,
		Ignorable: ignorable,
		Err:       err,
	}
}

// SerializationError represents a failure to decode or validate an
// envelope body against its registered schema. Item-scoped and treated as
// fatal for the item; the batch proceeds.
type SerializationError struct {
	Schema  string
	ID      string
	Message string
	Err     error
}

// Error implements the error interface
func (e *SerializationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("serialization error for %s/%s: %s", e.Schema, e.ID, e.Message)
	}
	return fmt.Sprintf("serialization error for schema %s: %s", e.Schema, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *SerializationError) Unwrap() error {
	return e.Err
}

// NewSerializationError creates a new SerializationError
func NewSerializationError(schema, id, message string, err error) *SerializationError {
	return &SerializationError{
		Schema:  schema,
		ID:      id,
		Message: message,
		Err:     err,
	}
}

// InvariantError reports an unreachable state-machine transition. It marks
// an internal bug: the transition function is total over the valid
// lifecycle, so hitting this means concurrent completions were not
// serialized the way the engine guarantees.
type InvariantError struct {
	State  string
	Action string
}

// Error implements the error interface
func (e *InvariantError) Error() string {
	return fmt.Sprintf("internal: invalid transition from %s on %s (bug)", e.State, e.Action)
}

// NewInvariantError creates a new InvariantError
func NewInvariantError(state, action string) *InvariantError {
	return &InvariantError{State: state, Action: action}
}

// ValidationError represents a validation failure, typically of an engine
// option or an input batch.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// NotFoundError represents an error when a record is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create", "delete", "open", "close"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// Helper functions for error checking

// IsAdapterUnavailable checks if an error is the run-fatal adapter condition
func IsAdapterUnavailable(err error) bool {
	return errors.Is(err, ErrAdapterUnavailable)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsCanceled checks if an error is a cancellation error, including the
// standard context cancellation and deadline errors storage calls return
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsIgnorableStore checks if an error is a store error classified ignorable
func IsIgnorableStore(err error) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Ignorable
	}
	return false
}

// IsSerialization checks if an error is a serialization error
func IsSerialization(err error) bool {
	var se *SerializationError
	return errors.As(err, &se)
}

// IsInvariant checks if an error is an internal invariant violation
func IsInvariant(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}

// Helper wrapping functions for common patterns

// WrapStore wraps an error as a StoreError
func WrapStore(op, schema, id string, ignorable bool, err error) error {
	if err == nil {
		return nil
	}
	return NewStoreError(op, schema, id, ignorable, err)
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}
