package users

import (
	"errors"
	"fmt"
)

// DuplicateUserError is returned when a user is created with a uid that is
// already stored.
type DuplicateUserError struct {
	UID string
}

func (e *DuplicateUserError) Error() string {
	return "User already exists"
}

// NewDuplicateUserError creates an error for a uid that already exists
func NewDuplicateUserError(uid string) *DuplicateUserError {
	return &DuplicateUserError{UID: uid}
}

// NotFoundError is returned by lookups, updates and deletes that target a
// uid the store does not hold.
type NotFoundError struct {
	UID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("user not found: %s", e.UID)
}

// NewNotFoundError creates an error for a missing user
func NewNotFoundError(uid string) *NotFoundError {
	return &NotFoundError{UID: uid}
}

// ValidationError represents errors in request validation
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// StoreError represents a failure of the backing database
type StoreError struct {
	Type      string
	Operation string
	Backend   string
	Message   string
	Cause     error
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("storage error [%s] during %s on %s: %s (caused by: %v)",
			e.Type, e.Operation, e.Backend, e.Message, e.Cause)
	}
	return fmt.Sprintf("storage error [%s] during %s on %s: %s",
		e.Type, e.Operation, e.Backend, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Storage error types
const (
	StoreErrorTypeConnectionFailed    = "connection_failed"
	StoreErrorTypeQueryFailed         = "query_failed"
	StoreErrorTypeConstraintViolation = "constraint_violation"
)

// NewStoreConnectionError creates an error for storage connection failures
func NewStoreConnectionError(operation, backend string, cause error) *StoreError {
	return &StoreError{
		Type:      StoreErrorTypeConnectionFailed,
		Operation: operation,
		Backend:   backend,
		Message:   "failed to connect to storage",
		Cause:     cause,
	}
}

// NewStoreQueryError creates an error for storage query failures
func NewStoreQueryError(operation, backend string, cause error) *StoreError {
	return &StoreError{
		Type:      StoreErrorTypeQueryFailed,
		Operation: operation,
		Backend:   backend,
		Message:   "storage query failed",
		Cause:     cause,
	}
}

// NewStoreConstraintError creates an error for constraint violations
func NewStoreConstraintError(operation, backend string, cause error) *StoreError {
	return &StoreError{
		Type:      StoreErrorTypeConstraintViolation,
		Operation: operation,
		Backend:   backend,
		Message:   "storage constraint violation",
		Cause:     cause,
	}
}

// IsNotFound reports whether err is or wraps a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsDuplicate reports whether err is or wraps a DuplicateUserError
func IsDuplicate(err error) bool {
	var dup *DuplicateUserError
	return errors.As(err, &dup)
}

// IsConstraintViolation reports whether err is a StoreError caused by a
// uniqueness or other constraint in the backing database.
func IsConstraintViolation(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Type == StoreErrorTypeConstraintViolation
}

// ErrorKind returns a short label for err, used for metrics and logs.
func ErrorKind(err error) string {
	var (
		se  *StoreError
		ve  *ValidationError
		nf  *NotFoundError
		dup *DuplicateUserError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &se):
		return se.Type
	case errors.As(err, &ve):
		return "validation_failed"
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &dup):
		return "already_exists"
	default:
		return "unknown"
	}
}
