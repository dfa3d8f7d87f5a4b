package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeValidation represents rejected input; nothing was written
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound represents a missing realm, subthread, user, post or recipient
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeConflict represents a uniqueness violation
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeAuth represents credential or token failures
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeStore represents graph store failures
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeTransport represents a failure on a single live connection
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// Kind reports the error category. Promoted to every typed wrapper.
func (e *BaseError) Kind() ErrorType {
	return e.Type
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Validation Errors

// ErrValidation is returned when a request is rejected before any write
type ErrValidation struct {
	*BaseError
	Field  string
	Reason string
}

func NewValidation(field, reason string) *ErrValidation {
	return &ErrValidation{
		BaseError: NewBaseError(ErrorTypeValidation, fmt.Sprintf("invalid %s: %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// Lookup Errors

// ErrNotFound is returned when a referenced entity does not exist
type ErrNotFound struct {
	*BaseError
	Entity string
	Key    string
}

func NewNotFound(entity, key string) *ErrNotFound {
	return &ErrNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("%s not found: %s", entity, key), nil),
		Entity:    entity,
		Key:       key,
	}
}

// ErrConflict is returned when a unique key is already taken
type ErrConflict struct {
	*BaseError
	Entity string
	Key    string
}

func NewConflict(entity, key, reason string) *ErrConflict {
	return &ErrConflict{
		BaseError: NewBaseError(ErrorTypeConflict, fmt.Sprintf("%s %s: %s", entity, key, reason), nil),
		Entity:    entity,
		Key:       key,
	}
}

// Auth Errors

// ErrInvalidCredentials deliberately does not say whether the username or the password was wrong
var ErrInvalidCredentials = NewBaseError(ErrorTypeAuth, "incorrect username or password", nil)

// ErrUnauthenticated is returned when a request carries no usable bearer token
var ErrUnauthenticated = NewBaseError(ErrorTypeAuth, "not authenticated", nil)

// NewAuthFailed wraps a token parsing or signing failure
func NewAuthFailed(message string, err error) *BaseError {
	return NewBaseError(ErrorTypeAuth, message, err)
}

// Store Errors

// ErrStore is returned when the graph store is unreachable or a query fails
type ErrStore struct {
	*BaseError
	Operation string
}

func NewStore(operation string, err error) *ErrStore {
	return &ErrStore{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("store operation failed: %s", operation), err),
		Operation: operation,
	}
}

// Transport Errors

// ErrTransport is returned when pushing to or reading from one connection fails
type ErrTransport struct {
	*BaseError
	ConnectionID string
}

func NewTransport(connectionID, message string, err error) *ErrTransport {
	return &ErrTransport{
		BaseError:    NewBaseError(ErrorTypeTransport, message, err),
		ConnectionID: connectionID,
	}
}

// Config Errors

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

type kinded interface {
	Kind() ErrorType
}

// TypeOf returns the category of the first typed error in the chain, or "" if none
func TypeOf(err error) ErrorType {
	var k kinded
	if stderrors.As(err, &k) {
		return k.Kind()
	}
	return ""
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool { return IsErrorType(err, ErrorTypeNotFound) }

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool { return IsErrorType(err, ErrorTypeValidation) }

// IsConflict reports whether err is a conflict error
func IsConflict(err error) bool { return IsErrorType(err, ErrorTypeConflict) }

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	// Only store failures are worth retrying; everything else is a caller mistake
	return IsErrorType(err, ErrorTypeStore)
}
