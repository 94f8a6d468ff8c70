package adapter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/omnidao/omnidao/pkg/dbcapabilities"
)

// Standard adapter errors
var (
	// ErrNotFound is returned by FindOne/FindByID when no record matches.
	ErrNotFound = errors.New("record not found")

	// ErrValidation is returned for malformed input (empty batch, unknown entity).
	ErrValidation = errors.New("validation failed")

	// ErrConnectionFailed is returned when a connection attempt fails.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrConnectionClosed is returned when attempting to use a closed connection.
	ErrConnectionClosed = errors.New("connection is closed")

	// ErrConnectionExhausted is returned when bounded connect retries are used up.
	ErrConnectionExhausted = errors.New("connection attempts exhausted")

	// ErrTransactionFinalized is returned when commit/rollback is called on an
	// already-finalized transaction.
	ErrTransactionFinalized = errors.New("transaction already finalized")

	// ErrOperationNotSupported is returned when an operation is not supported
	// by the database.
	ErrOperationNotSupported = errors.New("operation not supported by this database")

	// ErrInvalidConfiguration is returned when the configuration is invalid.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrAdapterNotFound is returned when an adapter is not registered.
	ErrAdapterNotFound = errors.New("adapter not found")

	// ErrEntityNotFound is returned when an entity is not declared in the schema.
	ErrEntityNotFound = errors.New("entity not found in schema")
)

// ValidationError reports malformed input to a data operation. It is never
// retried and surfaces immediately.
type ValidationError struct {
	Operation string
	Reason    string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed: %s", e.Operation, e.Reason)
}

// Is checks if the error is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return errors.Is(target, ErrValidation)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(operation, reason string) *ValidationError {
	return &ValidationError{Operation: operation, Reason: reason}
}

// BackendError wraps a driver-reported error (constraint violation, syntax
// error, ...) with database context. The original driver message is
// preserved through Unwrap. Backend errors are never retried.
type BackendError struct {
	DatabaseType dbcapabilities.DatabaseID
	Operation    string
	Cause        error
	Context      map[string]interface{}
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if len(e.Context) > 0 {
		return fmt.Sprintf("[%s] %s: %v (context: %v)", e.DatabaseType, e.Operation, e.Cause, e.Context)
	}
	return fmt.Sprintf("[%s] %s: %v", e.DatabaseType, e.Operation, e.Cause)
}

// Unwrap returns the underlying driver error.
func (e *BackendError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error.
func (e *BackendError) Is(target error) bool {
	return errors.Is(e.Cause, target)
}

// WithContext adds context to a BackendError.
func (e *BackendError) WithContext(key string, value interface{}) *BackendError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewBackendError creates a new BackendError.
func NewBackendError(dbType dbcapabilities.DatabaseID, operation string, cause error) *BackendError {
	return &BackendError{
		DatabaseType: dbType,
		Operation:    operation,
		Cause:        cause,
	}
}

// ConnectionError is returned when establishing or using a connection fails
// with a transient signature. Connection errors are eligible for retry.
type ConnectionError struct {
	DatabaseType dbcapabilities.DatabaseID
	Host         string
	Port         int
	Cause        error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("connection error for %s at %s:%d: %v", e.DatabaseType, e.Host, e.Port, e.Cause)
	}
	return fmt.Sprintf("connection error for %s: %v", e.DatabaseType, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is ErrConnectionFailed.
func (e *ConnectionError) Is(target error) bool {
	if errors.Is(target, ErrConnectionFailed) {
		return true
	}
	return errors.Is(e.Cause, target)
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(dbType dbcapabilities.DatabaseID, host string, port int, cause error) *ConnectionError {
	return &ConnectionError{
		DatabaseType: dbType,
		Host:         host,
		Port:         port,
		Cause:        cause,
	}
}

// ConnectionExhaustedError is returned when the bounded connect retry loop
// runs out of attempts. It carries the last underlying cause.
type ConnectionExhaustedError struct {
	DatabaseType dbcapabilities.DatabaseID
	Attempts     int
	LastCause    error
}

// Error implements the error interface.
func (e *ConnectionExhaustedError) Error() string {
	return fmt.Sprintf("failed to connect to %s after %d attempts: %v", e.DatabaseType, e.Attempts, e.LastCause)
}

// Unwrap returns the last underlying cause.
func (e *ConnectionExhaustedError) Unwrap() error {
	return e.LastCause
}

// Is checks if the error is ErrConnectionExhausted or ErrConnectionFailed.
func (e *ConnectionExhaustedError) Is(target error) bool {
	if errors.Is(target, ErrConnectionExhausted) || errors.Is(target, ErrConnectionFailed) {
		return true
	}
	return errors.Is(e.LastCause, target)
}

// NewConnectionExhaustedError creates a new ConnectionExhaustedError.
func NewConnectionExhaustedError(dbType dbcapabilities.DatabaseID, attempts int, lastCause error) *ConnectionExhaustedError {
	return &ConnectionExhaustedError{
		DatabaseType: dbType,
		Attempts:     attempts,
		LastCause:    lastCause,
	}
}

// TransactionStateError reports commit or rollback being called on a
// transaction that was already finalized. This is a programming error and
// always fatal to the caller's flow.
type TransactionStateError struct {
	Operation string // "commit" or "rollback"
	State     string // the state the transaction was in
}

// Error implements the error interface.
func (e *TransactionStateError) Error() string {
	return fmt.Sprintf("cannot %s transaction: %s", e.Operation, e.State)
}

// Is checks if the error is ErrTransactionFinalized.
func (e *TransactionStateError) Is(target error) bool {
	return errors.Is(target, ErrTransactionFinalized)
}

// NewTransactionStateError creates a new TransactionStateError.
func NewTransactionStateError(operation, state string) *TransactionStateError {
	return &TransactionStateError{Operation: operation, State: state}
}

// UnsupportedOperationError is returned when an operation is not supported.
type UnsupportedOperationError struct {
	DatabaseType dbcapabilities.DatabaseID
	Operation    string
	Reason       string
}

// Error implements the error interface.
func (e *UnsupportedOperationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s does not support %s: %s", e.DatabaseType, e.Operation, e.Reason)
	}
	return fmt.Sprintf("%s does not support %s", e.DatabaseType, e.Operation)
}

// Is checks if the error is ErrOperationNotSupported.
func (e *UnsupportedOperationError) Is(target error) bool {
	return errors.Is(target, ErrOperationNotSupported)
}

// NewUnsupportedOperationError creates a new UnsupportedOperationError.
func NewUnsupportedOperationError(dbType dbcapabilities.DatabaseID, operation string, reason string) *UnsupportedOperationError {
	return &UnsupportedOperationError{
		DatabaseType: dbType,
		Operation:    operation,
		Reason:       reason,
	}
}

// ConfigurationError is returned when a configuration error occurs.
type ConfigurationError struct {
	DatabaseType dbcapabilities.DatabaseID
	Field        string
	Reason       string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid configuration for %s: field '%s': %s", e.DatabaseType, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid configuration for %s: %s", e.DatabaseType, e.Reason)
}

// Is checks if the error is ErrInvalidConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return errors.Is(target, ErrInvalidConfiguration)
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(dbType dbcapabilities.DatabaseID, field string, reason string) *ConfigurationError {
	return &ConfigurationError{
		DatabaseType: dbType,
		Field:        field,
		Reason:       reason,
	}
}

// WrapError wraps an error with database context as a BackendError, or as a
// ConnectionError when the cause carries a transient signature. Errors that
// already belong to the adapter taxonomy are returned as-is.
func WrapError(dbType dbcapabilities.DatabaseID, operation string, err error) error {
	if err == nil {
		return nil
	}

	// Don't double-wrap
	var backendErr *BackendError
	var connErr *ConnectionError
	var validationErr *ValidationError
	var txErr *TransactionStateError
	var unsupportedErr *UnsupportedOperationError
	if errors.As(err, &backendErr) || errors.As(err, &connErr) ||
		errors.As(err, &validationErr) || errors.As(err, &txErr) ||
		errors.As(err, &unsupportedErr) || errors.Is(err, ErrNotFound) {
		return err
	}

	if IsTransient(err) {
		return NewConnectionError(dbType, "", 0, err)
	}

	return NewBackendError(dbType, operation, err)
}

// transientSignatures are the lowercase substrings that classify a raw
// driver error as a transient connection failure.
var transientSignatures = []string{
	"connection",
	"timeout",
	"timed out",
	"socket",
	"closed",
	"lost",
	"reset",
	"broken pipe",
	"refused",
	"unreachable",
}

// IsTransient reports whether an error message carries a transient
// connection/timeout/socket signature. Operations hitting a transient error
// are retried exactly once after a connection reset.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, signature := range transientSignatures {
		if strings.Contains(msg, signature) {
			return true
		}
	}
	return false
}

// IsConnectionError checks if an error is a connection error.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnectionFailed)
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound checks if an error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnsupported checks if an error indicates an unsupported operation.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrOperationNotSupported)
}
