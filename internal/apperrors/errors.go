// Package apperrors defines the error kinds surfaced by the core services.
// Handlers map these to HTTP status codes; the services themselves never
// retry and never speak HTTP.
package apperrors

import "fmt"

// ValidationError reports malformed input: out-of-range coordinates,
// future timestamps, inverted interval bounds, unknown enum tags.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidation creates a ValidationError
func NewValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a referenced vehicle, driver, or activity that
// does not exist.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// NewNotFound creates a NotFoundError
func NewNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports an overlapping or duplicate activity interval.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// NewConflict creates a ConflictError
func NewConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ServiceError wraps unexpected failures so they stay distinguishable
// from the three domain kinds.
type ServiceError struct {
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewService creates a ServiceError wrapping err
func NewService(err error, format string, args ...interface{}) *ServiceError {
	return &ServiceError{Message: fmt.Sprintf(format, args...), Err: err}
}
