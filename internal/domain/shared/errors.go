// Package shared contains common domain errors used across all domain and
// application packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState = errors.New("invalid state")
	ErrExpired      = errors.New("expired")
	ErrConflict     = errors.New("conflict")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Configuration errors
	ErrConfiguration = errors.New("configuration error")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "access", "results", "knack"
	Op      string // Operation that failed, e.g., "Resolve", "Load"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Configuration errors
var (
	ErrConfigMissing = NewDomainError("config", "Load", ErrConfiguration, "required configuration value is missing")
	ErrInvalidSchema = NewDomainError("config", "LoadSchema", ErrConfiguration, "invalid schema mapping")
)

// Access domain errors
var (
	ErrNoRoles                 = NewDomainError("access", "Resolve", ErrForbidden, "viewer has no staff roles")
	ErrEstablishmentUnresolved = NewDomainError("access", "Resolve", ErrForbidden, "establishment could not be resolved")
	ErrUnscopedQuery           = NewDomainError("access", "BuildQuery", ErrForbidden, "query would not be scoped to the viewer")
	ErrMissingIdentity         = NewDomainError("access", "Identify", ErrUnauthorized, "viewer identity is missing")
)

// Results domain errors
var (
	ErrFetchInProgress  = NewDomainError("results", "Load", ErrConflict, "a fetch is already in progress")
	ErrSessionNotLoaded = NewDomainError("results", "View", ErrNotFound, "results have not been loaded")
	ErrStudentNotFound  = NewDomainError("results", "FindStudent", ErrNotFound, "student not found")
	ErrInvalidView      = NewDomainError("results", "UpdateView", ErrInvalidInput, "invalid view state")
	ErrFeatureDisabled  = NewDomainError("results", "Feature", ErrForbidden, "feature is not enabled for this viewer")
)

// External service errors
var (
	ErrTransport               = NewDomainError("knack", "Request", ErrExternalService, "Failed to load student results. Please try again.")
	ErrKnackAPIUnavailable     = NewDomainError("knack", "Request", ErrServiceUnavailable, "Knack API is unavailable")
	ErrKnackAPIRateLimited     = NewDomainError("knack", "Request", ErrRateLimited, "Knack API rate limit exceeded")
	ErrKnackAPITimeout         = NewDomainError("knack", "Request", ErrTimeout, "Knack API request timeout")
	ErrKnackAPIInvalidResponse = NewDomainError("knack", "Parse", ErrInvalidFormat, "invalid response from Knack API")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsForbidden checks if the error denies access to the viewer.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden) || errors.Is(err, ErrUnauthorized)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}
