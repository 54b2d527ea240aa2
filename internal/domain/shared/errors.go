// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
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
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrZeroAmount      = errors.New("amount cannot be zero")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrOptimisticLock         = errors.New("optimistic lock failure")

	// Invariant errors. An invariant violation means derived state disagrees
	// with the ledger; processing for the affected user is halted and the
	// violation is surfaced, never silently corrected.
	ErrInvariantViolation = errors.New("ledger invariant violation")
	ErrProcessingHalted   = errors.New("processing halted for user")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "ledger", "badge", "goal"
	Op      string // Operation that failed, e.g., "Record", "Award"
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

// Ledger domain errors
var (
	ErrUserNotFound        = NewDomainError("ledger", "Find", ErrNotFound, "user aggregate not found")
	ErrEntryNotFound       = NewDomainError("ledger", "Find", ErrNotFound, "ledger entry not found")
	ErrZeroPointAmount     = NewDomainError("ledger", "Validate", ErrZeroAmount, "transaction amount must be non-zero")
	ErrUnknownTransaction  = NewDomainError("ledger", "Validate", ErrInvalidInput, "unknown transaction type")
	ErrAggregateConflict   = NewDomainError("ledger", "Update", ErrOptimisticLock, "aggregate was modified concurrently")
	ErrAggregateDiverged   = NewDomainError("ledger", "Verify", ErrInvariantViolation, "aggregate disagrees with ledger replay")
	ErrUserProcessingHalted = NewDomainError("ledger", "Record", ErrProcessingHalted, "user is halted pending invariant review")
)

// Badge domain errors
var (
	ErrBadgeNotFound    = NewDomainError("badge", "Find", ErrNotFound, "badge not found")
	ErrAwardExists      = NewDomainError("badge", "Award", ErrAlreadyExists, "badge already awarded to user")
	ErrUnknownMetric    = NewDomainError("badge", "Evaluate", ErrInvalidInput, "unknown criteria metric")
	ErrInvalidBadgeTier = NewDomainError("badge", "Validate", ErrInvalidInput, "invalid badge tier")
)

// Streak domain errors
var (
	ErrInvalidActivityDate = NewDomainError("streak", "Validate", ErrInvalidInput, "invalid activity date")
)

// Goal domain errors
var (
	ErrGoalNotFound      = NewDomainError("goal", "Find", ErrNotFound, "goal not found")
	ErrGoalNotActive     = NewDomainError("goal", "Adjust", ErrInvalidState, "goal is not active")
	ErrGoalConflict      = NewDomainError("goal", "Adjust", ErrOptimisticLock, "goal was modified concurrently")
	ErrInvalidDifficulty = NewDomainError("goal", "Validate", ErrInvalidInput, "invalid goal difficulty")
	ErrInvalidGoalDates  = NewDomainError("goal", "Validate", ErrInvalidInput, "goal end date must be after start date")
)

// Notification domain errors
var (
	ErrNotificationNotFound = NewDomainError("notification", "Find", ErrNotFound, "notification not found")
	ErrNotificationFailed   = NewDomainError("notification", "Send", ErrExternalService, "failed to send notification")
	ErrInvalidKind          = NewDomainError("notification", "Validate", ErrInvalidInput, "invalid notification kind")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrZeroAmount) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsConflict checks if the error is a concurrency conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOptimisticLock) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsInvariantViolation checks if the error is a ledger invariant violation.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvariantViolation) ||
		errors.Is(err, ErrProcessingHalted)
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
		errors.Is(err, ErrOptimisticLock) ||
		errors.Is(err, ErrConcurrentModification)
}
