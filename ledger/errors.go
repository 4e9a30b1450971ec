/*
errors.go - Centralized error taxonomy for the budgeting core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Components raise these directly; only the resilience layer may remap
  raw store/driver errors into this taxonomy, and only the retry logic
  may inspect the retryability classes.

ERROR CATEGORIES:
  1. Structural errors - validation, not-found, conflict. Never retried.
  2. Credential errors - unauthorized, session expired. One refresh+retry.
  3. Transient errors - store/network unavailable. Retried with backoff.
  4. Internal errors - unclassified store failures, wrapped with the op.

USAGE:
  Callers classify with the helpers:

    if ledger.IsNotFound(err) {
        // 404
    }

SEE ALSO:
  - validator.go: Raises ValidationError and the transaction-type errors
  - resilience/: The only layer that retries or remaps
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the base class for malformed or type-inconsistent
	// input. Structured ValidationError values unwrap to this.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned for missing or inaccessible records,
	// including records soft-deleted by a different actor.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransactionType is returned for an unrecognized
	// transaction type.
	ErrInvalidTransactionType = errors.New("invalid transaction type")

	// ErrInvalidEnvelopeTransfer is returned when a transfer names the
	// same envelope on both sides.
	ErrInvalidEnvelopeTransfer = errors.New("invalid envelope transfer")

	// ErrAlreadyExists is returned when a uniqueness constraint is
	// violated at the store.
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized is returned for identity problems: the caller's
	// credentials were rejected outright.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSessionExpired is returned when credentials have lapsed and a
	// refresh may succeed.
	ErrSessionExpired = errors.New("session expired")

	// ErrServiceUnavailable is returned for transient store or network
	// failures worth retrying.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrInternal is the base class for unclassified store failures.
	ErrInternal = errors.New("internal error")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the field (or check) that failed and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError identifies which kind of record was missing or hidden.
type NotFoundError struct {
	Kind string // "budget", "envelope", "payee", ...
	ID   uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidTransactionTypeError reports the unrecognized type verbatim.
type InvalidTransactionTypeError struct {
	Type TransactionType
}

func (e *InvalidTransactionTypeError) Error() string {
	return fmt.Sprintf("invalid transaction type %q", string(e.Type))
}

func (e *InvalidTransactionTypeError) Unwrap() error { return ErrInvalidTransactionType }

// InvalidEnvelopeTransferError reports a self-transfer.
type InvalidEnvelopeTransferError struct {
	EnvelopeID uuid.UUID
}

func (e *InvalidEnvelopeTransferError) Error() string {
	return fmt.Sprintf("transfer source and destination are the same envelope %s", e.EnvelopeID)
}

func (e *InvalidEnvelopeTransferError) Unwrap() error { return ErrInvalidEnvelopeTransfer }

// InternalError wraps an unclassified failure with the operation that hit it.
// The cause stays available through the Err field for error payloads.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error { return ErrInternal }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true for malformed or type-inconsistent input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidTransactionType) ||
		errors.Is(err, ErrInvalidEnvelopeTransfer)
}

// IsNotFound returns true if the error indicates a missing or hidden record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true for uniqueness violations.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsStructural returns true for errors that no retry can fix.
func IsStructural(err error) bool {
	return IsValidation(err) || IsNotFound(err) || IsConflict(err)
}

// IsAuthExpiry returns true for credential problems that a refresh
// might resolve.
func IsAuthExpiry(err error) bool {
	return errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrUnauthorized)
}

// IsTransient returns true if the error might succeed on retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}
