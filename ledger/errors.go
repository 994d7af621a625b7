/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Store implementations and the API layer wrap these with context.

ERROR CATEGORIES:
  1. Lookup errors - referenced entity does not exist
  2. Validation errors - malformed action input
  3. Sync errors - remote persistence failures (outbox-internal)

SEE ALSO:
  - manager.go: returns these from orchestrated actions
  - outbox.go: classifies store failures for retry
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when an update or delete references an
	// entity that does not exist in the snapshot.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidAmount is returned when an action carries a zero or
	// negative amount. Transaction amounts are always positive; sign
	// comes from the transaction type.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidTransfer is returned when a transfer is missing either
	// endpoint or when both endpoints are the same account.
	ErrInvalidTransfer = errors.New("transfer requires distinct source and destination accounts")

	// ErrInvalidFrequency is returned for an unknown auto-pay frequency.
	ErrInvalidFrequency = errors.New("invalid auto-pay frequency")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError reports which entity was missing.
type NotFoundError struct {
	Section Section
	ID      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Section, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// SyncError wraps a store failure for a specific entity. It never crosses
// the action boundary; the outbox logs it and schedules a retry.
type SyncError struct {
	Section Section
	ID      string
	Err     error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s %q: %v", e.Section, e.ID, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError reports whether the error is due to invalid input rather
// than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidTransfer) ||
		errors.Is(err, ErrInvalidFrequency)
}
