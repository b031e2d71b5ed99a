/*
errors.go - Centralized error types for the incentive engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The API layer maps them to HTTP status codes through the helpers
  at the bottom of this file.

ERROR CATEGORIES:
  1. Validation errors - Bad date range, missing tenant (400)
  2. Data errors - Malformed line items found while aggregating
  3. Concurrency errors - Backfill already running for the tenant (409)
  4. Store errors - Anything else surfaces as an internal error (500)

USAGE:
  var dayErr *generic.DayError
  if errors.As(err, &dayErr) {
      log.Printf("backfill stopped at %s", dayErr.Date)
  }
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingDate is returned when a range bound is absent.
	ErrMissingDate = errors.New("start and end dates are required")

	// ErrInvalidRange is returned when start is after end.
	ErrInvalidRange = errors.New("invalid range: start after end")

	// ErrTenantRequired is returned when no tenant id is supplied.
	ErrTenantRequired = errors.New("tenant id is required")

	// ErrMalformedLineItem is returned when an attributed line item cannot be categorized.
	ErrMalformedLineItem = errors.New("malformed line item")

	// ErrBackfillInProgress is returned when another backfill holds the tenant lock.
	ErrBackfillInProgress = errors.New("backfill already in progress for tenant")

	// ErrNotFound is returned when a keyed record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRule is returned when a rule document fails validation.
	ErrInvalidRule = errors.New("invalid incentive rule")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DayError identifies the day (and staff, when known) a backfill stopped on.
type DayError struct {
	Date    Day
	StaffID StaffID
	Err     error
}

func (e *DayError) Error() string {
	if e.StaffID != "" {
		return fmt.Sprintf("backfill failed on %s for staff %s: %v", e.Date, e.StaffID, e.Err)
	}
	return fmt.Sprintf("backfill failed on %s: %v", e.Date, e.Err)
}

func (e *DayError) Unwrap() error { return e.Err }

// MalformedLineItemError points at the offending invoice entry.
type MalformedLineItemError struct {
	InvoiceID InvoiceID
	StaffID   StaffID
	Index     int
	Reason    string
}

func (e *MalformedLineItemError) Error() string {
	return fmt.Sprintf("malformed line item %d on invoice %s (staff %s): %s",
		e.Index, e.InvoiceID, e.StaffID, e.Reason)
}

func (e *MalformedLineItemError) Unwrap() error { return ErrMalformedLineItem }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMissingDate) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrTenantRequired) ||
		errors.Is(err, ErrInvalidRule)
}

// IsConflict returns true if the request collided with concurrent work.
func IsConflict(err error) bool {
	return errors.Is(err, ErrBackfillInProgress)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
