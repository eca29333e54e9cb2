package core

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Sentinel errors for the payables domain. Callers classify with errors.Is.
var (
	// ErrValidation marks a missing or malformed input field.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateBill is returned when a bill with the same fingerprint already
	// exists for the company.
	ErrDuplicateBill = errors.New("duplicate bill detected")

	// ErrInsufficientPermission is returned when the caller's role does not allow the operation.
	ErrInsufficientPermission = errors.New("insufficient permission")

	// ErrOverAllocation is returned when vendor credit allocations exceed the credit total.
	ErrOverAllocation = errors.New("allocations exceed credit total")

	// ErrBillOverAllocated is returned when an allocation would push a bill's
	// outstanding balance below zero.
	ErrBillOverAllocated = errors.New("allocation exceeds bill outstanding balance")

	// ErrEmptyAllocation is returned when a credit application has nothing positive to apply.
	ErrEmptyAllocation = errors.New("allocation total must be greater than zero")

	// ErrEmptyPayment is returned when a payment has nothing positive to allocate.
	ErrEmptyPayment = errors.New("payment amount must be greater than zero")

	// ErrAlreadyApplied is returned when a vendor credit has already been applied.
	ErrAlreadyApplied = errors.New("vendor credit already applied")

	// ErrOverMatch is returned when a match would exceed a line's available quantity.
	ErrOverMatch = errors.New("matched quantity exceeds available quantity")

	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state transition")

	// ErrPersistence marks a transaction or commit failure. The cause is logged,
	// never surfaced.
	ErrPersistence = errors.New("persistence failure")

	// ErrLedgerPosting marks a Ledger Bridge failure. The local mutation has
	// already committed and the entity stays discoverable as unposted.
	ErrLedgerPosting = errors.New("ledger posting failed")
)

// ValidationError describes which input field was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// PersistenceError wraps a storage failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// persistFailure logs the underlying cause and returns a PersistenceError.
func persistFailure(log zerolog.Logger, op string, err error) error {
	log.Error().Err(err).Str("op", op).Msg("persistence failure")
	return &PersistenceError{Op: op, Err: err}
}

// LedgerPostingError reports which entity could not be posted.
type LedgerPostingError struct {
	Entity   string
	EntityID int
	Err      error
}

func (e *LedgerPostingError) Error() string {
	return fmt.Sprintf("%s: %s %d: %v", ErrLedgerPosting, e.Entity, e.EntityID, e.Err)
}

func (e *LedgerPostingError) Unwrap() []error {
	return []error{ErrLedgerPosting, e.Err}
}

func notFound(entity string, id int) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
}

// isDomainError reports whether err is a classified failure that should reach
// the caller as is rather than be wrapped as a persistence failure.
func isDomainError(err error) bool {
	for _, target := range []error{
		ErrValidation, ErrNotFound, ErrInvalidState, ErrBillOverAllocated, ErrOverAllocation,
		ErrEmptyAllocation, ErrEmptyPayment, ErrAlreadyApplied, ErrOverMatch, ErrDuplicateBill,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
