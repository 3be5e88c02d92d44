package admission

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/septivank/submetering-worker/internal/baseline"
	"github.com/septivank/submetering-worker/internal/db"
)

var (
	// ErrInvalidValue means the reading value is not a finite number.
	ErrInvalidValue = errors.New("invalid reading value")
	// ErrMissingSelection means the meter or billing period was not chosen or does not exist.
	ErrMissingSelection = errors.New("meter and billing period are required")
	// ErrRequiresConfirmation means the value is below the baseline and the
	// caller has not confirmed a meter replacement or rollover.
	ErrRequiresConfirmation = errors.New("reading is below the previous value and requires confirmation")
	// ErrDuplicateReading means another reading already holds the meter and
	// billing period an edit moves to.
	ErrDuplicateReading = errors.New("another reading exists for this meter and billing period")
	// ErrStorage marks failures of the storage collaborators.
	ErrStorage = errors.New("storage failure")
)

// ConfirmationError carries the values behind ErrRequiresConfirmation
type ConfirmationError struct {
	Value    decimal.Decimal
	Baseline baseline.Result
}

func (e *ConfirmationError) Error() string {
	return fmt.Sprintf("%s: value %s < %s (%s)",
		ErrRequiresConfirmation.Error(), e.Value.String(), e.Baseline.Value.String(), e.Baseline.Provenance)
}

// Is matches ErrRequiresConfirmation
func (e *ConfirmationError) Is(target error) bool {
	return target == ErrRequiresConfirmation
}

// StorageError wraps a collaborator I/O error verbatim
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is matches ErrStorage
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func storageErr(op string, err error) error {
	if errors.Is(err, db.ErrConflict) {
		return fmt.Errorf("%w: %v", ErrDuplicateReading, err)
	}
	return &StorageError{Op: op, Err: err}
}

// Kind returns the wire name of an admission error, or "" for unknown errors
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidValue):
		return "invalid_value"
	case errors.Is(err, ErrMissingSelection):
		return "missing_selection"
	case errors.Is(err, ErrRequiresConfirmation):
		return "requires_confirmation"
	case errors.Is(err, ErrDuplicateReading):
		return "duplicate_reading"
	case errors.Is(err, ErrStorage):
		return "storage_failure"
	}
	return ""
}

// IsRejection reports whether err is a domain rejection the caller must
// correct, as opposed to an infrastructure failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidValue) ||
		errors.Is(err, ErrMissingSelection) ||
		errors.Is(err, ErrRequiresConfirmation) ||
		errors.Is(err, ErrDuplicateReading)
}
