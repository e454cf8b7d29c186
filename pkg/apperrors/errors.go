package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a unique-key violation from the store.
	ErrConflict            = errors.New("conflict")
	ErrValidation          = errors.New("validation failed")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrTransactionFailure  = errors.New("transaction failed")
	ErrAuditWrite          = errors.New("audit write failed")
)

// Validationf builds an error wrapping ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// RecordError attributes a load failure to a single job id.
type RecordError struct {
	JobID string
	Err   error
}

func (e *RecordError) Error() string {
	if e.JobID == "" {
		return fmt.Sprintf("job <missing id>: %v", e.Err)
	}
	return fmt.Sprintf("job %s: %v", e.JobID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConcurrencyConflict reports whether err is a lock, deadlock or serialization conflict.
func IsConcurrencyConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
