// Package source defines readers that stream enriched job records into the loader.
package source

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-jobmart/pkg/models"
)

// Reader streams job records from an upstream source.
// Each implementation owns its underlying handle and must be closed when done.
type Reader interface {
	// Next returns the next record. It returns io.EOF when the source is
	// exhausted and a *DecodeError for a row that could not be decoded; the
	// caller may keep reading after a DecodeError.
	Next(ctx context.Context) (*models.JobRecord, error)

	// Close releases the underlying handle.
	Close() error
}

// DecodeError reports a source row that is not a valid record encoding.
type DecodeError struct {
	// Position is the 1-based line or row number within the source.
	Position int64
	// JobID is set when the row identified itself before failing.
	JobID string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.JobID != "" {
		return fmt.Sprintf("decode row %d (job %s): %v", e.Position, e.JobID, e.Err)
	}
	return fmt.Sprintf("decode row %d: %v", e.Position, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
