// Package models contains domain types for ekaya-jobmart.
package models

import (
	"context"
	"fmt"
)

// ProvenanceSource represents how a warehouse row was written.
type ProvenanceSource string

const (
	SourceBatch  ProvenanceSource = "batch"  // Batch loader run
	SourceManual ProvenanceSource = "manual" // Operator command (delete, single upsert)
)

// String returns the string representation of a ProvenanceSource.
func (s ProvenanceSource) String() string {
	return string(s)
}

// IsValid returns true if the source is a valid provenance source.
func (s ProvenanceSource) IsValid() bool {
	switch s {
	case SourceBatch, SourceManual:
		return true
	default:
		return false
	}
}

// ProvenanceContext carries WHO performed a write and HOW, for the audit log.
type ProvenanceContext struct {
	Source ProvenanceSource

	// Actor is the principal recorded on audit entries (service account,
	// operator name, or batch run id).
	Actor string
}

// String renders the provenance as recorded in audit_log.actor.
func (p ProvenanceContext) String() string {
	if p.Source == "" {
		return p.Actor
	}
	return fmt.Sprintf("%s:%s", p.Source, p.Actor)
}

type provenanceKey struct{}

// WithProvenance returns a new context with provenance information attached.
func WithProvenance(ctx context.Context, p ProvenanceContext) context.Context {
	return context.WithValue(ctx, provenanceKey{}, p)
}

// GetProvenance retrieves provenance information from the context.
func GetProvenance(ctx context.Context) (ProvenanceContext, bool) {
	p, ok := ctx.Value(provenanceKey{}).(ProvenanceContext)
	return p, ok
}

// WithBatchProvenance returns a context attributing writes to a batch run.
func WithBatchProvenance(ctx context.Context, actor string) context.Context {
	return WithProvenance(ctx, ProvenanceContext{
		Source: SourceBatch,
		Actor:  actor,
	})
}

// WithManualProvenance returns a context attributing writes to an operator.
func WithManualProvenance(ctx context.Context, actor string) context.Context {
	return WithProvenance(ctx, ProvenanceContext{
		Source: SourceManual,
		Actor:  actor,
	})
}
