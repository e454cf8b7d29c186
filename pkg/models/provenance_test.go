package models

import (
	"context"
	"testing"
)

func TestProvenanceSource_IsValid(t *testing.T) {
	tests := []struct {
		source ProvenanceSource
		valid  bool
	}{
		{SourceBatch, true},
		{SourceManual, true},
		{"inference", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.source), func(t *testing.T) {
			if got := tt.source.IsValid(); got != tt.valid {
				t.Errorf("ProvenanceSource(%q).IsValid() = %v, want %v", tt.source, got, tt.valid)
			}
		})
	}
}

func TestProvenanceContext_String(t *testing.T) {
	tests := []struct {
		name     string
		prov     ProvenanceContext
		expected string
	}{
		{"batch", ProvenanceContext{Source: SourceBatch, Actor: "jobmart-loader"}, "batch:jobmart-loader"},
		{"manual", ProvenanceContext{Source: SourceManual, Actor: "ops"}, "manual:ops"},
		{"no source", ProvenanceContext{Actor: "ops"}, "ops"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.prov.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestGetProvenance_Missing(t *testing.T) {
	if _, ok := GetProvenance(context.Background()); ok {
		t.Error("expected no provenance on a bare context")
	}
}

func TestWithBatchProvenance(t *testing.T) {
	ctx := WithBatchProvenance(context.Background(), "nightly")

	p, ok := GetProvenance(ctx)
	if !ok {
		t.Fatal("expected provenance in context")
	}
	if p.Source != SourceBatch {
		t.Errorf("Source = %q, want %q", p.Source, SourceBatch)
	}
	if p.Actor != "nightly" {
		t.Errorf("Actor = %q, want nightly", p.Actor)
	}
}

func TestWithManualProvenance_OverridesOuter(t *testing.T) {
	ctx := WithBatchProvenance(context.Background(), "nightly")
	ctx = WithManualProvenance(ctx, "ops")

	p, _ := GetProvenance(ctx)
	if p.Source != SourceManual || p.Actor != "ops" {
		t.Errorf("GetProvenance() = %+v, want manual:ops", p)
	}
}
