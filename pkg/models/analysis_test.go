package models

import (
	"testing"
)

// --- Supersedes / SelectPrimary tests ---

func TestSupersedes(t *testing.T) {
	tests := []struct {
		name     string
		a, b     RootCause
		expected bool
	}{
		{
			name:     "higher confidence wins",
			a:        RootCause{Confidence: 0.80, Provenance: ProvenanceRuleBased},
			b:        RootCause{Confidence: 0.60, Provenance: ProvenanceAIInferred},
			expected: true,
		},
		{
			name:     "lower confidence loses regardless of provenance",
			a:        RootCause{Confidence: 0.50, Provenance: ProvenanceMigrationCorrelated},
			b:        RootCause{Confidence: 0.70, Provenance: ProvenanceRuleBased},
			expected: false,
		},
		{
			name:     "tie broken by provenance priority",
			a:        RootCause{Confidence: 0.70, Provenance: ProvenanceAIInferred},
			b:        RootCause{Confidence: 0.70, Provenance: ProvenanceRuleBased},
			expected: true,
		},
		{
			name:     "migration-correlated beats ai-inferred on tie",
			a:        RootCause{Confidence: 0.70, Provenance: ProvenanceMigrationCorrelated},
			b:        RootCause{Confidence: 0.70, Provenance: ProvenanceAIInferred},
			expected: true,
		},
		{
			name:     "equal confidence and provenance does not supersede",
			a:        RootCause{Confidence: 0.70, Provenance: ProvenanceRuleBased},
			b:        RootCause{Confidence: 0.70, Provenance: ProvenanceRuleBased},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Supersedes(tt.b); got != tt.expected {
				t.Errorf("Supersedes() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSelectPrimary(t *testing.T) {
	candidates := []RootCause{
		{PrimaryCause: "a", Confidence: 0.55, Provenance: ProvenanceRuleBased},
		{PrimaryCause: "b", Confidence: 0.70, Provenance: ProvenanceRuleBased},
		{PrimaryCause: "c", Confidence: 0.70, Provenance: ProvenanceAIInferred},
	}
	if got := SelectPrimary(candidates); got != 2 {
		t.Errorf("SelectPrimary() = %d, want 2", got)
	}
}

func TestSelectPrimaryStableOnFullTie(t *testing.T) {
	candidates := []RootCause{
		{PrimaryCause: "first", Confidence: 0.70, Provenance: ProvenanceRuleBased},
		{PrimaryCause: "second", Confidence: 0.70, Provenance: ProvenanceRuleBased},
	}
	if got := SelectPrimary(candidates); got != 0 {
		t.Errorf("SelectPrimary() = %d, want 0 (earlier candidate on full tie)", got)
	}
}

func TestSelectPrimaryEmpty(t *testing.T) {
	if got := SelectPrimary(nil); got != -1 {
		t.Errorf("SelectPrimary(nil) = %d, want -1", got)
	}
}

// --- HumanReadableSummary tests ---

func TestSummaryComplete(t *testing.T) {
	full := HumanReadableSummary{
		WhatHappened:                  "a",
		WhyItHappened:                 "b",
		WhatIsTheImpact:               "c",
		WhatImprovementsCanBeMade:     "d",
		EstimatedBenefitIfImplemented: "e",
	}
	if !full.Complete() {
		t.Error("expected fully populated summary to be complete")
	}

	missing := full
	missing.EstimatedBenefitIfImplemented = ""
	if missing.Complete() {
		t.Error("expected summary with empty field to be incomplete")
	}
}

// --- Anomaly validation tests ---

func TestAnomalyValidate(t *testing.T) {
	valid := validAnomaly()
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid anomaly rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Anomaly)
	}{
		{"missing anomaly_id", func(a *Anomaly) { a.AnomalyID = "" }},
		{"missing detected_at", func(a *Anomaly) { a.DetectedAt = timeZero() }},
		{"missing metric_name", func(a *Anomaly) { a.MetricName = "" }},
		{"bad anomaly_type", func(a *Anomaly) { a.AnomalyType = "latency" }},
		{"bad severity", func(a *Anomaly) { a.Severity = "urgent" }},
		{"confidence above one", func(a *Anomaly) { a.Confidence = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAnomaly()
			tt.mutate(&a)
			if err := a.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestMetricFamily(t *testing.T) {
	a := validAnomaly()
	if got := a.MetricFamily(); got != "error" {
		t.Errorf("MetricFamily() = %q, want %q", got, "error")
	}
	a.MetricType = ""
	if got := a.MetricFamily(); got != "error_rate" {
		t.Errorf("MetricFamily() without type = %q, want %q", got, "error_rate")
	}
}
