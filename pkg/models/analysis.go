package models

import (
	"time"

	"github.com/google/uuid"
)

// Provenance identifies the inference path that produced a root-cause candidate.
type Provenance string

const (
	ProvenanceRuleBased           Provenance = "rule-based"
	ProvenanceAIInferred          Provenance = "ai-inferred"
	ProvenanceMigrationCorrelated Provenance = "migration-correlated"
)

// Priority ranks provenance for tie-breaking between candidates with equal
// confidence: migration-correlated > ai-inferred > rule-based.
func (p Provenance) Priority() int {
	switch p {
	case ProvenanceMigrationCorrelated:
		return 3
	case ProvenanceAIInferred:
		return 2
	case ProvenanceRuleBased:
		return 1
	default:
		return 0
	}
}

// RootCause is a candidate explanation for an anomaly.
type RootCause struct {
	PrimaryCause        string     `json:"primary_cause"`
	ContributingFactors []string   `json:"contributing_factors,omitempty"`
	Confidence          float64    `json:"confidence"`
	Provenance          Provenance `json:"provenance"`
	// EvidenceRefs are indices into the run's EvidenceBundle.
	EvidenceRefs []int `json:"evidence_refs,omitempty"`
	// Evidence holds the resolved summaries of the referenced facts.
	Evidence []string `json:"evidence,omitempty"`
	// CorrelatedChange is set only for migration-correlated candidates.
	CorrelatedChange *ChangeEvent `json:"correlated_change,omitempty"`
}

// Supersedes reports whether c should be selected over other: higher
// confidence wins, with ties broken by provenance priority.
func (c RootCause) Supersedes(other RootCause) bool {
	if c.Confidence != other.Confidence {
		return c.Confidence > other.Confidence
	}
	return c.Provenance.Priority() > other.Provenance.Priority()
}

// SelectPrimary returns the index of the primary candidate per the
// confidence-then-provenance ordering. Returns -1 for an empty slice.
func SelectPrimary(candidates []RootCause) int {
	best := -1
	for i, c := range candidates {
		if best == -1 || c.Supersedes(candidates[best]) {
			best = i
		}
	}
	return best
}

// Recommendation is an actionable remediation tied to the anomaly's category.
type Recommendation struct {
	Priority            Severity `json:"priority"`
	Action              string   `json:"action"`
	Rationale           string   `json:"rationale"`
	ExpectedImpact      string   `json:"expected_impact"`
	ImplementationSteps []string `json:"implementation_steps,omitempty"`
	EstimatedEffort     string   `json:"estimated_effort,omitempty"`
	RiskLevel           string   `json:"risk_level,omitempty"`
	CostImpact          string   `json:"cost_impact,omitempty"`
}

// HumanReadableSummary is the five-part plain-language narrative.
// All five fields are always populated.
type HumanReadableSummary struct {
	WhatHappened                  string `json:"what_happened"`
	WhyItHappened                 string `json:"why_it_happened"`
	WhatIsTheImpact               string `json:"what_is_the_impact"`
	WhatImprovementsCanBeMade     string `json:"what_improvements_can_be_made"`
	EstimatedBenefitIfImplemented string `json:"estimated_benefit_if_implemented"`
}

// Complete reports whether all five narrative fields are non-empty.
func (s HumanReadableSummary) Complete() bool {
	return s.WhatHappened != "" && s.WhyItHappened != "" && s.WhatIsTheImpact != "" &&
		s.WhatImprovementsCanBeMade != "" && s.EstimatedBenefitIfImplemented != ""
}

// Analysis is the aggregate result of one analyze_anomaly invocation.
// Created once; the false-positive flag is the only post-creation mutation.
type Analysis struct {
	ID       uuid.UUID `db:"id"        json:"id"`
	TenantID uuid.UUID `db:"tenant_id" json:"tenant_id"`

	Anomaly         Anomaly              `json:"anomaly"`
	RootCause       RootCause            `json:"root_cause"`
	AlternateCauses []RootCause          `json:"alternate_causes,omitempty"`
	Recommendations []Recommendation     `json:"recommendations"`
	Summary         HumanReadableSummary `json:"human_readable_summary"`

	Provider   string    `db:"provider"    json:"provider"`
	Model      string    `db:"model"       json:"model,omitempty"`
	AnalyzedAt time.Time `db:"analyzed_at" json:"analyzed_at"`
	DurationMS int64     `db:"duration_ms" json:"analysis_duration_ms"`

	// IsFalsePositive is unset until a user marks the analysis.
	IsFalsePositive *bool `db:"is_false_positive" json:"is_false_positive,omitempty"`

	// Warnings carries non-fatal degradations (e.g. a persistence failure)
	// attached to a successfully computed analysis. Not persisted.
	Warnings []string `json:"warnings,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
