package models

import "time"

// FactKind identifies what category of contextual evidence a fact carries.
type FactKind string

const (
	FactHistoricalComparison FactKind = "historical_comparison"
	FactRelatedMetric        FactKind = "related_metric"
	FactRecentChange         FactKind = "recent_change"
	FactTemporalPattern      FactKind = "temporal_pattern"
)

// Fact is a single piece of contextual evidence gathered for an analysis run.
type Fact struct {
	Kind      FactKind     `json:"kind"`
	Summary   string       `json:"summary"`
	Metric    string       `json:"metric,omitempty"`
	Value     float64      `json:"value,omitempty"`
	Delta     float64      `json:"delta,omitempty"`
	Timestamp time.Time    `json:"timestamp,omitempty"`
	Change    *ChangeEvent `json:"change,omitempty"`
}

// EvidenceBundle is the ordered, immutable collection of facts gathered for
// one analysis run. Built once per run and never persisted independently.
type EvidenceBundle struct {
	Facts      []Fact    `json:"facts"`
	GatheredAt time.Time `json:"gathered_at"`
	// Partial is true when one or more evidence sources errored or missed
	// the gather deadline and their facts were omitted.
	Partial bool `json:"partial"`
	// OmittedSources names the sources that contributed nothing.
	OmittedSources []string `json:"omitted_sources,omitempty"`
}

// FactsOfKind returns the facts matching kind, preserving bundle order.
func (b *EvidenceBundle) FactsOfKind(kind FactKind) []Fact {
	var out []Fact
	for _, f := range b.Facts {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// ChangeEvent is a recorded system or configuration change that may explain
// a metric deviation.
type ChangeEvent struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Component   string    `json:"component"`
	ChangeType  string    `json:"change_type"` // deployment, config, migration, scaling
	Description string    `json:"description"`
}

// MetricPoint is a single historical observation of a metric.
type MetricPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}
