// Package models contains shared data models used across the Anomalyzer codebase.
package models

import (
	"fmt"
	"time"
)

// AnomalyType classifies the operational dimension an anomaly affects.
type AnomalyType string

const (
	AnomalyTypeStability   AnomalyType = "stability"
	AnomalyTypePerformance AnomalyType = "performance"
	AnomalyTypeCost        AnomalyType = "cost"
	AnomalyTypeResource    AnomalyType = "resource"
	AnomalyTypeUnknown     AnomalyType = "unknown"
)

// Valid reports whether t is a recognized anomaly type.
func (t AnomalyType) Valid() bool {
	switch t {
	case AnomalyTypeStability, AnomalyTypePerformance, AnomalyTypeCost, AnomalyTypeResource, AnomalyTypeUnknown:
		return true
	}
	return false
}

// Severity ranks how urgently an anomaly needs attention.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Valid reports whether s is a recognized severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}

// Rank maps a severity to a numeric ordering (critical highest).
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Anomaly is a detected deviation of an observed metric from its baseline.
// Produced by an upstream detector; immutable once created.
type Anomaly struct {
	AnomalyID  string    `db:"anomaly_id"  json:"anomaly_id"`
	DetectedAt time.Time `db:"detected_at" json:"detected_at"`

	MetricName string `db:"metric_name" json:"metric_name"`
	MetricType string `db:"metric_type" json:"metric_type"`

	CurrentValue        float64 `db:"current_value"        json:"current_value"`
	BaselineValue       float64 `db:"baseline_value"       json:"baseline_value"`
	DeviationSigma      float64 `db:"deviation_sigma"      json:"deviation_sigma"`
	DeviationPercentage float64 `db:"deviation_percentage" json:"deviation_percentage"`

	AnomalyType AnomalyType `db:"anomaly_type" json:"anomaly_type"`
	Severity    Severity    `db:"severity"     json:"severity"`
	Confidence  float64     `db:"confidence"   json:"confidence"`

	AffectedResources []string           `db:"affected_resources" json:"affected_resources,omitempty"`
	RelatedMetrics    map[string]float64 `db:"related_metrics"    json:"related_metrics,omitempty"`
	Metadata          map[string]string  `db:"metadata"           json:"metadata,omitempty"`
}

// Validate checks that the anomaly is structurally sound after decoding.
// Missing-field validation on the wire format is done by the HTTP handler.
func (a *Anomaly) Validate() error {
	if a.AnomalyID == "" {
		return fmt.Errorf("anomaly_id is required")
	}
	if a.DetectedAt.IsZero() {
		return fmt.Errorf("detected_at is required")
	}
	if a.MetricName == "" {
		return fmt.Errorf("metric_name is required")
	}
	if !a.AnomalyType.Valid() {
		return fmt.Errorf("anomaly_type %q is not one of stability, performance, cost, resource, unknown", a.AnomalyType)
	}
	if !a.Severity.Valid() {
		return fmt.Errorf("severity %q is not one of critical, high, medium, low, info", a.Severity)
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		return fmt.Errorf("confidence must be in [0,1], got %v", a.Confidence)
	}
	return nil
}

// MetricFamily returns the coarse grouping used for related-metric lookups
// and change correlation, e.g. "error" for "error_rate".
func (a *Anomaly) MetricFamily() string {
	if a.MetricType != "" {
		return a.MetricType
	}
	return a.MetricName
}
