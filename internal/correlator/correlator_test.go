package correlator

import (
	"strings"
	"testing"
	"time"

	"github.com/kiranshivaraju/anomalyzer/internal/config"
	"github.com/kiranshivaraju/anomalyzer/pkg/models"
)

var detectedAt = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

func testCorrelator() *Correlator {
	return NewCorrelator(config.EngineConfig{
		CorrelationThreshold: 0.65,
		ChangeLookback:       2 * time.Hour,
	})
}

func anomalyFixture() *models.Anomaly {
	return &models.Anomaly{
		AnomalyID:         "anom-1",
		DetectedAt:        detectedAt,
		MetricName:        "error_rate",
		MetricType:        "error",
		AnomalyType:       models.AnomalyTypeStability,
		Severity:          models.SeverityHigh,
		AffectedResources: []string{"checkout-service"},
	}
}

func changeFact(change models.ChangeEvent) models.Fact {
	return models.Fact{
		Kind:      models.FactRecentChange,
		Timestamp: change.Timestamp,
		Change:    &change,
		Summary:   change.Description,
	}
}

func ruleLeading() models.RootCause {
	return models.RootCause{
		PrimaryCause: "rule-based explanation",
		Confidence:   0.55,
		Provenance:   models.ProvenanceRuleBased,
	}
}

func TestCorrelateRecentDeploymentSupersedes(t *testing.T) {
	c := testCorrelator()
	anomaly := anomalyFixture()

	// Deployment to an affected resource ten minutes before detection:
	// temporal 1 - 600/7200 ≈ 0.917, semantic 1.0 → score ≈ 0.95.
	bundle := &models.EvidenceBundle{Facts: []models.Fact{
		changeFact(models.ChangeEvent{
			ID:          "chg-1",
			Timestamp:   detectedAt.Add(-10 * time.Minute),
			Component:   "checkout-service",
			ChangeType:  "deployment",
			Description: "rollout of v42",
		}),
	}}

	got := c.Correlate(anomaly, bundle, ruleLeading())

	if got.Provenance != models.ProvenanceMigrationCorrelated {
		t.Fatalf("provenance = %q, want migration-correlated", got.Provenance)
	}
	if got.CorrelatedChange == nil || got.CorrelatedChange.ID != "chg-1" {
		t.Error("correlated change not attached")
	}
	if got.Confidence < 0.90 {
		t.Errorf("confidence = %v, want score above 0.90", got.Confidence)
	}
	if !strings.Contains(got.PrimaryCause, "deployment to checkout-service") {
		t.Errorf("cause = %q, want to reference the change", got.PrimaryCause)
	}
}

func TestCorrelateBelowThresholdKeepsLeading(t *testing.T) {
	c := testCorrelator()
	anomaly := anomalyFixture()

	// Unrelated component near the end of the look-back window: temporal
	// low, semantic zero → stays below threshold.
	bundle := &models.EvidenceBundle{Facts: []models.Fact{
		changeFact(models.ChangeEvent{
			ID:          "chg-2",
			Timestamp:   detectedAt.Add(-110 * time.Minute),
			Component:   "billing-reports",
			ChangeType:  "config_change",
			Description: "rotated signing certificate",
		}),
	}}

	leading := ruleLeading()
	got := c.Correlate(anomaly, bundle, leading)
	if got.Provenance != leading.Provenance || got.PrimaryCause != leading.PrimaryCause {
		t.Errorf("expected leading candidate unchanged, got %+v", got)
	}
}

func TestCorrelateNeverLowersConfidence(t *testing.T) {
	c := testCorrelator()
	anomaly := anomalyFixture()

	bundle := &models.EvidenceBundle{Facts: []models.Fact{
		changeFact(models.ChangeEvent{
			ID:          "chg-3",
			Timestamp:   detectedAt.Add(-40 * time.Minute),
			Component:   "checkout-service",
			ChangeType:  "deployment",
			Description: "rollout of v43",
		}),
	}}

	leading := ruleLeading()
	leading.Confidence = 0.95
	leading.Provenance = models.ProvenanceAIInferred

	got := c.Correlate(anomaly, bundle, leading)
	if got.Provenance != models.ProvenanceMigrationCorrelated {
		t.Fatalf("expected supersession, got provenance %q", got.Provenance)
	}
	if got.Confidence < leading.Confidence {
		t.Errorf("confidence dropped from %v to %v on supersession", leading.Confidence, got.Confidence)
	}
}

func TestCorrelateIgnoresChangesOutsideLookback(t *testing.T) {
	c := testCorrelator()
	anomaly := anomalyFixture()

	bundle := &models.EvidenceBundle{Facts: []models.Fact{
		changeFact(models.ChangeEvent{
			Timestamp:   detectedAt.Add(-3 * time.Hour),
			Component:   "checkout-service",
			ChangeType:  "deployment",
			Description: "old rollout",
		}),
		changeFact(models.ChangeEvent{
			Timestamp:   detectedAt.Add(30 * time.Minute),
			Component:   "checkout-service",
			ChangeType:  "deployment",
			Description: "future rollout",
		}),
	}}

	leading := ruleLeading()
	got := c.Correlate(anomaly, bundle, leading)
	if got.Provenance != models.ProvenanceRuleBased {
		t.Errorf("out-of-window change correlated: %+v", got)
	}
}

func TestSemanticOverlapTiers(t *testing.T) {
	anomaly := anomalyFixture()

	tests := []struct {
		name     string
		change   models.ChangeEvent
		expected float64
	}{
		{
			name:     "component matches metric family",
			change:   models.ChangeEvent{Component: "error"},
			expected: 1.0,
		},
		{
			name:     "component matches affected resource",
			change:   models.ChangeEvent{Component: "Checkout-Service"},
			expected: 1.0,
		},
		{
			name:     "token overlap in description",
			change:   models.ChangeEvent{Component: "gateway", Description: "tightened error budget policy"},
			expected: 0.5,
		},
		{
			name:     "no overlap",
			change:   models.ChangeEvent{Component: "dns", Description: "updated zone records"},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := semanticOverlap(anomaly, &tt.change); got != tt.expected {
				t.Errorf("semanticOverlap() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNewCorrelatorZeroLookbackUsesDefault(t *testing.T) {
	c := NewCorrelator(config.EngineConfig{
		CorrelationThreshold: 0.65,
		ChangeLookback:       0,
	})
	if c.lookback != 2*time.Hour {
		t.Errorf("lookback = %v, want 2h default for non-positive config", c.lookback)
	}
}
