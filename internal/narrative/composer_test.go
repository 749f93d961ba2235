package narrative

import (
	"strings"
	"testing"
	"time"

	"github.com/kiranshivaraju/anomalyzer/pkg/models"
)

func anomalyFixture() *models.Anomaly {
	return &models.Anomaly{
		AnomalyID:           "anom-1",
		DetectedAt:          time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
		MetricName:          "error_rate",
		CurrentValue:        0.12,
		BaselineValue:       0.02,
		DeviationSigma:      5.2,
		DeviationPercentage: 500,
		AnomalyType:         models.AnomalyTypeStability,
		Severity:            models.SeverityHigh,
		AffectedResources:   []string{"checkout-service"},
	}
}

func rootCauseFixture() models.RootCause {
	return models.RootCause{
		PrimaryCause:        "A failing downstream dependency",
		ContributingFactors: []string{"timeout spike in payment gateway"},
		Confidence:          0.82,
		Provenance:          models.ProvenanceAIInferred,
	}
}

func recsFixture() []models.Recommendation {
	return []models.Recommendation{
		{Priority: models.SeverityHigh, Action: "Add circuit breakers around failing downstream calls",
			ExpectedImpact: "Error rate contained to the unhealthy dependency"},
	}
}

func TestComposeAllFieldsPopulated(t *testing.T) {
	s := Compose(anomalyFixture(), rootCauseFixture(), recsFixture())
	if !s.Complete() {
		t.Fatalf("expected complete summary, got %+v", s)
	}
}

func TestComposeAllFieldsPopulatedFromSparseInput(t *testing.T) {
	s := Compose(anomalyFixture(), models.RootCause{}, nil)
	if !s.Complete() {
		t.Fatalf("expected complete summary even from sparse input, got %+v", s)
	}
	if !strings.Contains(s.WhyItHappened, "could not be determined") {
		t.Errorf("why = %q, want undetermined-cause fallback", s.WhyItHappened)
	}
}

func TestComposeWhatHappened(t *testing.T) {
	s := Compose(anomalyFixture(), rootCauseFixture(), recsFixture())

	for _, want := range []string{"error_rate", "rose", "0.12", "0.02", "5.2", "high", "stability"} {
		if !strings.Contains(s.WhatHappened, want) {
			t.Errorf("WhatHappened = %q, missing %q", s.WhatHappened, want)
		}
	}

	dropped := anomalyFixture()
	dropped.CurrentValue = 0.001
	if !strings.Contains(Compose(dropped, rootCauseFixture(), nil).WhatHappened, "dropped") {
		t.Error("expected 'dropped' direction for below-baseline value")
	}
}

func TestComposeWhyIncludesConfidenceAndProvenance(t *testing.T) {
	s := Compose(anomalyFixture(), rootCauseFixture(), recsFixture())
	if !strings.Contains(s.WhyItHappened, "confidence: 82%") {
		t.Errorf("why = %q, missing confidence", s.WhyItHappened)
	}
	if !strings.Contains(s.WhyItHappened, "ai-inferred") {
		t.Errorf("why = %q, missing provenance", s.WhyItHappened)
	}
}

func TestComposeWhyMentionsCorrelatedChange(t *testing.T) {
	rc := rootCauseFixture()
	rc.Provenance = models.ProvenanceMigrationCorrelated
	rc.CorrelatedChange = &models.ChangeEvent{
		ChangeType: "deployment",
		Component:  "checkout-service",
	}

	s := Compose(anomalyFixture(), rc, recsFixture())
	if !strings.Contains(s.WhyItHappened, "deployment to checkout-service") {
		t.Errorf("why = %q, want correlated change referenced", s.WhyItHappened)
	}
}

func TestComposeImpactListsAffectedResources(t *testing.T) {
	s := Compose(anomalyFixture(), rootCauseFixture(), recsFixture())
	if !strings.Contains(s.WhatIsTheImpact, "checkout-service") {
		t.Errorf("impact = %q, missing affected resource", s.WhatIsTheImpact)
	}
}

func TestComposeImprovementsNumbered(t *testing.T) {
	recs := append(recsFixture(), models.Recommendation{
		Priority: models.SeverityMedium, Action: "Review retry budgets",
	})
	s := Compose(anomalyFixture(), rootCauseFixture(), recs)
	if !strings.Contains(s.WhatImprovementsCanBeMade, "1) ") || !strings.Contains(s.WhatImprovementsCanBeMade, "2) ") {
		t.Errorf("improvements = %q, want numbered actions", s.WhatImprovementsCanBeMade)
	}
}
