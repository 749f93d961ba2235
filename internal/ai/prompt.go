package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/kiranshivaraju/anomalyzer/pkg/models"
)

// BuildPrompt renders the anomaly and its evidence bundle into the
// structured prompt submitted to the language-model backend. The response
// contract is a single JSON object; everything else is treated as a parse
// failure by the adapter.
func BuildPrompt(anomaly *models.Anomaly, bundle *models.EvidenceBundle) string {
	var b strings.Builder

	b.WriteString("You are a root-cause analysis engine for operational metric anomalies.\n")
	b.WriteString("Analyze the anomaly below using only the numbered evidence provided.\n\n")

	b.WriteString("ANOMALY:\n")
	fmt.Fprintf(&b, "- metric: %s (%s)\n", anomaly.MetricName, anomaly.MetricType)
	fmt.Fprintf(&b, "- category: %s, severity: %s\n", anomaly.AnomalyType, anomaly.Severity)
	fmt.Fprintf(&b, "- current value: %.4f, baseline: %.4f\n", anomaly.CurrentValue, anomaly.BaselineValue)
	fmt.Fprintf(&b, "- deviation: %.2f sigma (%.1f%%)\n", anomaly.DeviationSigma, anomaly.DeviationPercentage)
	fmt.Fprintf(&b, "- detected at: %s\n", anomaly.DetectedAt.UTC().Format(time.RFC3339))
	if len(anomaly.AffectedResources) > 0 {
		fmt.Fprintf(&b, "- affected resources: %s\n", strings.Join(anomaly.AffectedResources, ", "))
	}

	b.WriteString("\nEVIDENCE:\n")
	if len(bundle.Facts) == 0 {
		b.WriteString("(no contextual evidence was available)\n")
	}
	for i, f := range bundle.Facts {
		fmt.Fprintf(&b, "[%d] (%s) %s\n", i, f.Kind, f.Summary)
	}

	b.WriteString(`
Respond with exactly one JSON object and nothing else, in this shape:
{
  "primary_cause": "one-sentence explanation of the most likely root cause",
  "contributing_factors": ["secondary factor", "..."],
  "confidence": 0.0,
  "evidence_refs": [0],
  "recommendations": [
    {
      "action": "what to do",
      "rationale": "why this action",
      "priority": "critical|high|medium|low",
      "expected_impact": "what will happen",
      "implementation_steps": ["step"],
      "estimated_effort": "e.g. 1 hour",
      "risk_level": "low|medium|high"
    }
  ]
}
confidence must be your honest probability in [0,1] that primary_cause is correct.
evidence_refs must index into the numbered evidence list above.
`)

	return b.String()
}
