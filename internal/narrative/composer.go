// Package narrative renders a structured analysis into the five-part
// plain-language summary. Pure: all five fields are always populated, even
// from sparse input.
package narrative

import (
	"fmt"
	"strings"

	"github.com/kiranshivaraju/anomalyzer/pkg/models"
)

// Compose builds the human-readable summary from the analysis-in-progress.
func Compose(anomaly *models.Anomaly, rootCause models.RootCause, recs []models.Recommendation) models.HumanReadableSummary {
	return models.HumanReadableSummary{
		WhatHappened:                  whatHappened(anomaly),
		WhyItHappened:                 whyItHappened(rootCause),
		WhatIsTheImpact:               impact(anomaly),
		WhatImprovementsCanBeMade:     improvements(recs),
		EstimatedBenefitIfImplemented: benefit(anomaly, recs),
	}
}

func whatHappened(a *models.Anomaly) string {
	direction := "rose"
	if a.CurrentValue < a.BaselineValue {
		direction = "dropped"
	}
	return fmt.Sprintf("The %s metric %s to %.2f against an expected baseline of %.2f, a deviation of %.1f standard deviations (%.0f%%). This was classified as a %s severity %s anomaly.",
		a.MetricName, direction, a.CurrentValue, a.BaselineValue,
		a.DeviationSigma, a.DeviationPercentage, a.Severity, a.AnomalyType)
}

func whyItHappened(rc models.RootCause) string {
	if rc.PrimaryCause == "" {
		return "The cause could not be determined from the available evidence."
	}
	s := rc.PrimaryCause
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	if rc.CorrelatedChange != nil {
		s += fmt.Sprintf(" The analysis correlated this with the recorded %s to %s.",
			rc.CorrelatedChange.ChangeType, rc.CorrelatedChange.Component)
	}
	if len(rc.ContributingFactors) > 0 {
		s += " Contributing factors: " + strings.Join(rc.ContributingFactors, "; ") + "."
	}
	return fmt.Sprintf("%s (confidence: %.0f%%, via %s analysis)", s, rc.Confidence*100, rc.Provenance)
}

func impact(a *models.Anomaly) string {
	var base string
	switch a.AnomalyType {
	case models.AnomalyTypeStability:
		base = "Users may be experiencing failed or degraded requests while the error condition persists."
	case models.AnomalyTypePerformance:
		base = "Users are likely seeing slower responses, and sustained load at this level risks queueing and timeouts."
	case models.AnomalyTypeCost:
		base = "Spend is running above the expected level; the overage compounds until addressed."
	case models.AnomalyTypeResource:
		base = "The affected components are consuming more than planned; continued growth risks exhaustion and service disruption."
	default:
		base = "Operational impact depends on the affected metric's role; the deviation warrants investigation."
	}
	if len(a.AffectedResources) > 0 {
		base += " Affected: " + strings.Join(a.AffectedResources, ", ") + "."
	}
	return base
}

func improvements(recs []models.Recommendation) string {
	if len(recs) == 0 {
		return "No specific improvements were identified; review the affected components manually."
	}
	actions := make([]string, 0, len(recs))
	for i, r := range recs {
		actions = append(actions, fmt.Sprintf("%d) %s", i+1, r.Action))
	}
	return "Recommended actions, in priority order: " + strings.Join(actions, "; ") + "."
}

func benefit(a *models.Anomaly, recs []models.Recommendation) string {
	switch a.AnomalyType {
	case models.AnomalyTypeStability:
		return "Implementing these changes should restore the error rate to baseline and contain similar failures in the future, improving overall availability."
	case models.AnomalyTypePerformance:
		return "Implementing these changes should bring response times back to baseline and provide headroom against further load growth."
	case models.AnomalyTypeCost:
		for _, r := range recs {
			if r.CostImpact != "" {
				return fmt.Sprintf("Implementing these changes should return spend to the expected level; the largest lever is %s.", r.CostImpact)
			}
		}
		return "Implementing these changes should return spend to the expected level."
	case models.AnomalyTypeResource:
		return "Implementing these changes should stop the abnormal consumption growth and prevent resource exhaustion."
	default:
		return "Implementing these changes should return the metric to its expected range and reduce recurrence risk."
	}
}
