// Package recommend maps anomaly categories to fixed remediation tables.
// Pure: no external calls, deterministic output, never an empty list.
package recommend

import (
	"github.com/kiranshivaraju/anomalyzer/pkg/models"
)

// Generate returns the ordered recommendation list for the anomaly's
// category. Severity modulates priority but not the action set; an
// unrecognized category degrades to the generic set.
func Generate(anomaly *models.Anomaly, rootCause models.RootCause) []models.Recommendation {
	table, ok := tables[anomaly.AnomalyType]
	if !ok {
		table = genericTable
	}

	recs := make([]models.Recommendation, len(table))
	copy(recs, table)

	for i := range recs {
		recs[i].Priority = modulate(recs[i].Priority, anomaly.Severity)
	}
	return recs
}

// modulate raises a base priority one step for critical anomalies and
// lowers it one step for low/info anomalies.
func modulate(base models.Severity, severity models.Severity) models.Severity {
	switch severity {
	case models.SeverityCritical:
		return raise(base)
	case models.SeverityLow, models.SeverityInfo:
		return lower(base)
	default:
		return base
	}
}

func raise(s models.Severity) models.Severity {
	switch s {
	case models.SeverityHigh:
		return models.SeverityCritical
	case models.SeverityMedium:
		return models.SeverityHigh
	case models.SeverityLow:
		return models.SeverityMedium
	default:
		return s
	}
}

func lower(s models.Severity) models.Severity {
	switch s {
	case models.SeverityCritical:
		return models.SeverityHigh
	case models.SeverityHigh:
		return models.SeverityMedium
	case models.SeverityMedium:
		return models.SeverityLow
	default:
		return s
	}
}

var tables = map[models.AnomalyType][]models.Recommendation{
	models.AnomalyTypeStability: {
		{
			Priority:       models.SeverityHigh,
			Action:         "Add circuit breakers around failing downstream calls",
			Rationale:      "Isolating the failing dependency stops errors from cascading through the call graph",
			ExpectedImpact: "Error rate contained to the unhealthy dependency instead of spreading service-wide",
			ImplementationSteps: []string{
				"Identify the dependency with the highest error contribution",
				"Wrap its client calls in a circuit breaker with a conservative trip threshold",
				"Define a fallback response for tripped-open state",
			},
			EstimatedEffort: "1-2 days",
			RiskLevel:       "low",
		},
		{
			Priority:       models.SeverityHigh,
			Action:         "Introduce retries with exponential backoff and jitter for transient failures",
			Rationale:      "Transient faults resolve themselves; immediate retries amplify load on a struggling dependency",
			ExpectedImpact: "Transient error spikes absorbed without user-visible failures",
			ImplementationSteps: []string{
				"Classify errors into retryable and non-retryable",
				"Apply bounded retries with backoff to the retryable class",
			},
			EstimatedEffort: "4 hours",
			RiskLevel:       "low",
		},
		{
			Priority:       models.SeverityMedium,
			Action:         "Review error handling on the affected code paths",
			Rationale:      "Unhandled error paths turn recoverable faults into outages",
			ExpectedImpact: "Faults degrade gracefully instead of failing requests",
			EstimatedEffort: "1 day",
			RiskLevel:       "low",
		},
	},
	models.AnomalyTypePerformance: {
		{
			Priority:       models.SeverityHigh,
			Action:         "Profile the hot path and optimize the slowest operations",
			Rationale:      "Latency regressions concentrate in a few operations; profiling finds them directly",
			ExpectedImpact: "Response times return toward baseline",
			ImplementationSteps: []string{
				"Capture a CPU and allocation profile under production-like load",
				"Optimize the top offenders before anything else",
			},
			EstimatedEffort: "2-3 days",
			RiskLevel:       "medium",
		},
		{
			Priority:       models.SeverityMedium,
			Action:         "Add caching for repeated expensive lookups",
			Rationale:      "Repeated identical work is the cheapest latency to remove",
			ExpectedImpact: "Reduced load on backing stores and lower p95 latency",
			EstimatedEffort: "1 day",
			RiskLevel:       "medium",
		},
		{
			Priority:       models.SeverityMedium,
			Action:         "Scale out the affected service or raise its resource allocation",
			Rationale:      "If demand grew, capacity must follow until optimization lands",
			ExpectedImpact: "Headroom restored while the underlying regression is addressed",
			EstimatedEffort: "2 hours",
			RiskLevel:       "low",
		},
	},
	models.AnomalyTypeCost: {
		{
			Priority:       models.SeverityHigh,
			Action:         "Right-size over-provisioned resources",
			Rationale:      "Sustained low utilization means capacity is paid for but unused",
			ExpectedImpact: "Immediate reduction in run-rate spend",
			ImplementationSteps: []string{
				"List resources with utilization under 40% for the past two weeks",
				"Step instance sizes down one tier and observe",
			},
			EstimatedEffort: "1 day",
			RiskLevel:       "medium",
			CostImpact:      "typically 20-40% of the affected resources' cost",
		},
		{
			Priority:       models.SeverityMedium,
			Action:         "Add autoscaling schedules aligned to traffic patterns",
			Rationale:      "Static capacity sized for peak wastes money off-peak",
			ExpectedImpact: "Capacity tracks demand instead of peak",
			EstimatedEffort: "1-2 days",
			RiskLevel:       "low",
			CostImpact:      "off-peak savings proportional to the peak/trough ratio",
		},
		{
			Priority:       models.SeverityMedium,
			Action:         "Identify and remove orphaned resources",
			Rationale:      "Unattached volumes, idle load balancers, and stale snapshots accrue silently",
			ExpectedImpact: "One-time cleanup plus a recurring saving",
			EstimatedEffort: "4 hours",
			RiskLevel:       "low",
		},
	},
	models.AnomalyTypeResource: {
		{
			Priority:       models.SeverityHigh,
			Action:         "Investigate the growth pattern for a leak",
			Rationale:      "Monotonic resource growth without matching load growth is a leak until proven otherwise",
			ExpectedImpact: "Leak found and fixed before it exhausts the host",
			ImplementationSteps: []string{
				"Capture heap or descriptor profiles at intervals and diff them",
				"Correlate growth onset with recent releases",
			},
			EstimatedEffort: "1-3 days",
			RiskLevel:       "low",
		},
		{
			Priority:       models.SeverityHigh,
			Action:         "Set or review resource limits and alerts on the affected components",
			Rationale:      "Limits turn slow exhaustion into a contained, observable failure",
			ExpectedImpact: "Exhaustion cannot take neighboring workloads down",
			EstimatedEffort: "2 hours",
			RiskLevel:       "low",
		},
		{
			Priority:       models.SeverityMedium,
			Action:         "Add capacity if consumption legitimately tracks load",
			Rationale:      "Genuine growth needs capacity, not tuning",
			ExpectedImpact: "Restored headroom on the affected resource",
			EstimatedEffort: "2 hours",
			RiskLevel:       "low",
		},
	},
}

var genericTable = []models.Recommendation{
	{
		Priority:       models.SeverityMedium,
		Action:         "Review recent changes to the affected components",
		Rationale:      "Most anomalies trace back to something that changed",
		ExpectedImpact: "Likely cause identified or ruled out quickly",
		EstimatedEffort: "2 hours",
		RiskLevel:       "low",
	},
	{
		Priority:       models.SeverityMedium,
		Action:         "Increase observability on the deviating metric",
		Rationale:      "A metric that deviated once without explanation will do it again",
		ExpectedImpact: "Faster diagnosis on recurrence",
		EstimatedEffort: "4 hours",
		RiskLevel:       "low",
	},
}
