package models

import "time"

// validAnomaly returns a structurally valid anomaly for mutation in tests.
func validAnomaly() Anomaly {
	return Anomaly{
		AnomalyID:           "anom-123",
		DetectedAt:          time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
		MetricName:          "error_rate",
		MetricType:          "error",
		CurrentValue:        0.12,
		BaselineValue:       0.02,
		DeviationSigma:      5.2,
		DeviationPercentage: 500,
		AnomalyType:         AnomalyTypeStability,
		Severity:            SeverityHigh,
		Confidence:          0.9,
	}
}

func timeZero() time.Time { return time.Time{} }
