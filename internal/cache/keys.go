package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// AnalysisByAnomalyKey caches the id of the most recent analysis computed
// for an anomaly, so a re-submitted anomaly can be answered from storage.
func AnalysisByAnomalyKey(tenantID uuid.UUID, anomalyID string) string {
	return fmt.Sprintf("analysis:anomaly:%s:%s", tenantID, anomalyID)
}

// FalsePositiveRateKey caches the windowed false-positive rate per tenant.
func FalsePositiveRateKey(tenantID uuid.UUID, window string) string {
	return fmt.Sprintf("fprate:%s:%s", tenantID, window)
}

// RateLimitKey tracks request counts per API key prefix.
func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
