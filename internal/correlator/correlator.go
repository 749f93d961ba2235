// Package correlator scores recent change events against an anomaly and
// promotes a migration-correlated root cause when a change plausibly
// explains the deviation.
package correlator

import (
	"fmt"
	"strings"
	"time"

	"github.com/kiranshivaraju/anomalyzer/internal/config"
	"github.com/kiranshivaraju/anomalyzer/pkg/models"
)

// Correlator combines temporal proximity and semantic overlap into a
// correlation score per change event.
type Correlator struct {
	threshold float64
	lookback  time.Duration
}

// NewCorrelator creates a Correlator from the engine config. A non-positive
// lookback falls back to the default so temporal scoring never divides by zero.
func NewCorrelator(cfg config.EngineConfig) *Correlator {
	lookback := cfg.ChangeLookback
	if lookback <= 0 {
		lookback = 2 * time.Hour
	}
	return &Correlator{
		threshold: cfg.CorrelationThreshold,
		lookback:  lookback,
	}
}

// Correlate examines the bundle's recent-change facts against the anomaly.
// When the best-scoring change clears the threshold it returns a new
// migration-correlated candidate that supersedes the leading one; otherwise
// it returns the leading candidate unchanged. It never lowers the
// confidence of an existing candidate.
func (c *Correlator) Correlate(anomaly *models.Anomaly, bundle *models.EvidenceBundle, leading models.RootCause) models.RootCause {
	bestScore := 0.0
	bestIdx := -1
	var bestChange *models.ChangeEvent

	for i, f := range bundle.Facts {
		if f.Kind != models.FactRecentChange || f.Change == nil {
			continue
		}
		score := c.score(anomaly, f.Change)
		if score > bestScore {
			bestScore = score
			bestIdx = i
			bestChange = f.Change
		}
	}

	if bestChange == nil || bestScore < c.threshold {
		return leading
	}

	confidence := bestScore
	if leading.Confidence > confidence {
		// Supersession may not cost confidence.
		confidence = leading.Confidence
	}

	return models.RootCause{
		PrimaryCause: fmt.Sprintf("The %s deviation follows a %s to %s %s before detection and is most likely caused by it",
			anomaly.MetricName, bestChange.ChangeType, bestChange.Component,
			humanizeAge(anomaly.DetectedAt.Sub(bestChange.Timestamp))),
		ContributingFactors: append([]string{
			fmt.Sprintf("change description: %s", bestChange.Description),
		}, leading.ContributingFactors...),
		Confidence:       confidence,
		Provenance:       models.ProvenanceMigrationCorrelated,
		EvidenceRefs:     []int{bestIdx},
		CorrelatedChange: bestChange,
	}
}

// score combines temporal and semantic correlation: 0.6 × temporal + 0.4 ×
// semantic. Temporal decays linearly over the look-back window; semantic is
// tiered token overlap between the change and the anomaly's metric family
// and affected resources.
func (c *Correlator) score(anomaly *models.Anomaly, change *models.ChangeEvent) float64 {
	age := anomaly.DetectedAt.Sub(change.Timestamp)
	if age < 0 || age > c.lookback {
		return 0
	}
	temporal := 1 - age.Seconds()/c.lookback.Seconds()

	return 0.6*temporal + 0.4*semanticOverlap(anomaly, change)
}

// semanticOverlap returns 1.0 when the change's component matches an
// affected resource or the metric family exactly, 0.5 on partial token
// overlap with the change text, 0 otherwise.
func semanticOverlap(anomaly *models.Anomaly, change *models.ChangeEvent) float64 {
	component := strings.ToLower(change.Component)
	family := strings.ToLower(anomaly.MetricFamily())

	if component == family {
		return 1.0
	}
	for _, r := range anomaly.AffectedResources {
		if strings.EqualFold(r, change.Component) {
			return 1.0
		}
	}

	changeText := component + " " + strings.ToLower(change.Description)
	for _, token := range semanticTokens(anomaly) {
		if token != "" && strings.Contains(changeText, token) {
			return 0.5
		}
	}
	return 0
}

func semanticTokens(anomaly *models.Anomaly) []string {
	tokens := []string{
		strings.ToLower(anomaly.MetricFamily()),
		strings.ToLower(anomaly.MetricName),
	}
	for _, r := range anomaly.AffectedResources {
		tokens = append(tokens, strings.ToLower(r))
	}
	// Split compound metric names so "error_rate" also matches "error".
	var split []string
	for _, t := range tokens {
		split = append(split, strings.FieldsFunc(t, func(r rune) bool {
			return r == '_' || r == '-' || r == '.'
		})...)
	}
	return append(tokens, split...)
}

func humanizeAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "moments"
	case d < time.Hour:
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	default:
		return fmt.Sprintf("%.1f hours", d.Hours())
	}
}
