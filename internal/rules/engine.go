// Package rules implements the deterministic rule-based inference engine.
// It maps anomaly signal shape to root-cause candidates with fixed-formula
// confidence and serves as the fallback oracle when AI inference is
// unavailable. Identical inputs always yield identical output.
package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kiranshivaraju/anomalyzer/internal/config"
	"github.com/kiranshivaraju/anomalyzer/pkg/models"
)

// Engine applies category-specific heuristics to an anomaly and its
// evidence bundle. Safe for concurrent use; holds no mutable state.
type Engine struct {
	floor   float64
	ceiling float64
}

// NewEngine creates an Engine with the configured confidence bounds.
// The ceiling stays below full confidence so AI or change corroboration
// always has headroom to supersede a rule-based candidate.
func NewEngine(cfg config.EngineConfig) *Engine {
	return &Engine{
		floor:   cfg.RuleConfidenceFloor,
		ceiling: cfg.RuleConfidenceCeiling,
	}
}

// heuristic evaluates one failure pattern against the extracted signals.
// Returns nil when the pattern does not apply.
type heuristic func(e *Engine, anomaly *models.Anomaly, sig signals) *models.RootCause

// Infer returns the ordered root-cause candidate list, strongest first.
// Never returns an empty slice: the default low-confidence candidate is
// always present.
func (e *Engine) Infer(anomaly *models.Anomaly, bundle *models.EvidenceBundle) []models.RootCause {
	sig := extractSignals(bundle)

	var candidates []models.RootCause
	for _, h := range heuristicsFor(anomaly.AnomalyType) {
		if c := h(e, anomaly, sig); c != nil {
			candidates = append(candidates, *c)
		}
	}

	candidates = append(candidates, e.defaultCandidate(anomaly))

	// Stable sort keeps heuristic order deterministic for equal confidence.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	return candidates
}

// confidence computes the fixed formula: base for the matched pattern, a
// deviation term, and a small bonus per corroborating fact, capped at the
// configured ceiling.
func (e *Engine) confidence(base, sigma float64, corroborating int) float64 {
	deviation := sigma / 20
	if deviation > 0.25 {
		deviation = 0.25
	}
	if deviation < 0 {
		deviation = 0
	}
	c := base + deviation + 0.05*float64(corroborating)
	if c > e.ceiling {
		c = e.ceiling
	}
	if c < e.floor {
		c = e.floor
	}
	return c
}

// defaultCandidate is the explanation of last resort; the engine never
// returns less than this.
func (e *Engine) defaultCandidate(anomaly *models.Anomaly) models.RootCause {
	return models.RootCause{
		PrimaryCause: fmt.Sprintf("%s deviated %.1f standard deviations from baseline without a matching known failure pattern",
			anomaly.MetricName, anomaly.DeviationSigma),
		ContributingFactors: []string{"insufficient corroborating evidence for a specific cause"},
		Confidence:          e.floor,
		Provenance:          models.ProvenanceRuleBased,
	}
}

func heuristicsFor(t models.AnomalyType) []heuristic {
	switch t {
	case models.AnomalyTypeStability:
		return stabilityHeuristics
	case models.AnomalyTypePerformance:
		return performanceHeuristics
	case models.AnomalyTypeCost:
		return costHeuristics
	case models.AnomalyTypeResource:
		return resourceHeuristics
	default:
		return genericHeuristics
	}
}

// ---------------------------------------------------------------------------
// Signals — normalized data extracted from the evidence bundle
// ---------------------------------------------------------------------------

type relatedSignal struct {
	factIdx int
	metric  string
	delta   float64
	summary string
}

type signals struct {
	related      []relatedSignal
	changeIdxs   []int
	changeCount  int
	trendUpIdx   int // index of the sustained-upward-trend fact, -1 if absent
	exceedsPeak  int // index of the exceeds-historical-peak fact, -1 if absent
	historyFacts int
}

func extractSignals(bundle *models.EvidenceBundle) signals {
	sig := signals{trendUpIdx: -1, exceedsPeak: -1}
	for i, f := range bundle.Facts {
		switch f.Kind {
		case models.FactRelatedMetric:
			sig.related = append(sig.related, relatedSignal{
				factIdx: i,
				metric:  strings.ToLower(f.Metric),
				delta:   f.Delta,
				summary: f.Summary,
			})
		case models.FactRecentChange:
			sig.changeIdxs = append(sig.changeIdxs, i)
			sig.changeCount++
		case models.FactTemporalPattern:
			if strings.Contains(f.Summary, "upward trend") {
				sig.trendUpIdx = i
			}
		case models.FactHistoricalComparison:
			sig.historyFacts++
			if strings.Contains(f.Summary, "exceeds the historical peak") {
				sig.exceedsPeak = i
			}
		}
	}
	return sig
}

// relatedMoved returns signals whose metric name contains any of the given
// substrings and whose delta moved in the given direction.
func (s signals) relatedMoved(up bool, substrings ...string) []relatedSignal {
	var out []relatedSignal
	for _, r := range s.related {
		if up && r.delta <= 0 {
			continue
		}
		if !up && r.delta >= 0 {
			continue
		}
		for _, sub := range substrings {
			if strings.Contains(r.metric, sub) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Category heuristics
// ---------------------------------------------------------------------------

var stabilityHeuristics = []heuristic{
	ruleDependencyFailure,
	ruleChangeDestabilized,
	ruleResourceExhaustionCascade,
}

var performanceHeuristics = []heuristic{
	ruleLoadDrivenDegradation,
	ruleResourceSaturation,
	ruleGradualDegradation,
}

var costHeuristics = []heuristic{
	ruleResourceGrowth,
	ruleUncheckedCostTrend,
}

var resourceHeuristics = []heuristic{
	ruleResourceLeak,
	ruleLoadDrivenConsumption,
}

var genericHeuristics = []heuristic{
	ruleChangeDestabilized,
	ruleGradualDegradation,
}

func ruleDependencyFailure(e *Engine, anomaly *models.Anomaly, sig signals) *models.RootCause {
	matches := sig.relatedMoved(true, "error", "fail", "timeout", "5xx")
	if len(matches) == 0 {
		return nil
	}
	c := &models.RootCause{
		PrimaryCause: "Correlated error-rate spikes across the service family indicate a failing downstream dependency",
		Confidence:   e.confidence(0.45, anomaly.DeviationSigma, len(matches)),
		Provenance:   models.ProvenanceRuleBased,
	}
	for _, m := range matches {
		c.ContributingFactors = append(c.ContributingFactors, m.summary)
		c.EvidenceRefs = append(c.EvidenceRefs, m.factIdx)
	}
	return c
}

func ruleChangeDestabilized(e *Engine, anomaly *models.Anomaly, sig signals) *models.RootCause {
	if sig.changeCount == 0 {
		return nil
	}
	return &models.RootCause{
		PrimaryCause: fmt.Sprintf("A recent system change preceded the %s deviation and may have destabilized the affected components", anomaly.MetricName),
		ContributingFactors: []string{
			fmt.Sprintf("%d change event(s) recorded in the look-back window", sig.changeCount),
		},
		Confidence:   e.confidence(0.40, anomaly.DeviationSigma, sig.changeCount),
		Provenance:   models.ProvenanceRuleBased,
		EvidenceRefs: sig.changeIdxs,
	}
}

func ruleResourceExhaustionCascade(e *Engine, anomaly *models.Anomaly, sig signals) *models.RootCause {
	matches := sig.relatedMoved(true, "cpu", "memory", "disk", "connection")
	if len(matches) == 0 {
		return nil
	}
	c := &models.RootCause{
		PrimaryCause: "Resource exhaustion in the underlying infrastructure is cascading into service instability",
		Confidence:   e.confidence(0.35, anomaly.DeviationSigma, len(matches)),
		Provenance:   models.ProvenanceRuleBased,
	}
	for _, m := range matches {
		c.ContributingFactors = append(c.ContributingFactors, m.summary)
		c.EvidenceRefs = append(c.EvidenceRefs, m.factIdx)
	}
	return c
}

func ruleLoadDrivenDegradation(e *Engine, anomaly *models.Anomaly, sig signals) *models.RootCause {
	matches := sig.relatedMoved(true, "request", "traffic", "throughput", "qps", "rps")
	if len(matches) == 0 {
		return nil
	}
	c := &models.RootCause{
		PrimaryCause: "Increased traffic is driving the performance degradation; the service is operating beyond its provisioned capacity",
		Confidence:   e.confidence(0.45, anomaly.DeviationSigma, len(matches)),
		Provenance:   models.ProvenanceRuleBased,
	}
	for _, m := range matches {
		c.ContributingFactors = append(c.ContributingFactors, m.summary)
		c.EvidenceRefs = append(c.EvidenceRefs, m.factIdx)
	}
	return c
}

func ruleResourceSaturation(e *Engine, anomaly *models.Anomaly, sig signals) *models.RootCause {
	matches := sig.relatedMoved(true, "cpu", "memory", "io", "queue")
	if len(matches) == 0 {
		return nil
	}
	c := &models.RootCause{
		PrimaryCause: "Saturated compute resources are throttling request processing",
		Confidence:   e.confidence(0.40, anomaly.DeviationSigma, len(matches)),
		Provenance:   models.ProvenanceRuleBased,
	}
	for _, m := range matches {
		c.ContributingFactors = append(c.ContributingFactors, m.summary)
		c.EvidenceRefs = append(c.EvidenceRefs, m.factIdx)
	}
	return c
}

func ruleGradualDegradation(e *Engine, anomaly *models.Anomaly, sig signals) *models.RootCause {
	if sig.trendUpIdx < 0 {
		return nil
	}
	return &models.RootCause{
		PrimaryCause: fmt.Sprintf("%s has been degrading gradually across the comparison window, pointing at accumulating state rather than a step change", anomaly.MetricName),
		ContributingFactors: []string{
			"sustained upward trend in the historical comparison window",
		},
		Confidence:   e.confidence(0.35, anomaly.DeviationSigma, 1),
		Provenance:   models.ProvenanceRuleBased,
		EvidenceRefs: []int{sig.trendUpIdx},
	}
}

func ruleResourceGrowth(e *Engine, anomaly *models.Anomaly, sig signals) *models.RootCause {
	matches := sig.relatedMoved(true, "count", "instance", "node", "replica", "volume")
	if len(matches) == 0 {
		return nil
	}
	c := &models.RootCause{
		PrimaryCause: "Resource-count growth is driving the cost increase; provisioned capacity has expanded beyond workload needs",
		Confidence:   e.confidence(0.45, anomaly.DeviationSigma, len(matches)),
		Provenance:   models.ProvenanceRuleBased,
	}
	for _, m := range matches {
		c.ContributingFactors = append(c.ContributingFactors, m.summary)
		c.EvidenceRefs = append(c.EvidenceRefs, m.factIdx)
	}
	return c
}

func ruleUncheckedCostTrend(e *Engine, anomaly *models.Anomaly, sig signals) *models.RootCause {
	if sig.trendUpIdx < 0 {
		return nil
	}
	return &models.RootCause{
		PrimaryCause: "Spend has been climbing steadily across the comparison window, suggesting unchecked growth rather than a one-off event",
		ContributingFactors: []string{
			"sustained upward trend in the historical comparison window",
		},
		Confidence:   e.confidence(0.35, anomaly.DeviationSigma, 1),
		Provenance:   models.ProvenanceRuleBased,
		EvidenceRefs: []int{sig.trendUpIdx},
	}
}

func ruleResourceLeak(e *Engine, anomaly *models.Anomaly, sig signals) *models.RootCause {
	if sig.trendUpIdx < 0 {
		return nil
	}
	return &models.RootCause{
		PrimaryCause: fmt.Sprintf("Monotonic growth in %s is characteristic of a resource leak", anomaly.MetricName),
		ContributingFactors: []string{
			"sustained upward trend in the historical comparison window",
			"no corresponding traffic increase would explain the growth",
		},
		Confidence:   e.confidence(0.45, anomaly.DeviationSigma, 1),
		Provenance:   models.ProvenanceRuleBased,
		EvidenceRefs: []int{sig.trendUpIdx},
	}
}

func ruleLoadDrivenConsumption(e *Engine, anomaly *models.Anomaly, sig signals) *models.RootCause {
	matches := sig.relatedMoved(true, "request", "traffic", "throughput")
	if len(matches) == 0 {
		return nil
	}
	c := &models.RootCause{
		PrimaryCause: "Resource consumption is tracking increased load rather than leaking",
		Confidence:   e.confidence(0.40, anomaly.DeviationSigma, len(matches)),
		Provenance:   models.ProvenanceRuleBased,
	}
	for _, m := range matches {
		c.ContributingFactors = append(c.ContributingFactors, m.summary)
		c.EvidenceRefs = append(c.EvidenceRefs, m.factIdx)
	}
	return c
}
