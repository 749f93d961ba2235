// Package analyzer sequences one analysis run: gather evidence, infer a
// root cause (AI preferred, rule engine fallback), correlate with recent
// changes, generate recommendations, compose the narrative, and assemble
// the final Analysis. It owns the single AI→rule fallback decision point.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/anomalyzer/internal/ai"
	"github.com/kiranshivaraju/anomalyzer/internal/cache"
	"github.com/kiranshivaraju/anomalyzer/internal/narrative"
	"github.com/kiranshivaraju/anomalyzer/internal/recommend"
	"github.com/kiranshivaraju/anomalyzer/internal/store"
	"github.com/kiranshivaraju/anomalyzer/pkg/models"
)

// ErrNoExplanation is returned when the rule engine yields zero candidates.
// The engine always emits a default candidate, so reaching this indicates a
// broken invariant and surfaces as a fatal error.
var ErrNoExplanation = errors.New("rule engine produced no candidates")

// EvidenceGatherer builds the per-run evidence bundle. Never fails.
type EvidenceGatherer interface {
	Gather(ctx context.Context, anomaly *models.Anomaly) *models.EvidenceBundle
}

// Inferencer is the AI inference path.
type Inferencer interface {
	Infer(ctx context.Context, anomaly *models.Anomaly, bundle *models.EvidenceBundle) (*ai.Result, error)
	ProviderName() string
}

// RuleEngine is the deterministic fallback path.
type RuleEngine interface {
	Infer(anomaly *models.Anomaly, bundle *models.EvidenceBundle) []models.RootCause
}

// ChangeCorrelator folds change events into the leading candidate.
type ChangeCorrelator interface {
	Correlate(anomaly *models.Anomaly, bundle *models.EvidenceBundle, leading models.RootCause) models.RootCause
}

// Service runs analyses and owns the feedback and stats operations.
type Service struct {
	gatherer       EvidenceGatherer
	adapter        Inferencer
	rules          RuleEngine
	correlator     ChangeCorrelator
	store          store.Store
	cache          cache.Cache
	persistTimeout time.Duration
}

// NewService wires the pipeline components together.
func NewService(g EvidenceGatherer, a Inferencer, r RuleEngine, c ChangeCorrelator,
	st store.Store, ca cache.Cache, persistTimeout time.Duration) *Service {
	return &Service{
		gatherer:       g,
		adapter:        a,
		rules:          r,
		correlator:     c,
		store:          st,
		cache:          ca,
		persistTimeout: persistTimeout,
	}
}

// AnalyzeAnomaly runs the full pipeline for one anomaly and returns a
// complete Analysis. Failures in individual steps degrade that step's
// contribution; the only fatal condition is the ErrNoExplanation invariant.
func (s *Service) AnalyzeAnomaly(ctx context.Context, tenantID uuid.UUID, anomaly *models.Anomaly) (*models.Analysis, error) {
	start := time.Now()

	// A re-submitted anomaly id is answered from storage while the pointer
	// written after the previous persist is still live.
	if prior := s.priorAnalysis(ctx, tenantID, anomaly.AnomalyID); prior != nil {
		return prior, nil
	}

	// 1. Gather: always proceeds; partial evidence is valid evidence.
	bundle := s.gatherer.Gather(ctx, anomaly)

	// The rule engine is pure and cheap; its candidates double as the
	// fallback result and the alternate-cause list.
	ruleCandidates := s.rules.Infer(anomaly, bundle)
	if len(ruleCandidates) == 0 {
		return nil, ErrNoExplanation
	}

	// 2. Infer: the single fallback decision point.
	var (
		leading    models.RootCause
		alternates []models.RootCause
		aiRecs     []models.Recommendation
		provider   = s.adapter.ProviderName()
		model      string
	)
	aiResult, err := s.adapter.Infer(ctx, anomaly, bundle)
	if err != nil {
		slog.Info("ai inference unavailable, falling back to rule engine",
			"anomaly_id", anomaly.AnomalyID,
			"provider", provider,
			"reason", err,
		)
		provider = "rule-engine"
		idx := models.SelectPrimary(ruleCandidates)
		leading = ruleCandidates[idx]
		alternates = append(append([]models.RootCause{}, ruleCandidates[:idx]...), ruleCandidates[idx+1:]...)
	} else {
		leading = aiResult.RootCause
		aiRecs = aiResult.Recommendations
		model = aiResult.Model
		alternates = ruleCandidates
	}

	// 3. Correlate: may supersede the leading candidate, never weakens it.
	// Supersession follows the confidence-then-provenance ordering, so a
	// no-match pass (correlated == leading) never displaces anything.
	correlated := s.correlator.Correlate(anomaly, bundle, leading)
	if correlated.Supersedes(leading) {
		alternates = append([]models.RootCause{leading}, alternates...)
		leading = correlated
	}

	resolveEvidence(&leading, bundle)
	for i := range alternates {
		resolveEvidence(&alternates[i], bundle)
	}

	// 4. Recommend: the category table is canonical; AI extras follow.
	recommendations := recommend.Generate(anomaly, leading)
	recommendations = appendExtra(recommendations, aiRecs)

	// 5. Narrate.
	summary := narrative.Compose(anomaly, leading, recommendations)

	// 6. Assemble.
	analysis := &models.Analysis{
		ID:              uuid.New(),
		TenantID:        tenantID,
		Anomaly:         *anomaly,
		RootCause:       leading,
		AlternateCauses: alternates,
		Recommendations: recommendations,
		Summary:         summary,
		Provider:        provider,
		Model:           model,
		AnalyzedAt:      start.UTC(),
		DurationMS:      time.Since(start).Milliseconds(),
		CreatedAt:       time.Now().UTC(),
	}

	s.persist(ctx, analysis)

	return analysis, nil
}

// priorAnalysis resolves the anomaly-id pointer left by a previous persist.
// Any cache miss, stale pointer, or store error falls through to a fresh run.
func (s *Service) priorAnalysis(ctx context.Context, tenantID uuid.UUID, anomalyID string) *models.Analysis {
	raw, ok, err := s.cache.Get(ctx, cache.AnalysisByAnomalyKey(tenantID, anomalyID))
	if err != nil || !ok {
		return nil
	}
	id, err := uuid.Parse(string(raw))
	if err != nil {
		return nil
	}
	analysis, err := s.store.GetAnalysis(ctx, id, tenantID)
	if err != nil {
		return nil
	}
	slog.Info("answering re-submitted anomaly from storage",
		"anomaly_id", anomalyID,
		"analysis_id", id,
	)
	return analysis
}

// persist writes the analysis under its own bound. A store failure is a
// warning on the returned analysis, never a failure of the analysis itself.
func (s *Service) persist(ctx context.Context, analysis *models.Analysis) {
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()

	if err := s.store.CreateAnalysis(persistCtx, analysis); err != nil {
		slog.Error("persisting analysis failed",
			"analysis_id", analysis.ID,
			"anomaly_id", analysis.Anomaly.AnomalyID,
			"error", err,
		)
		analysis.Warnings = append(analysis.Warnings,
			fmt.Sprintf("analysis computed but not persisted: %v", err))
		return
	}

	// Best-effort pointer for answering re-submitted anomalies from storage.
	_ = s.cache.Set(persistCtx,
		cache.AnalysisByAnomalyKey(analysis.TenantID, analysis.Anomaly.AnomalyID),
		[]byte(analysis.ID.String()), 24*time.Hour)
}

// MarkFalsePositive sets the feedback flag on a stored analysis.
// Idempotent: repeated calls leave the flag set.
func (s *Service) MarkFalsePositive(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	if err := s.store.MarkFalsePositive(ctx, id, tenantID); err != nil {
		return err
	}
	// The cached rate is stale now; drop it for the common windows.
	for _, window := range []time.Duration{time.Hour, 24 * time.Hour, 168 * time.Hour} {
		_ = s.cache.Delete(ctx, cache.FalsePositiveRateKey(tenantID, window.String()))
	}
	return nil
}

// FalsePositiveStats is the windowed feedback aggregate.
type FalsePositiveStats struct {
	Flagged int     `json:"flagged"`
	Total   int     `json:"total"`
	Rate    float64 `json:"rate"`
}

// FalsePositiveRate computes flagged/total over the window, cached briefly.
func (s *Service) FalsePositiveRate(ctx context.Context, tenantID uuid.UUID, window time.Duration) (FalsePositiveStats, error) {
	key := cache.FalsePositiveRateKey(tenantID, window.String())
	if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var stats FalsePositiveStats
		if json.Unmarshal(raw, &stats) == nil {
			return stats, nil
		}
	}

	flagged, total, err := s.store.FalsePositiveRate(ctx, tenantID, time.Now().UTC().Add(-window))
	if err != nil {
		return FalsePositiveStats{}, err
	}

	stats := FalsePositiveStats{Flagged: flagged, Total: total}
	if total > 0 {
		// Round to avoid noisy float tails in API output.
		rate, _ := strconv.ParseFloat(fmt.Sprintf("%.4f", float64(flagged)/float64(total)), 64)
		stats.Rate = rate
	}

	if raw, err := json.Marshal(stats); err == nil {
		_ = s.cache.Set(ctx, key, raw, time.Minute)
	}
	return stats, nil
}

// resolveEvidence fills in the human-readable fact summaries referenced by
// a candidate's evidence indices.
func resolveEvidence(rc *models.RootCause, bundle *models.EvidenceBundle) {
	rc.Evidence = rc.Evidence[:0]
	for _, ref := range rc.EvidenceRefs {
		if ref >= 0 && ref < len(bundle.Facts) {
			rc.Evidence = append(rc.Evidence, bundle.Facts[ref].Summary)
		}
	}
}

// appendExtra appends AI-supplied recommendations whose action is not
// already covered by the canonical table.
func appendExtra(recs []models.Recommendation, extra []models.Recommendation) []models.Recommendation {
	seen := make(map[string]bool, len(recs))
	for _, r := range recs {
		seen[r.Action] = true
	}
	for _, r := range extra {
		if !seen[r.Action] {
			recs = append(recs, r)
			seen[r.Action] = true
		}
	}
	return recs
}
