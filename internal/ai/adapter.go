// Package ai adapts the external language-model backend to the engine's
// root-cause shape. The adapter owns prompt rendering, timeout and retry
// bounds, and parsing/validation of backend output. On any failure it
// signals unavailable via sentinel errors; the orchestrator alone decides
// to fall back.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kiranshivaraju/anomalyzer/internal/config"
	"github.com/kiranshivaraju/anomalyzer/pkg/models"
)

// Result is the parsed, validated output of an AI inference.
type Result struct {
	RootCause       models.RootCause
	Recommendations []models.Recommendation
	Model           string
}

// Adapter wraps an AIProvider with the engine's inference contract.
type Adapter struct {
	provider        models.AIProvider
	timeout         time.Duration
	maxRetries      int
	maxTokens       int
	confidenceFloor float64
}

// NewAdapter creates an Adapter around the given provider.
func NewAdapter(provider models.AIProvider, cfg config.AIConfig) *Adapter {
	return &Adapter{
		provider:        provider,
		timeout:         cfg.InferenceTimeout,
		maxRetries:      cfg.MaxRetries,
		maxTokens:       cfg.MaxTokens,
		confidenceFloor: cfg.ConfidenceFloor,
	}
}

// ProviderName returns the underlying provider identifier.
func (a *Adapter) ProviderName() string {
	return a.provider.Name()
}

// Infer submits the anomaly and evidence to the backend and parses the
// response. Transport errors and timeouts are retried up to the configured
// bound; parse failures and low confidence are not, since a malformed or
// hedged answer is a property of the model, not the connection.
func (a *Adapter) Infer(ctx context.Context, anomaly *models.Anomaly, bundle *models.EvidenceBundle) (*Result, error) {
	prompt := BuildPrompt(anomaly, bundle)
	req := models.InferenceRequest{Prompt: prompt, MaxTokens: a.maxTokens}

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrInferenceTimeout, ctx.Err())
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, a.timeout)
		resp, err := a.provider.Infer(attemptCtx, req)
		cancel()

		if err != nil {
			lastErr = classifyProviderError(err)
			slog.Warn("ai inference attempt failed",
				"provider", a.provider.Name(),
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		result, err := a.parse(resp, len(bundle.Facts))
		if err != nil {
			// A malformed response is reported, never repaired into data.
			return nil, err
		}

		if result.RootCause.Confidence < a.confidenceFloor {
			return nil, fmt.Errorf("%w: %.2f < %.2f",
				ErrLowConfidence, result.RootCause.Confidence, a.confidenceFloor)
		}
		return result, nil
	}

	if lastErr == nil {
		lastErr = ErrProviderUnavailable
	}
	return nil, lastErr
}

// inferenceOutput is the wire shape the prompt asks the backend for.
type inferenceOutput struct {
	PrimaryCause        string    `json:"primary_cause"`
	ContributingFactors []string  `json:"contributing_factors"`
	Confidence          *float64  `json:"confidence"`
	EvidenceRefs        []int     `json:"evidence_refs"`
	Recommendations     []recItem `json:"recommendations"`
}

type recItem struct {
	Action              string   `json:"action"`
	Rationale           string   `json:"rationale"`
	Priority            string   `json:"priority"`
	ExpectedImpact      string   `json:"expected_impact"`
	ImplementationSteps []string `json:"implementation_steps"`
	EstimatedEffort     string   `json:"estimated_effort"`
	RiskLevel           string   `json:"risk_level"`
}

// parse validates backend text into a Result. factCount bounds evidence
// references; out-of-range refs are dropped rather than failing the parse.
func (a *Adapter) parse(resp models.InferenceResponse, factCount int) (*Result, error) {
	raw := extractJSONObject(resp.Text)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrInvalidResponse)
	}

	var out inferenceOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if strings.TrimSpace(out.PrimaryCause) == "" {
		return nil, fmt.Errorf("%w: missing primary_cause", ErrInvalidResponse)
	}
	if out.Confidence == nil {
		return nil, fmt.Errorf("%w: missing confidence", ErrInvalidResponse)
	}

	confidence := *out.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	var refs []int
	for _, r := range out.EvidenceRefs {
		if r >= 0 && r < factCount {
			refs = append(refs, r)
		}
	}

	result := &Result{
		RootCause: models.RootCause{
			PrimaryCause:        strings.TrimSpace(out.PrimaryCause),
			ContributingFactors: out.ContributingFactors,
			Confidence:          confidence,
			Provenance:          models.ProvenanceAIInferred,
			EvidenceRefs:        refs,
		},
		Model: resp.Model,
	}

	for _, r := range out.Recommendations {
		if strings.TrimSpace(r.Action) == "" {
			continue
		}
		result.Recommendations = append(result.Recommendations, models.Recommendation{
			Priority:            parsePriority(r.Priority),
			Action:              r.Action,
			Rationale:           r.Rationale,
			ExpectedImpact:      r.ExpectedImpact,
			ImplementationSteps: r.ImplementationSteps,
			EstimatedEffort:     r.EstimatedEffort,
			RiskLevel:           r.RiskLevel,
		})
	}

	return result, nil
}

func parsePriority(s string) models.Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return models.SeverityCritical
	case "high":
		return models.SeverityHigh
	case "low":
		return models.SeverityLow
	default:
		return models.SeverityMedium
	}
}

// extractJSONObject returns the first balanced top-level JSON object in s,
// tolerating markdown fences and surrounding prose. Returns "" when none
// exists.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}

// classifyProviderError maps provider failures to the adapter's sentinels.
func classifyProviderError(err error) error {
	if errors.Is(err, ErrInferenceTimeout) || errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrInvalidResponse) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}
