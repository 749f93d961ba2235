// Package mock provides AIProvider fakes for exercising the adapter and
// orchestrator fallback paths without a live backend.
package mock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kiranshivaraju/anomalyzer/internal/ai"
	"github.com/kiranshivaraju/anomalyzer/pkg/models"
)

// MockProvider satisfies models.AIProvider for testing.
type MockProvider struct {
	Name_     string
	InferFunc func(ctx context.Context, req models.InferenceRequest) (models.InferenceResponse, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Infer(ctx context.Context, req models.InferenceRequest) (models.InferenceResponse, error) {
	if m.InferFunc != nil {
		return m.InferFunc(ctx, req)
	}
	return models.InferenceResponse{}, nil
}

// NewMockProvider returns a MockProvider answering with a fixed confident
// inference in the adapter's expected JSON shape.
func NewMockProvider() *MockProvider {
	return NewConfidentProvider(0.85)
}

// NewConfidentProvider returns a MockProvider answering with the given
// confidence.
func NewConfidentProvider(confidence float64) *MockProvider {
	return &MockProvider{
		Name_: "mock",
		InferFunc: func(_ context.Context, _ models.InferenceRequest) (models.InferenceResponse, error) {
			out := map[string]any{
				"primary_cause":        "Simulated root cause from mock provider",
				"contributing_factors": []string{"simulated contributing factor"},
				"confidence":           confidence,
				"evidence_refs":        []int{0},
				"recommendations": []map[string]any{{
					"action":          "Check application logs for more context",
					"rationale":       "Mock rationale",
					"priority":        "medium",
					"expected_impact": "Mock impact",
					"risk_level":      "low",
				}},
			}
			b, _ := json.Marshal(out)
			return models.InferenceResponse{Text: string(b), Model: "mock-v1"}, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		InferFunc: func(_ context.Context, _ models.InferenceRequest) (models.InferenceResponse, error) {
			return models.InferenceResponse{}, err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		InferFunc: func(ctx context.Context, _ models.InferenceRequest) (models.InferenceResponse, error) {
			<-ctx.Done()
			return models.InferenceResponse{}, fmt.Errorf("%w: %v", ai.ErrInferenceTimeout, ctx.Err())
		},
	}
}

// NewMalformedProvider returns a MockProvider whose response cannot be
// parsed into the root-cause shape.
func NewMalformedProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-malformed",
		InferFunc: func(_ context.Context, _ models.InferenceRequest) (models.InferenceResponse, error) {
			return models.InferenceResponse{Text: "The root cause is probably a deployment.", Model: "mock-v1"}, nil
		},
	}
}

// Compile-time check that MockProvider implements AIProvider.
var _ models.AIProvider = (*MockProvider)(nil)
