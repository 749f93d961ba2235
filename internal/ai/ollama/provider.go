// Package ollama implements the AI provider interface against a local
// Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kiranshivaraju/anomalyzer/internal/config"
	"github.com/kiranshivaraju/anomalyzer/pkg/models"
)

// Provider implements models.AIProvider using Ollama's generate API.
type Provider struct {
	cfg    config.OllamaConfig
	client *http.Client
}

func NewProvider(cfg config.OllamaConfig) *Provider {
	// Per-call deadlines come from the adapter's context; no client timeout.
	return &Provider{cfg: cfg, client: &http.Client{}}
}

func (p *Provider) Name() string { return "ollama" }

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

func (p *Provider) Infer(ctx context.Context, req models.InferenceRequest) (models.InferenceResponse, error) {
	body, err := json.Marshal(generateRequest{
		Model:  p.cfg.Model,
		Prompt: req.Prompt,
		Stream: false,
		Format: "json",
	})
	if err != nil {
		return models.InferenceResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return models.InferenceResponse{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return models.InferenceResponse{}, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.InferenceResponse{}, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return models.InferenceResponse{}, fmt.Errorf("decoding ollama response: %w", err)
	}

	return models.InferenceResponse{Text: decoded.Response, Model: decoded.Model}, nil
}

var _ models.AIProvider = (*Provider)(nil)
