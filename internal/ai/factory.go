package ai

import (
	"fmt"

	"github.com/kiranshivaraju/anomalyzer/internal/ai/anthropic"
	"github.com/kiranshivaraju/anomalyzer/internal/ai/ollama"
	"github.com/kiranshivaraju/anomalyzer/internal/ai/openai"
	"github.com/kiranshivaraju/anomalyzer/internal/config"
	"github.com/kiranshivaraju/anomalyzer/pkg/models"
)

// NewProvider constructs the appropriate AI provider based on config.
// Called once at server startup.
func NewProvider(cfg config.AIConfig) (models.AIProvider, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.NewProvider(cfg.Ollama), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of ollama, openai, anthropic", cfg.Provider)
	}
}
