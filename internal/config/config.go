package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Anomalyzer server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Sources  SourcesConfig
	AI       AIConfig
	Engine   EngineConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// PersistTimeout bounds the post-analysis write so a slow store can
	// never hold up returning a computed analysis.
	PersistTimeout time.Duration
}

type RedisConfig struct {
	URL string
}

// SourcesConfig configures the external evidence sources.
type SourcesConfig struct {
	// HistoryBaseURL points at the baseline-computation service
	// (historical values and related-metric lookups).
	HistoryBaseURL string
	// ChangesBaseURL points at the change-event source.
	ChangesBaseURL string
	Username       string
	Password       string
	// GatherTimeout bounds the whole evidence fan-out; sources that miss
	// it are omitted from the bundle.
	GatherTimeout time.Duration
	// HistoryWindow is how far back historical comparisons reach.
	HistoryWindow time.Duration
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	MaxRetries       int
	MaxTokens        int
	// ConfidenceFloor is the minimum AI confidence accepted before the
	// adapter signals unavailable and the rule engine takes over.
	ConfidenceFloor float64
	Ollama          OllamaConfig
	OpenAI          OpenAIConfig
	Anthropic       AnthropicConfig
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type AnthropicConfig struct {
	APIKey string
	Model  string
}

// EngineConfig holds the decision-engine tunables. The numeric defaults are
// calibration values, exposed as configuration rather than hard-coded.
type EngineConfig struct {
	RuleConfidenceFloor   float64
	RuleConfidenceCeiling float64
	CorrelationThreshold  float64
	ChangeLookback        time.Duration
}

var validProviders = map[string]bool{
	"ollama":    true,
	"openai":    true,
	"anthropic": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("ANOMALYZER_PORT", 8080),
			Env:  envString("ANOMALYZER_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			PersistTimeout:  envDuration("DATABASE_PERSIST_TIMEOUT", 3*time.Second),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Sources: SourcesConfig{
			HistoryBaseURL: os.Getenv("HISTORY_BASE_URL"),
			ChangesBaseURL: os.Getenv("CHANGES_BASE_URL"),
			Username:       os.Getenv("SOURCES_USERNAME"),
			Password:       os.Getenv("SOURCES_PASSWORD"),
			GatherTimeout:  envDuration("SOURCES_GATHER_TIMEOUT", 10*time.Second),
			HistoryWindow:  envDuration("SOURCES_HISTORY_WINDOW", 7*24*time.Hour),
		},
		AI: AIConfig{
			Provider:         os.Getenv("AI_PROVIDER"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 30*time.Second),
			MaxRetries:       envInt("AI_MAX_RETRIES", 2),
			MaxTokens:        envInt("AI_MAX_TOKENS", 2048),
			ConfidenceFloor:  envFloat("AI_CONFIDENCE_FLOOR", 0.40),
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "llama3"),
			},
			OpenAI: OpenAIConfig{
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com"),
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4"),
			},
			Anthropic: AnthropicConfig{
				APIKey: os.Getenv("ANTHROPIC_API_KEY"),
				Model:  envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			},
		},
		Engine: EngineConfig{
			RuleConfidenceFloor:   envFloat("ENGINE_RULE_CONFIDENCE_FLOOR", 0.30),
			RuleConfidenceCeiling: envFloat("ENGINE_RULE_CONFIDENCE_CEILING", 0.85),
			CorrelationThreshold:  envFloat("ENGINE_CORRELATION_THRESHOLD", 0.65),
			ChangeLookback:        envDuration("ENGINE_CHANGE_LOOKBACK", 2*time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Sources.HistoryBaseURL == "" {
		return fmt.Errorf("HISTORY_BASE_URL is required")
	}
	if !hasHTTPScheme(c.Sources.HistoryBaseURL) {
		return fmt.Errorf("HISTORY_BASE_URL must start with http:// or https://, got %q", c.Sources.HistoryBaseURL)
	}
	if c.Sources.ChangesBaseURL == "" {
		return fmt.Errorf("CHANGES_BASE_URL is required")
	}
	if !hasHTTPScheme(c.Sources.ChangesBaseURL) {
		return fmt.Errorf("CHANGES_BASE_URL must start with http:// or https://, got %q", c.Sources.ChangesBaseURL)
	}

	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of ollama, openai, anthropic; got %q", c.AI.Provider)
	}

	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}
	if c.AI.Provider == "anthropic" && c.AI.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is anthropic")
	}

	if c.AI.ConfidenceFloor < 0 || c.AI.ConfidenceFloor > 1 {
		return fmt.Errorf("AI_CONFIDENCE_FLOOR must be in [0,1], got %v", c.AI.ConfidenceFloor)
	}
	if c.Engine.RuleConfidenceFloor < 0 || c.Engine.RuleConfidenceFloor > 1 {
		return fmt.Errorf("ENGINE_RULE_CONFIDENCE_FLOOR must be in [0,1], got %v", c.Engine.RuleConfidenceFloor)
	}
	if c.Engine.RuleConfidenceCeiling <= c.Engine.RuleConfidenceFloor {
		return fmt.Errorf("ENGINE_RULE_CONFIDENCE_CEILING (%v) must exceed ENGINE_RULE_CONFIDENCE_FLOOR (%v)",
			c.Engine.RuleConfidenceCeiling, c.Engine.RuleConfidenceFloor)
	}
	if c.Engine.RuleConfidenceCeiling >= 1 {
		return fmt.Errorf("ENGINE_RULE_CONFIDENCE_CEILING must be below 1, got %v", c.Engine.RuleConfidenceCeiling)
	}
	if c.Engine.CorrelationThreshold < 0 || c.Engine.CorrelationThreshold > 1 {
		return fmt.Errorf("ENGINE_CORRELATION_THRESHOLD must be in [0,1], got %v", c.Engine.CorrelationThreshold)
	}
	// Temporal proximity divides by the lookback, so zero is not a valid width.
	if c.Engine.ChangeLookback <= 0 {
		return fmt.Errorf("ENGINE_CHANGE_LOOKBACK must be positive, got %v", c.Engine.ChangeLookback)
	}

	return nil
}

func hasHTTPScheme(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
