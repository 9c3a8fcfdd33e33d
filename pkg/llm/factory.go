package llm

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/assistkit/scout/pkg/config"
)

// NewClient builds the provider named in config. The API key is read from
// the configured environment variable; an empty key is an error here so a
// misconfigured service fails at startup rather than on the first research.
func NewClient(cfg *config.LLMConfig) (Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("llm config is nil")
	}
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set %s", ErrNoAPIKey, cfg.APIKeyEnv)
	}

	var client Client
	switch cfg.Provider {
	case "anthropic":
		client = NewAnthropicClient(apiKey, cfg)
	case "openai":
		client = NewOpenAIClient(apiKey, cfg)
	case "gemini":
		client = NewGeminiClient(apiKey, cfg)
	default:
		return nil, fmt.Errorf("unknown provider: %s (valid: anthropic, openai, gemini)", cfg.Provider)
	}

	slog.Info("LLM client ready", "provider", cfg.Provider, "model", cfg.Model)
	return client, nil
}
