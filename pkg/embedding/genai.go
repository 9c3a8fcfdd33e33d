package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"google.golang.org/genai"

	"github.com/assistkit/scout/pkg/config"
)

// GenAIEngine embeds text with the Gemini embedding API.
type GenAIEngine struct {
	client *genai.Client
	model  string
	dims   int
}

// NewGenAIEngine builds an engine from configuration. It returns an error
// when the configured API key environment variable is empty, so callers can
// degrade to keyword-only recall instead of failing startup.
func NewGenAIEngine(ctx context.Context, cfg *config.EmbeddingConfig) (*GenAIEngine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("embedding config is nil")
	}
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("embedding API key not set (%s)", cfg.APIKeyEnv)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	dims := cfg.Dimensions
	if dims <= 0 {
		dims = config.DefaultEmbeddingDimensions
	}

	slog.Info("Embedding engine ready", "model", cfg.Model, "dimensions", dims)
	return &GenAIEngine{client: client, model: cfg.Model, dims: dims}, nil
}

// Embed generates an embedding vector for the given text.
func (e *GenAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType: "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("embedding response contained no vectors")
	}
	return result.Embeddings[0].Values, nil
}

// Dimensions returns the embedding dimensionality.
func (e *GenAIEngine) Dimensions() int { return e.dims }

// Name returns the engine name for logging.
func (e *GenAIEngine) Name() string { return "genai:" + e.model }

// Close releases the underlying client. The genai client holds no
// resources that require explicit shutdown.
func (e *GenAIEngine) Close() error {
	return nil
}
