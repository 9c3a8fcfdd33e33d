package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/assistkit/scout/pkg/config"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient speaks the chat completions API. Any OpenAI-compatible
// endpoint works by overriding the base URL in config.
type OpenAIClient struct {
	apiKey     string
	settings   settings
	httpClient *http.Client
}

// NewOpenAIClient builds a client from resolved configuration.
func NewOpenAIClient(apiKey string, cfg *config.LLMConfig) *OpenAIClient {
	s := settingsFromConfig(cfg, defaultOpenAIBaseURL)
	return &OpenAIClient{
		apiKey:     apiKey,
		settings:   s,
		httpClient: &http.Client{Timeout: s.timeout},
	}
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Query sends one prompt. A single attempt, no retries.
func (c *OpenAIClient) Query(ctx context.Context, prompt string, opts QueryOptions) (*Response, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.settings.timeout)
		defer cancel()
	}

	maxTokens, temperature := c.settings.resolve(opts)
	messages := make([]openAIMessage, 0, 2)
	if opts.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: opts.System})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: prompt})

	jsonData, err := json.Marshal(openAIRequest{
		Model:       c.settings.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.settings.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("openai", resp.StatusCode, body)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("openai API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("no completion returned")
	}

	reply := strings.TrimSpace(parsed.Choices[0].Message.Content)
	tokens := parsed.Usage.TotalTokens
	if tokens == 0 {
		tokens = EstimateTokens(reply)
	}
	model := parsed.Model
	if model == "" {
		model = c.settings.model
	}
	return &Response{Text: reply, Tokens: tokens, Provider: "openai", Model: model}, nil
}
