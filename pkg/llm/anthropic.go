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

const defaultAnthropicBaseURL = "https://api.anthropic.com/v1"

// AnthropicClient speaks the Anthropic messages API.
type AnthropicClient struct {
	apiKey     string
	settings   settings
	httpClient *http.Client
}

// NewAnthropicClient builds a client from resolved configuration.
func NewAnthropicClient(apiKey string, cfg *config.LLMConfig) *AnthropicClient {
	s := settingsFromConfig(cfg, defaultAnthropicBaseURL)
	return &AnthropicClient{
		apiKey:     apiKey,
		settings:   s,
		httpClient: &http.Client{Timeout: s.timeout},
	}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model string `json:"model"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Query sends one prompt. A single attempt: transient failures surface to
// the caller unchanged.
func (c *AnthropicClient) Query(ctx context.Context, prompt string, opts QueryOptions) (*Response, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.settings.timeout)
		defer cancel()
	}

	maxTokens, temperature := c.settings.resolve(opts)
	reqBody := anthropicRequest{
		Model:       c.settings.model,
		MaxTokens:   maxTokens,
		System:      opts.System,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.settings.baseURL+"/messages", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

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
		return nil, statusError("anthropic", resp.StatusCode, body)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("anthropic API error: %s", parsed.Error.Message)
	}
	if len(parsed.Content) == 0 {
		return nil, fmt.Errorf("no completion returned")
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	reply := strings.TrimSpace(text.String())

	tokens := parsed.Usage.InputTokens + parsed.Usage.OutputTokens
	if tokens == 0 {
		tokens = EstimateTokens(reply)
	}
	model := parsed.Model
	if model == "" {
		model = c.settings.model
	}
	return &Response{Text: reply, Tokens: tokens, Provider: "anthropic", Model: model}, nil
}
