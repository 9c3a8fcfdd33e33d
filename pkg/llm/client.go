// Package llm is the gateway to hosted language models. It issues single
// prompt/response calls over plain HTTP with no retries, no streaming, and
// no conversation state; retry policy belongs to callers that know whether
// a failure is worth a second attempt.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/assistkit/scout/pkg/config"
)

// ErrNoAPIKey is returned when the configured key environment variable is empty.
var ErrNoAPIKey = errors.New("llm: API key not configured")

// Client is the single entry point components use for model calls.
type Client interface {
	// Query sends one prompt and returns the model's reply. The context
	// bounds the call; without a deadline the configured timeout applies.
	Query(ctx context.Context, prompt string, opts QueryOptions) (*Response, error)
}

// QueryOptions overrides per-call generation settings. Zero values fall
// back to the configured defaults.
type QueryOptions struct {
	MaxTokens   int
	Temperature float64
	System      string
}

// Response is a completed model reply.
type Response struct {
	Text     string
	Tokens   int
	Provider string
	Model    string
}

// settings are the resolved generation defaults a provider was built with.
type settings struct {
	model       string
	baseURL     string
	maxTokens   int
	temperature float64
	timeout     time.Duration
}

func settingsFromConfig(cfg *config.LLMConfig, defaultBaseURL string) settings {
	s := settings{
		model:       cfg.Model,
		baseURL:     cfg.BaseURL,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout.Std(),
	}
	if s.baseURL == "" {
		s.baseURL = defaultBaseURL
	}
	if s.maxTokens <= 0 {
		s.maxTokens = 1024
	}
	if s.timeout <= 0 {
		s.timeout = 60 * time.Second
	}
	return s
}

// resolve applies per-call overrides onto the provider defaults.
func (s settings) resolve(opts QueryOptions) (maxTokens int, temperature float64) {
	maxTokens = s.maxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	temperature = s.temperature
	if opts.Temperature > 0 {
		temperature = opts.Temperature
	}
	return maxTokens, temperature
}

// EstimateTokens approximates token usage as ceil(len/4), the accounting
// used whenever a provider omits usage metadata.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// snippet trims an error body for log-safe messages.
func snippet(body []byte) string {
	const max = 300
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max]) + "..."
}

func statusError(provider string, status int, body []byte) error {
	return fmt.Errorf("%s API request failed with status %d: %s", provider, status, snippet(body))
}
