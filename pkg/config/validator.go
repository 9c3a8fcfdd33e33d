package config

import (
	"fmt"
)

var knownProviders = map[string]bool{
	"anthropic": true,
	"openai":    true,
	"gemini":    true,
}

// Validate checks every section for values the runtime cannot work with.
// It reports the first problem found.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port must be in 1..65535, got %d", ErrInvalidValue, c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path must not be empty", ErrInvalidValue)
	}
	if !knownProviders[c.LLM.Provider] {
		return fmt.Errorf("%w: llm.provider must be one of anthropic|openai|gemini, got %q", ErrInvalidValue, c.LLM.Provider)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("%w: llm.max_tokens must be positive", ErrInvalidValue)
	}
	if c.LLM.Timeout.Std() <= 0 {
		return fmt.Errorf("%w: llm.timeout must be positive", ErrInvalidValue)
	}
	if t := c.Research.ConfidenceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("%w: research.confidence_threshold must be in [0,1], got %v", ErrInvalidValue, t)
	}
	if c.Research.MaxResearchPerHour < 0 {
		return fmt.Errorf("%w: research.max_research_per_hour must be non-negative", ErrInvalidValue)
	}
	if c.Queue.MaxConcurrent < 1 {
		return fmt.Errorf("%w: queue.max_concurrent must be positive", ErrInvalidValue)
	}
	if c.Queue.MaxQueueSize < 1 {
		return fmt.Errorf("%w: queue.max_queue_size must be positive", ErrInvalidValue)
	}
	if c.Queue.TaskTimeout.Std() <= 0 {
		return fmt.Errorf("%w: queue.task_timeout must be positive", ErrInvalidValue)
	}
	if c.Queue.RetryAttempts < 0 {
		return fmt.Errorf("%w: queue.retry_attempts must be non-negative", ErrInvalidValue)
	}
	if c.Queue.PollInterval.Std() <= 0 {
		return fmt.Errorf("%w: queue.poll_interval must be positive", ErrInvalidValue)
	}
	if c.Crew.DefaultMaxIterations < 1 {
		return fmt.Errorf("%w: crew.default_max_iterations must be positive", ErrInvalidValue)
	}
	for depth, n := range c.Crew.DepthIterations {
		if n < 1 {
			return fmt.Errorf("%w: crew.depth_iterations[%s] must be positive, got %d", ErrInvalidValue, depth, n)
		}
	}
	if c.Crew.MaxResults < 1 {
		return fmt.Errorf("%w: crew.max_results must be positive", ErrInvalidValue)
	}
	if c.Crew.ScrapeTop < 0 {
		return fmt.Errorf("%w: crew.scrape_top must be non-negative", ErrInvalidValue)
	}
	if c.Cache.URLTTL.Std() <= 0 {
		return fmt.Errorf("%w: cache.url_ttl must be positive", ErrInvalidValue)
	}
	if c.Cache.URLMaxBytes <= 0 {
		return fmt.Errorf("%w: cache.url_max_bytes must be positive", ErrInvalidValue)
	}
	if c.Sessions.MaxEvents < 1 {
		return fmt.Errorf("%w: sessions.max_events must be positive", ErrInvalidValue)
	}
	if c.Sessions.IdleTTL.Std() <= 0 {
		return fmt.Errorf("%w: sessions.idle_ttl must be positive", ErrInvalidValue)
	}
	for _, p := range c.Masking.CustomPatterns {
		if p.Pattern == "" {
			return fmt.Errorf("%w: masking.custom_patterns entries need a pattern", ErrInvalidValue)
		}
	}
	return nil
}
