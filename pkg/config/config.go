// Package config loads and validates scout.yaml configuration.
//
// Loading order: built-in defaults first, then the YAML file (if present)
// with {{.ENV_VAR}} expansion, merged so user-set values win. Every section
// has a working default; a missing config file yields a runnable config.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	Server    *ServerConfig    `yaml:"server"`
	Database  *DatabaseConfig  `yaml:"database"`
	LLM       *LLMConfig       `yaml:"llm"`
	Embedding *EmbeddingConfig `yaml:"embedding"`
	Research  *ResearchConfig  `yaml:"research"`
	Queue     *QueueConfig     `yaml:"queue"`
	Crew      *CrewConfig      `yaml:"crew"`
	Cache     *CacheConfig     `yaml:"cache"`
	Sessions  *SessionsConfig  `yaml:"sessions"`
	Memory    *MemoryConfig    `yaml:"memory"`
	Retention *RetentionConfig `yaml:"retention"`
	Tools     *ToolsConfig     `yaml:"tools"`
	Masking   *MaskingConfig   `yaml:"masking"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the host:port listen address.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds the embedded store settings.
type DatabaseConfig struct {
	Path          string `yaml:"path"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
}

// MemoryConfig points at the external observation sink. An empty path
// disables the memory bridge; the service runs without it.
type MemoryConfig struct {
	Path    string `yaml:"path"`
	Project string `yaml:"project"`
}

// MaskingConfig controls hook-payload redaction. Custom patterns are applied
// after the built-in credential patterns.
type MaskingConfig struct {
	Enabled        *bool           `yaml:"enabled,omitempty"`
	CustomPatterns []CustomPattern `yaml:"custom_patterns,omitempty"`
}

// CustomPattern is one user-supplied redaction rule.
type CustomPattern struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// MaskingEnabled resolves the masking switch (default on).
func (c *Config) MaskingEnabled() bool {
	if c.Masking == nil || c.Masking.Enabled == nil {
		return true
	}
	return *c.Masking.Enabled
}

// Duration wraps time.Duration so YAML accepts human-readable strings
// ("30s", "5m") as well as integer nanoseconds.
type Duration time.Duration

// UnmarshalYAML accepts either a duration string or an integer nanosecond count.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar, got %v", value.Tag)
	}
	if value.Tag == "!!int" {
		var n int64
		if err := value.Decode(&n); err != nil {
			return err
		}
		*d = Duration(time.Duration(n))
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
