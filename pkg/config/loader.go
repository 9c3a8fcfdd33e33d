package config

import (
	"fmt"
	"log/slog"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Initialize loads, merges, and validates configuration from the given path.
// A missing file is not an error: the built-in defaults apply. This is the
// primary entry point for configuration loading.
func Initialize(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	slog.Info("Configuration initialized",
		"path", path,
		"provider", cfg.LLM.Provider,
		"autonomous", cfg.Research.Autonomous(),
		"db", cfg.Database.Path)

	return cfg, nil
}

func load(path string) (*Config, error) {
	var fileCfg Config

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		slog.Info("No config file found, using defaults", "path", path)
	case err != nil:
		return nil, NewLoadError(path, err)
	default:
		data = ExpandEnv(data)
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
		}
	}

	return merge(&fileCfg)
}

// merge layers file-provided sections over the built-in defaults. Each section
// starts from its default and user-set (non-zero) values override.
func merge(fileCfg *Config) (*Config, error) {
	cfg := defaultConfig()

	sections := []struct {
		name string
		dst  any
		src  any
	}{
		{"server", cfg.Server, fileCfg.Server},
		{"database", cfg.Database, fileCfg.Database},
		{"llm", cfg.LLM, fileCfg.LLM},
		{"embedding", cfg.Embedding, fileCfg.Embedding},
		{"research", cfg.Research, fileCfg.Research},
		{"queue", cfg.Queue, fileCfg.Queue},
		{"crew", cfg.Crew, fileCfg.Crew},
		{"cache", cfg.Cache, fileCfg.Cache},
		{"sessions", cfg.Sessions, fileCfg.Sessions},
		{"memory", cfg.Memory, fileCfg.Memory},
		{"retention", cfg.Retention, fileCfg.Retention},
		{"tools", cfg.Tools, fileCfg.Tools},
		{"masking", cfg.Masking, fileCfg.Masking},
	}

	for _, s := range sections {
		if isNilSection(s.src) {
			continue
		}
		if err := mergo.Merge(s.dst, s.src, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge %s config: %w", s.name, err)
		}
	}

	return cfg, nil
}

func isNilSection(src any) bool {
	switch v := src.(type) {
	case *ServerConfig:
		return v == nil
	case *DatabaseConfig:
		return v == nil
	case *LLMConfig:
		return v == nil
	case *EmbeddingConfig:
		return v == nil
	case *ResearchConfig:
		return v == nil
	case *QueueConfig:
		return v == nil
	case *CrewConfig:
		return v == nil
	case *CacheConfig:
		return v == nil
	case *SessionsConfig:
		return v == nil
	case *MemoryConfig:
		return v == nil
	case *RetentionConfig:
		return v == nil
	case *ToolsConfig:
		return v == nil
	case *MaskingConfig:
		return v == nil
	default:
		return src == nil
	}
}
