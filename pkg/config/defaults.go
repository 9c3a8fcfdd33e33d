package config

import "time"

// Default* builders return the built-in value for each section. The loader
// starts from these and merges user YAML on top.

func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host: "127.0.0.1",
		Port: 8181,
	}
}

func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Path:          "scout.db",
		BusyTimeoutMS: 5000,
	}
}

func DefaultLLMConfig() *LLMConfig {
	return &LLMConfig{
		Provider:    "anthropic",
		Model:       "claude-sonnet-4-5",
		APIKeyEnv:   "ANTHROPIC_API_KEY",
		MaxTokens:   1024,
		Temperature: 0.3,
		Timeout:     Duration(60 * time.Second),
	}
}

// DefaultEmbeddingDimensions is the fallback vector size when the
// configuration does not specify one.
const DefaultEmbeddingDimensions = 768

func DefaultEmbeddingConfig() *EmbeddingConfig {
	return &EmbeddingConfig{
		APIKeyEnv:  "GEMINI_API_KEY",
		Model:      "gemini-embedding-001",
		Dimensions: DefaultEmbeddingDimensions,
	}
}

func DefaultResearchConfig() *ResearchConfig {
	return &ResearchConfig{
		ConfidenceThreshold: 0.6,
		SessionCooldown:     Duration(5 * time.Minute),
		MaxResearchPerHour:  10,
	}
}

func DefaultCrewConfig() *CrewConfig {
	return &CrewConfig{
		DefaultMaxIterations: 5,
		DepthIterations: map[string]int{
			"quick":  1,
			"medium": 2,
			"deep":   4,
		},
		MaxResults:        10,
		ScrapeTop:         3,
		SpecialistTimeout: Duration(45 * time.Second),
	}
}

func DefaultSessionsConfig() *SessionsConfig {
	return &SessionsConfig{
		MaxEvents:     100,
		IdleTTL:       Duration(2 * time.Hour),
		PruneInterval: Duration(10 * time.Minute),
	}
}

func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		URLTTL:      Duration(24 * time.Hour),
		URLMaxBytes: 64 << 20,
	}
}

func DefaultMemoryConfig() *MemoryConfig {
	return &MemoryConfig{}
}

func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		Interval:          Duration(1 * time.Hour),
		TaskAge:           Duration(7 * 24 * time.Hour),
		PartialFindingAge: Duration(24 * time.Hour),
	}
}

func DefaultToolsConfig() *ToolsConfig {
	return &ToolsConfig{
		BraveAPIKeyEnv:      "BRAVE_API_KEY",
		SerperAPIKeyEnv:     "SERPER_API_KEY",
		TavilyAPIKeyEnv:     "TAVILY_API_KEY",
		GitHubTokenEnv:      "GITHUB_TOKEN",
		StackExchangeKeyEnv: "STACKEXCHANGE_KEY",
		UserAgent:           "scout-research/1.0",
		FetchTimeout:        Duration(15 * time.Second),
		MaxFetchBytes:       1 << 20,
	}
}

func DefaultMaskingConfig() *MaskingConfig {
	return &MaskingConfig{}
}

// defaultConfig assembles a complete default configuration.
func defaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Database:  DefaultDatabaseConfig(),
		LLM:       DefaultLLMConfig(),
		Embedding: DefaultEmbeddingConfig(),
		Research:  DefaultResearchConfig(),
		Queue:     DefaultQueueConfig(),
		Crew:      DefaultCrewConfig(),
		Cache:     DefaultCacheConfig(),
		Sessions:  DefaultSessionsConfig(),
		Memory:    DefaultMemoryConfig(),
		Retention: DefaultRetentionConfig(),
		Tools:     DefaultToolsConfig(),
		Masking:   DefaultMaskingConfig(),
	}
}
