package config

// LLMConfig selects and tunes the completion provider used by the
// coordinator and the watcher. The API key is read from the environment
// variable named by APIKeyEnv, never stored in the file.
type LLMConfig struct {
	Provider    string   `yaml:"provider"` // anthropic | openai | gemini
	Model       string   `yaml:"model"`
	BaseURL     string   `yaml:"base_url,omitempty"`
	APIKeyEnv   string   `yaml:"api_key_env"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature float64  `yaml:"temperature"`
	Timeout     Duration `yaml:"timeout"`
}

// EmbeddingConfig tunes the vector index. An empty resolved API key leaves
// the store in keyword-only mode.
type EmbeddingConfig struct {
	APIKeyEnv  string `yaml:"api_key_env"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}
