package config

// ToolsConfig names the credential environment variables and shared fetch
// settings for the specialist search backends. A missing or empty credential
// disables the corresponding tool; it is never an error.
type ToolsConfig struct {
	BraveAPIKeyEnv      string `yaml:"brave_api_key_env"`
	SerperAPIKeyEnv     string `yaml:"serper_api_key_env"`
	TavilyAPIKeyEnv     string `yaml:"tavily_api_key_env"`
	GitHubTokenEnv      string `yaml:"github_token_env"`
	StackExchangeKeyEnv string `yaml:"stackexchange_key_env"`

	// UserAgent is sent on every outbound search/scrape request.
	UserAgent string `yaml:"user_agent"`

	// BlockedDomains are never scraped (matched by suffix on the host).
	BlockedDomains []string `yaml:"blocked_domains,omitempty"`

	// FetchTimeout bounds one content fetch when the caller gives no
	// tighter per-URL budget.
	FetchTimeout Duration `yaml:"fetch_timeout"`

	// MaxFetchBytes truncates fetched bodies.
	MaxFetchBytes int64 `yaml:"max_fetch_bytes"`
}
