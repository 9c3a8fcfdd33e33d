package config

// ResearchConfig gates the watcher's autonomous triggering.
type ResearchConfig struct {
	// AutonomousEnabled is the master switch. Off means the watcher only
	// ever answers "no research"; explicit API requests still work.
	AutonomousEnabled *bool `yaml:"autonomous_enabled,omitempty"`

	// ConfidenceThreshold is the base acceptance threshold for watcher
	// decisions. The stuck type adds 0.1 (capped at 0.8).
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// SessionCooldown is the minimum interval between autonomous triggers
	// for one session.
	SessionCooldown Duration `yaml:"session_cooldown"`

	// MaxResearchPerHour caps autonomous triggers across all sessions in
	// any rolling hour.
	MaxResearchPerHour int `yaml:"max_research_per_hour"`
}

// Autonomous resolves the master switch (default off).
func (r *ResearchConfig) Autonomous() bool {
	if r.AutonomousEnabled == nil {
		return false
	}
	return *r.AutonomousEnabled
}

// CrewConfig tunes the exploration loop.
type CrewConfig struct {
	// ParallelSpecialists dispatches plan steps concurrently. When false,
	// steps run sequentially in priority order.
	ParallelSpecialists *bool `yaml:"parallel_specialists,omitempty"`

	// DefaultMaxIterations applies when neither an explicit budget nor a
	// depth label is given.
	DefaultMaxIterations int `yaml:"default_max_iterations"`

	// DepthIterations maps depth labels to iteration budgets.
	DepthIterations map[string]int `yaml:"depth_iterations,omitempty"`

	// MaxResults and ScrapeTop shape each specialist dispatch.
	MaxResults int `yaml:"max_results"`
	ScrapeTop  int `yaml:"scrape_top"`

	// SpecialistTimeout bounds one specialist execution including scraping.
	SpecialistTimeout Duration `yaml:"specialist_timeout"`
}

// Parallel resolves the dispatch mode (default parallel).
func (c *CrewConfig) Parallel() bool {
	if c.ParallelSpecialists == nil {
		return true
	}
	return *c.ParallelSpecialists
}

// IterationsForDepth resolves a depth label to its iteration budget,
// falling back to the default budget for unknown labels.
func (c *CrewConfig) IterationsForDepth(depth string) int {
	if n, ok := c.DepthIterations[depth]; ok && n > 0 {
		return n
	}
	return c.DefaultMaxIterations
}

// SessionsConfig bounds the in-memory session tracker.
type SessionsConfig struct {
	MaxEvents     int      `yaml:"max_events"`
	IdleTTL       Duration `yaml:"idle_ttl"`
	PruneInterval Duration `yaml:"prune_interval"`
}

// CacheConfig bounds the persisted URL content cache.
type CacheConfig struct {
	URLTTL      Duration `yaml:"url_ttl"`
	URLMaxBytes int64    `yaml:"url_max_bytes"`
}
