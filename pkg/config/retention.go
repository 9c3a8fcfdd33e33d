package config

// RetentionConfig controls the periodic cleanup loop.
type RetentionConfig struct {
	// Interval between cleanup passes.
	Interval Duration `yaml:"interval"`

	// TaskAge removes completed/failed/cancelled tasks older than this.
	TaskAge Duration `yaml:"task_age"`

	// PartialFindingAge removes low-confidence partial findings older than
	// this. Final findings are never removed by retention.
	PartialFindingAge Duration `yaml:"partial_finding_age"`
}
