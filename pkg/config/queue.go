package config

import "time"

// QueueConfig contains task queue configuration. These values control how
// research tasks are admitted, scheduled, and retried.
type QueueConfig struct {
	// MaxConcurrent is the number of tasks allowed in state running at once.
	MaxConcurrent int `yaml:"max_concurrent"`

	// MaxQueueSize rejects new enqueues once this many tasks are queued.
	MaxQueueSize int `yaml:"max_queue_size"`

	// TaskTimeout is the wall-clock deadline one task execution races against.
	TaskTimeout Duration `yaml:"task_timeout"`

	// RetryAttempts is the number of additional executions after the first
	// failure, with linear backoff (1s times the attempt number).
	RetryAttempts int `yaml:"retry_attempts"`

	// PollInterval is the scheduler tick.
	PollInterval Duration `yaml:"poll_interval"`

	// DrainTimeout is the max time Stop waits for in-flight tasks.
	DrainTimeout Duration `yaml:"drain_timeout"`
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		MaxConcurrent: 2,
		MaxQueueSize:  50,
		TaskTimeout:   Duration(3 * time.Minute),
		RetryAttempts: 2,
		PollInterval:  Duration(2 * time.Second),
		DrainTimeout:  Duration(30 * time.Second),
	}
}
