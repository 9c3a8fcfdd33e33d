package models

import (
	"time"
)

// TaskStatus is the lifecycle state of a queued research task.
type TaskStatus string

const (
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether no further status transition is accepted.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// Depth is the coarse iteration-budget control for a research run.
type Depth string

const (
	DepthQuick  Depth = "quick"
	DepthMedium Depth = "medium"
	DepthDeep   Depth = "deep"
)

// Valid reports whether d is one of the three known depth labels.
func (d Depth) Valid() bool {
	return d == DepthQuick || d == DepthMedium || d == DepthDeep
}

// Trigger identifies what initiated a research task or watcher analysis.
type Trigger string

const (
	TriggerUserPrompt Trigger = "userPrompt"
	TriggerToolOutput Trigger = "toolOutput"
	TriggerManual     Trigger = "manual"
	TriggerAutonomous Trigger = "autonomous"
)

// Task is a persisted research request managed by the queue.
type Task struct {
	ID          string     `json:"id"`
	Query       string     `json:"query"`
	Context     string     `json:"context,omitempty"`
	Depth       Depth      `json:"depth"`
	Priority    int        `json:"priority"`
	Status      TaskStatus `json:"status"`
	SessionID   string     `json:"session_id,omitempty"`
	Trigger     Trigger    `json:"trigger"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FindingID   string     `json:"finding_id,omitempty"`
	Attempts    int        `json:"attempts"`
	Error       string     `json:"error,omitempty"`
}

// QueueStats is a point-in-time projection of task counts by status.
type QueueStats struct {
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}
