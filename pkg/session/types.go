package session

import (
	"time"
)

// EventType classifies one conversation event streamed in from a session.
type EventType string

const (
	EventUserPrompt EventType = "userPrompt"
	EventToolCall   EventType = "toolCall"
	EventToolOutput EventType = "toolOutput"
	EventInjection  EventType = "injection"
)

// Event is one timestamped text blob in a session's conversation.
type Event struct {
	Type      EventType `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TopicStat tracks how often a significant term appeared and when it was
// last seen, so rankings can decay stale topics.
type TopicStat struct {
	Count    int       `json:"count"`
	LastSeen time.Time `json:"last_seen"`
}

// ResearchRecord is one past research query issued for a session.
type ResearchRecord struct {
	Query string    `json:"query"`
	At    time.Time `json:"at"`
}

// StuckState tracks whether the assistant keeps working the same focus
// area across consecutive tool-call sequences.
type StuckState struct {
	Focus   string `json:"focus,omitempty"`
	Repeats int    `json:"repeats"`
}

// IsStuck reports whether the repeat count crossed the stuck threshold.
func (s StuckState) IsStuck() bool {
	return s.Repeats >= stuckThreshold
}

// WatcherContext is the read-only snapshot the watcher builds its
// decision prompt from.
type WatcherContext struct {
	SessionID       string           `json:"session_id"`
	WorkingDir      string           `json:"working_dir,omitempty"`
	CurrentTask     string           `json:"current_task,omitempty"`
	Topics          []string         `json:"topics,omitempty"`
	RecentErrors    []string         `json:"recent_errors,omitempty"`
	ResearchHistory []ResearchRecord `json:"research_history,omitempty"`
	RecentMessages  []Event          `json:"recent_messages,omitempty"`
	Stuck           StuckState       `json:"stuck"`
	EventCount      int              `json:"event_count"`
}

// Summary is the compact per-session view exposed over the API.
type Summary struct {
	SessionID      string     `json:"session_id"`
	WorkingDir     string     `json:"working_dir,omitempty"`
	EventCount     int        `json:"event_count"`
	TopTopics      []string   `json:"top_topics,omitempty"`
	ResearchCount  int        `json:"research_count"`
	LastEventAt    time.Time  `json:"last_event_at"`
	LastAnalyzedAt *time.Time `json:"last_analyzed_at,omitempty"`
}

// Stats is a point-in-time tracker census.
type Stats struct {
	Sessions    int `json:"sessions"`
	TotalEvents int `json:"total_events"`
}
