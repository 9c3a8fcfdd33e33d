// Package events provides in-process event distribution and real-time
// delivery to WebSocket clients.
//
// Components publish Events to named channels on the Bus. The Hub bridges
// bus channels to WebSocket connections: the first client subscription to
// a channel opens a bus subscription, the last unsubscribe closes it.
//
// Publishing never blocks. A subscriber that stops draining its channel
// loses events rather than stalling the producer, so research and queue
// workers are never held up by a slow dashboard connection.
package events

import "time"

// Research lifecycle event types (crew + coordinator).
const (
	EventTypeIterationStart     = "iteration:start"
	EventTypeIterationComplete  = "iteration:complete"
	EventTypeSpecialistDispatch = "specialist:dispatch"
	EventTypeSpecialistComplete = "specialist:complete"
	EventTypePivotDetected      = "pivot:detected"
	EventTypeResearchComplete   = "research:complete"
)

// Watcher event types.
const (
	EventTypeResearchTriggered = "research:triggered"
)

// Task queue lifecycle event types.
const (
	EventTypeTaskQueued    = "task:queued"
	EventTypeTaskStarted   = "task:started"
	EventTypeTaskCompleted = "task:completed"
	EventTypeTaskFailed    = "task:failed"
	EventTypeQueueDrained  = "queue:drained"
)

// Global channels. Session-scoped events go to SessionChannel(id);
// research and queue events are mirrored here for list views.
const (
	GlobalResearchChannel = "global:research"
	GlobalQueueChannel    = "global:queue"
)

// SessionChannel returns the channel name for a specific session's events.
// Format: "session:{session_id}"
func SessionChannel(sessionID string) string {
	return "session:" + sessionID
}

// Event is one published occurrence. Payload carries type-specific fields;
// consumers must tolerate missing keys.
type Event struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ClientMessage is the JSON structure for client → server WebSocket messages.
type ClientMessage struct {
	Action  string `json:"action"`            // "subscribe", "unsubscribe", "ping"
	Channel string `json:"channel,omitempty"` // Channel name (e.g., "session:abc-123")
}
