package services

import (
	"fmt"

	"github.com/assistkit/scout/pkg/session"
)

// CooldownResetter is the watcher subset the session service needs.
// Satisfied by *watcher.Watcher.
type CooldownResetter interface {
	ResetCooldown(sessionID string)
}

// SessionService exposes tracker snapshots and cooldown control.
type SessionService struct {
	tracker *session.Tracker
	watcher CooldownResetter
}

// NewSessionService creates a new SessionService.
func NewSessionService(tracker *session.Tracker, w CooldownResetter) *SessionService {
	if tracker == nil {
		panic("NewSessionService: tracker must not be nil")
	}
	return &SessionService{tracker: tracker, watcher: w}
}

// List returns summaries of every tracked session.
func (s *SessionService) List() []session.Summary {
	return s.tracker.List()
}

// Get returns one session summary.
func (s *SessionService) Get(sessionID string) (session.Summary, error) {
	if sessionID == "" {
		return session.Summary{}, NewValidationError("id", "session id is required")
	}
	summary, ok := s.tracker.Get(sessionID)
	if !ok {
		return session.Summary{}, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	return summary, nil
}

// ResetCooldown clears the watcher cooldown for one session so the next
// analysis may trigger immediately.
func (s *SessionService) ResetCooldown(sessionID string) error {
	if sessionID == "" {
		return NewValidationError("id", "session id is required")
	}
	if _, ok := s.tracker.Get(sessionID); !ok {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if s.watcher != nil {
		s.watcher.ResetCooldown(sessionID)
	}
	return nil
}
