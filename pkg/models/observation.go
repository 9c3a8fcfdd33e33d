package models

import (
	"time"
)

// Observation is one append-only entry written to the external memory sink.
type Observation struct {
	SessionID string    `json:"session_id,omitempty"`
	Project   string    `json:"project,omitempty"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Subtitle  string    `json:"subtitle,omitempty"`
	Text      string    `json:"text,omitempty"`
	Facts     []string  `json:"facts,omitempty"`
	Narrative string    `json:"narrative,omitempty"`
	Concepts  []string  `json:"concepts,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// InjectionRecord is the ledger row kept for every memory write-through,
// keyed by finding id so repeat injections are detectable.
type InjectionRecord struct {
	FindingID string    `json:"finding_id"`
	SessionID string    `json:"session_id,omitempty"`
	Forced    bool      `json:"forced,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
