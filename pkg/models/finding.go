package models

import (
	"time"
)

// MaxKeyPoints bounds the bullet list stored on a finding.
const MaxKeyPoints = 8

// MaxContentBytes bounds a finding's full content (~64 KiB).
const MaxContentBytes = 64 * 1024

// PartialConfidenceCeiling separates partial findings (persisted mid-iteration)
// from final ones. A finding with confidence at or below this value is partial.
const PartialConfidenceCeiling = 0.3

// Source is one ranked reference attached to a finding.
type Source struct {
	Title     string   `json:"title"`
	URL       string   `json:"url"`
	Snippet   string   `json:"snippet,omitempty"`
	Source    string   `json:"source"` // backend that produced it (brave, github, ...)
	Relevance float64  `json:"relevance"`
	Quality   *float64 `json:"quality,omitempty"`
}

// Finding is the durable unit of research output. Written once by the crew,
// read by later lookups, never mutated.
type Finding struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	Summary     string    `json:"summary"`
	KeyPoints   []string  `json:"key_points,omitempty"`
	Content     string    `json:"content,omitempty"`
	Sources     []Source  `json:"sources,omitempty"`
	Domain      string    `json:"domain,omitempty"` // inferred tag: web|code|docs
	Depth       Depth     `json:"depth,omitempty"`
	Confidence  float64   `json:"confidence"`
	SessionID   string    `json:"session_id,omitempty"`
	ProjectPath string    `json:"project_path,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsPartial reports whether the finding was persisted as an intermediate
// result during iteration rather than as a synthesized final answer.
func (f *Finding) IsPartial() bool {
	return f.Confidence <= PartialConfidenceCeiling
}

// Clamp01 clamps confidence/relevance-style values into [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ClampPriority clamps a task or plan-step priority into [1, 10].
func ClampPriority(p int) int {
	if p < 1 {
		return 1
	}
	if p > 10 {
		return 10
	}
	return p
}

// TruncateContent enforces the finding content cap, cutting on a rune boundary.
func TruncateContent(s string) string {
	if len(s) <= MaxContentBytes {
		return s
	}
	cut := s[:MaxContentBytes]
	for len(cut) > 0 && cut[len(cut)-1]&0xC0 == 0x80 {
		cut = cut[:len(cut)-1]
	}
	return cut
}
