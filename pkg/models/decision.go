package models

// ResearchType classifies why the watcher wants to research.
type ResearchType string

const (
	ResearchTypeError      ResearchType = "error"
	ResearchTypeStuck      ResearchType = "stuck"
	ResearchTypeUnknownAPI ResearchType = "unknown_api"
	ResearchTypeProactive  ResearchType = "proactive"
	ResearchTypeDirect     ResearchType = "direct"
)

// Decision is the watcher's verdict on a conversation event.
type Decision struct {
	ShouldResearch  bool         `json:"shouldResearch"`
	Query           string       `json:"query,omitempty"`
	ResearchType    ResearchType `json:"researchType,omitempty"`
	Confidence      float64      `json:"confidence"`
	Priority        int          `json:"priority"`
	Reason          string       `json:"reason,omitempty"`
	AlternativeHint string       `json:"alternativeHint,omitempty"`
	BlockedBy       string       `json:"blockedBy,omitempty"`
}

// NoResearch builds a negative decision with the stated reason.
func NoResearch(reason string) *Decision {
	return &Decision{ShouldResearch: false, Reason: reason}
}
