package models

import (
	"time"
)

// SpecialistDomain labels the three search domains a plan step can target.
type SpecialistDomain string

const (
	DomainWeb  SpecialistDomain = "web"
	DomainCode SpecialistDomain = "code"
	DomainDocs SpecialistDomain = "docs"
)

// Directive is the input to a crew exploration.
type Directive struct {
	Query         string `json:"query"`
	Context       string `json:"context,omitempty"`
	MaxIterations *int   `json:"max_iterations,omitempty"` // explicit budget wins over depth
	SessionID     string `json:"session_id,omitempty"`
	Depth         Depth  `json:"depth,omitempty"`
}

// PlanStep is one specialist dispatch within a plan.
type PlanStep struct {
	Specialist string `json:"specialist"` // web|code|docs
	Query      string `json:"query"`
	Priority   int    `json:"priority"`
}

// Plan is the coordinator's strategy for a directive.
type Plan struct {
	Strategy  string     `json:"strategy"`
	Rationale string     `json:"rationale"`
	Steps     []PlanStep `json:"steps"`
	Fallback  bool       `json:"fallback,omitempty"` // built mechanically after an LLM/parse failure
}

// PivotUrgency grades how strongly the evaluator recommends switching approach.
type PivotUrgency string

const (
	PivotUrgencyLow    PivotUrgency = "low"
	PivotUrgencyMedium PivotUrgency = "medium"
	PivotUrgencyHigh   PivotUrgency = "high"
)

// Pivot is the evaluator's suggestion that the phrased problem is better
// solved by a different approach.
type Pivot struct {
	Alternative string       `json:"alternative"`
	Reason      string       `json:"reason,omitempty"`
	Urgency     PivotUrgency `json:"urgency"`
}

// Evaluation is the coordinator's judgement over accumulated fragments.
type Evaluation struct {
	Complete   bool       `json:"complete"`
	Confidence float64    `json:"confidence"`
	Reasoning  string     `json:"reasoning,omitempty"`
	NextSteps  []PlanStep `json:"next_steps,omitempty"`
	Pivot      *Pivot     `json:"pivot,omitempty"`
}

// Synthesis is the coordinator's final condensation of all fragments.
type Synthesis struct {
	Summary     string   `json:"summary"`
	KeyFindings []string `json:"key_findings,omitempty"`
	Confidence  float64  `json:"confidence"`
	Pivot       *Pivot   `json:"pivot,omitempty"`
	Mechanical  bool     `json:"mechanical,omitempty"` // fallback built without the LLM
}

// SearchResult is one normalized hit returned by a specialist tool.
type SearchResult struct {
	Title     string            `json:"title"`
	URL       string            `json:"url"`
	Snippet   string            `json:"snippet,omitempty"`
	Source    string            `json:"source"`
	Relevance float64           `json:"relevance"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ScrapedPage is fetched full content for one result URL.
type ScrapedPage struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
	Cached  bool   `json:"cached,omitempty"`
}

// Fragment is a specialist's intermediate output for one dispatch:
// search results plus any scraped bodies, before synthesis.
type Fragment struct {
	Specialist string         `json:"specialist"`
	Results    []SearchResult `json:"results"`
	Scraped    []ScrapedPage  `json:"scraped,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// PriorKnowledge is a compact view of an earlier finding handed to the planner.
type PriorKnowledge struct {
	Query      string  `json:"query"`
	Summary    string  `json:"summary"`
	AgeHours   float64 `json:"age_hours"`
	Confidence float64 `json:"confidence"`
}

// Result is the crew's final output for one exploration.
type Result struct {
	Query       string        `json:"query"`
	Summary     string        `json:"summary"`
	KeyFindings []string      `json:"key_findings,omitempty"`
	Sources     []Source      `json:"sources,omitempty"`
	Confidence  float64       `json:"confidence"`
	Iterations  int           `json:"iterations"`
	Tokens      int           `json:"tokens"`
	Duration    time.Duration `json:"duration"`
	Pivot       *Pivot        `json:"pivot,omitempty"`
	FindingID   string        `json:"finding_id,omitempty"`
}
