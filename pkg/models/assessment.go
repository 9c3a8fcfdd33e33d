package models

// SourceRecommendation is the assessor's verdict on whether to rely on a source.
type SourceRecommendation string

const (
	RecommendUse     SourceRecommendation = "use"
	RecommendCaution SourceRecommendation = "caution"
	RecommendAvoid   SourceRecommendation = "avoid"
)

// SourceAssessment is the scored breakdown for one source.
type SourceAssessment struct {
	Domain         string               `json:"domain"`
	Reputation     float64              `json:"reputation"`
	ContentQuality float64              `json:"content_quality"`
	Freshness      float64              `json:"freshness"`
	Relevance      float64              `json:"relevance"`
	Reliability    float64              `json:"reliability"`
	Recommendation SourceRecommendation `json:"recommendation"`
	Category       string               `json:"category,omitempty"`
}

// ReliableSource is one quality-ledger row surfaced to callers.
type ReliableSource struct {
	Domain        string  `json:"domain"`
	Topic         string  `json:"topic,omitempty"`
	Score         float64 `json:"score"`
	PositiveCount int     `json:"positive_count"`
	NegativeCount int     `json:"negative_count"`
}
