// Package assessor scores sources for reliability: curated domain
// reputation, content-quality heuristics, freshness signals, and query
// relevance, blended into a single recommendation. Feedback flows back
// into the persistent quality ledger so unknown domains earn a learned
// reputation over time.
package assessor

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/assistkit/scout/pkg/models"
	"github.com/assistkit/scout/pkg/similarity"
)

// Reliability weights per the scoring model.
const (
	weightReputation = 0.35
	weightQuality    = 0.25
	weightFreshness  = 0.15
	weightRelevance  = 0.25
)

// Recommendation thresholds.
const (
	useThreshold     = 0.7
	cautionThreshold = 0.4
)

// topicBoost is added to reputation when the assessed topic matches one
// of the domain's registered strengths.
const topicBoost = 0.1

var (
	yearPattern = regexp.MustCompile(`\b(20\d{2})\b`)

	deprecatedKeywords = []string{"deprecated", "obsolete", "outdated", "end-of-life", "no longer maintained", "legacy"}
)

// QualityLedger is the learned-reputation store the assessor reads and
// updates. Satisfied by *store.Store.
type QualityLedger interface {
	GetSourceQuality(ctx context.Context, domain, topic string) (float64, bool, error)
	UpdateSourceQuality(ctx context.Context, domain, topic string, positive bool) (float64, error)
}

// Assessor scores sources. A nil ledger disables learning; curated and
// default reputations still apply.
type Assessor struct {
	ledger QualityLedger
}

// New creates an assessor over the given quality ledger.
func New(ledger QualityLedger) *Assessor {
	return &Assessor{ledger: ledger}
}

// Assess scores one source against an optional topic and the words of the
// originating query.
func (a *Assessor) Assess(ctx context.Context, src models.Source, topic string, queryWords []string) models.SourceAssessment {
	domain := hostOf(src.URL)
	entry, curated := lookupDomain(domain)

	reputation := a.reputation(ctx, domain, entry, curated, topic)
	quality := contentQuality(reputation, entry.category, src)
	freshness := freshnessScore(src.Title + " " + src.Snippet)
	relevance := relevanceScore(src, queryWords)

	reliability := models.Clamp01(
		weightReputation*reputation +
			weightQuality*quality +
			weightFreshness*freshness +
			weightRelevance*relevance)

	return models.SourceAssessment{
		Domain:         domain,
		Reputation:     reputation,
		ContentQuality: quality,
		Freshness:      freshness,
		Relevance:      relevance,
		Reliability:    reliability,
		Recommendation: recommend(reliability),
		Category:       string(entry.category),
	}
}

// RecordFeedback reports whether a source turned out helpful, updating
// the learned ledger for its domain.
func (a *Assessor) RecordFeedback(ctx context.Context, src models.Source, helpful bool, topic string) {
	if a.ledger == nil {
		return
	}
	domain := hostOf(src.URL)
	if domain == "" {
		return
	}
	if _, err := a.ledger.UpdateSourceQuality(ctx, domain, topic, helpful); err != nil {
		slog.Warn("Failed to record source feedback", "domain", domain, "error", err)
	}
}

// reputation resolves the domain's base score: curated registry first
// (with topic boost), then the learned ledger, then the unknown default.
func (a *Assessor) reputation(ctx context.Context, domain string, entry registryEntry, curated bool, topic string) float64 {
	if curated {
		score := baseReputation[entry.category]
		if topic != "" && matchesTopic(entry.topics, topic) {
			score += topicBoost
		}
		return models.Clamp01(score)
	}
	if a.ledger != nil {
		if learned, found, err := a.ledger.GetSourceQuality(ctx, domain, topic); err == nil && found {
			return models.Clamp01(learned)
		}
	}
	return baseReputation[CategoryUnknown]
}

func matchesTopic(topics []string, topic string) bool {
	topic = strings.ToLower(topic)
	for _, t := range topics {
		if strings.Contains(topic, t) || strings.Contains(t, topic) {
			return true
		}
	}
	return false
}

// contentQuality starts from the domain reputation and nudges it for
// snippet substance, title shape, and category.
func contentQuality(reputation float64, category Category, src models.Source) float64 {
	q := reputation

	switch {
	case len(src.Snippet) >= 80:
		q += 0.05
	case len(src.Snippet) > 0 && len(src.Snippet) < 20:
		q -= 0.05
	}

	if n := len(src.Title); n >= 10 && n <= 120 {
		q += 0.03
	} else {
		q -= 0.03
	}

	switch category {
	case CategoryOfficial:
		q += 0.05
	case CategoryForum, CategoryBlog:
		q -= 0.05
	}

	return models.Clamp01(q)
}

// freshnessScore reads year tokens and deprecation language out of the
// title/snippet text. No signal at all scores a neutral 0.6.
func freshnessScore(text string) float64 {
	score := 0.6
	lower := strings.ToLower(text)

	if years := yearPattern.FindAllString(text, -1); len(years) > 0 {
		newest := 0
		for _, y := range years {
			if n, err := strconv.Atoi(y); err == nil && n > newest {
				newest = n
			}
		}
		age := time.Now().Year() - newest
		switch {
		case age <= 1:
			score = 0.9
		case age <= 3:
			score = 0.7
		case age <= 5:
			score = 0.5
		default:
			score = 0.3
		}
	}

	for _, kw := range deprecatedKeywords {
		if strings.Contains(lower, kw) {
			score -= 0.3
			break
		}
	}
	return models.Clamp01(score)
}

// relevanceScore measures query-word overlap against the source text,
// falling back to the backend-reported relevance when the query gives
// nothing to match on.
func relevanceScore(src models.Source, queryWords []string) float64 {
	if len(queryWords) == 0 {
		if src.Relevance > 0 {
			return models.Clamp01(src.Relevance)
		}
		return 0.5
	}

	text := similarity.Tokens(src.Title + " " + src.Snippet)
	seen := make(map[string]struct{}, len(text))
	for _, tok := range text {
		seen[tok] = struct{}{}
	}
	matched := 0
	for _, w := range queryWords {
		if _, ok := seen[strings.ToLower(w)]; ok {
			matched++
		}
	}
	return models.Clamp01(float64(matched) / float64(len(queryWords)))
}

func recommend(reliability float64) models.SourceRecommendation {
	switch {
	case reliability >= useThreshold:
		return models.RecommendUse
	case reliability >= cautionThreshold:
		return models.RecommendCaution
	default:
		return models.RecommendAvoid
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Host)
}
