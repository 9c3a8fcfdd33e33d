// Package watcher decides when a tracked session deserves autonomous
// background research.
//
// Analyze runs a chain of cheap gates (master switch, trigger kind,
// hourly budget, per-session cooldown, duplicate suppression) before
// spending an LLM call on the actual decision. QuickAnalyze is the
// regex-only fast path over the latest tool output.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/assistkit/scout/pkg/config"
	"github.com/assistkit/scout/pkg/events"
	"github.com/assistkit/scout/pkg/llm"
	"github.com/assistkit/scout/pkg/models"
	"github.com/assistkit/scout/pkg/session"
)

const (
	// similarResearchWindow bounds duplicate suppression, both against the
	// session's own history and against the global finding store.
	similarResearchWindow = 30 * time.Minute

	// stuckThresholdBoost raises the bar for stuck-type decisions, capped
	// at stuckThresholdCap.
	stuckThresholdBoost = 0.1
	stuckThresholdCap   = 0.8

	// quickConfidence is the fixed confidence of regex-detected errors.
	quickConfidence = 0.85

	decisionMaxTokens   = 500
	decisionTemperature = 0.2
)

// Dedup is the store subset the watcher needs for global duplicate
// suppression. Satisfied by *store.Store.
type Dedup interface {
	HasRecentSimilarQuery(ctx context.Context, text string, window time.Duration) (bool, string, error)
}

// Watcher gates and produces autonomous research decisions.
type Watcher struct {
	llm     llm.Client
	tracker *session.Tracker
	store   Dedup
	bus     *events.Bus // nil disables event emission
	cfg     *config.ResearchConfig
	budget  *hourBudget

	mu        sync.Mutex
	cooldowns map[string]time.Time
}

// New wires a watcher from its collaborators.
func New(client llm.Client, tracker *session.Tracker, store Dedup, bus *events.Bus, cfg *config.ResearchConfig) *Watcher {
	if cfg == nil {
		cfg = config.DefaultResearchConfig()
	}
	return &Watcher{
		llm:       client,
		tracker:   tracker,
		store:     store,
		bus:       bus,
		cfg:       cfg,
		budget:    newHourBudget(cfg.MaxResearchPerHour),
		cooldowns: make(map[string]time.Time),
	}
}

// Analyze evaluates whether the session should trigger research now.
// It always returns a decision; negative decisions carry the gate or
// threshold that stopped them in Reason.
func (w *Watcher) Analyze(ctx context.Context, sessionID string, trigger models.Trigger) *models.Decision {
	if !w.cfg.Autonomous() {
		return models.NoResearch("autonomous research disabled")
	}
	if trigger == models.TriggerUserPrompt {
		return models.NoResearch("user prompts require an explicit research request")
	}
	if w.budget.exhausted() {
		return models.NoResearch("Global rate limit reached")
	}
	if w.cooldownActive(sessionID) {
		return models.NoResearch("Cooldown active")
	}

	snap, ok := w.tracker.GetWatcherContext(sessionID)
	if !ok {
		return models.NoResearch("unknown session")
	}

	if snap.CurrentTask != "" {
		if w.tracker.HasRecentSimilarResearch(sessionID, snap.CurrentTask, similarResearchWindow) {
			return models.NoResearch("similar research already ran for this session")
		}
		if dup, existing := w.globalDuplicate(ctx, snap.CurrentTask); dup {
			return models.NoResearch(fmt.Sprintf("similar finding already exists: %s", existing))
		}
	}

	w.tracker.MarkAnalyzed(sessionID)

	decision, err := w.decide(ctx, snap)
	if err != nil {
		slog.Warn("Watcher decision unavailable", "session_id", sessionID, "error", err)
		return models.NoResearch("decision unavailable")
	}
	if !decision.ShouldResearch {
		return decision
	}

	return w.accept(ctx, sessionID, decision)
}

// QuickAnalyze is the LLM-free fast path: regex error detection on the
// latest tool output. Returns nil when no error pattern matches.
func (w *Watcher) QuickAnalyze(ctx context.Context, sessionID string) *models.Decision {
	output := w.tracker.LatestToolOutput(sessionID)
	if output == "" {
		return nil
	}
	decision := detectError(output)
	if decision == nil {
		return nil
	}

	if !w.cfg.Autonomous() {
		return models.NoResearch("autonomous research disabled")
	}
	if w.budget.exhausted() {
		return models.NoResearch("Global rate limit reached")
	}
	if w.cooldownActive(sessionID) {
		return models.NoResearch("Cooldown active")
	}
	if w.tracker.HasRecentSimilarResearch(sessionID, decision.Query, similarResearchWindow) {
		return models.NoResearch("similar research already ran for this session")
	}

	return w.accept(ctx, sessionID, decision)
}

// accept runs the shared acceptance tail: threshold check, duplicate
// re-check against the proposed query, then stamping and emission.
func (w *Watcher) accept(ctx context.Context, sessionID string, decision *models.Decision) *models.Decision {
	threshold := w.thresholdFor(decision.ResearchType)
	if decision.Confidence < threshold {
		decision.ShouldResearch = false
		decision.Reason = fmt.Sprintf("confidence %.2f below %.2f threshold", decision.Confidence, threshold)
		return decision
	}

	if dup, existing := w.globalDuplicate(ctx, decision.Query); dup {
		decision.ShouldResearch = false
		decision.Reason = fmt.Sprintf("similar finding already exists: %s", existing)
		return decision
	}

	w.mu.Lock()
	w.cooldowns[sessionID] = time.Now()
	w.mu.Unlock()
	w.budget.spend()
	w.tracker.RecordResearch(sessionID, decision.Query)

	slog.Info("Research triggered",
		"session_id", sessionID,
		"type", string(decision.ResearchType),
		"confidence", decision.Confidence,
		"query", decision.Query)
	w.publishTriggered(sessionID, decision)
	return decision
}

// ResetCooldown clears the per-session cooldown, letting the next
// analysis trigger immediately.
func (w *Watcher) ResetCooldown(sessionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.cooldowns, sessionID)
}

// BudgetRemaining reports the triggers left in the current rolling hour
// (-1 when unlimited).
func (w *Watcher) BudgetRemaining() int {
	return w.budget.remaining()
}

func (w *Watcher) cooldownActive(sessionID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	last, ok := w.cooldowns[sessionID]
	if !ok {
		return false
	}
	return time.Since(last) < w.cfg.SessionCooldown.Std()
}

// thresholdFor applies the per-type confidence bar. Stuck decisions need
// more confidence since the signal is noisier.
func (w *Watcher) thresholdFor(t models.ResearchType) float64 {
	base := w.cfg.ConfidenceThreshold
	if base <= 0 {
		base = 0.6
	}
	if t == models.ResearchTypeStuck {
		boosted := base + stuckThresholdBoost
		if boosted > stuckThresholdCap {
			return stuckThresholdCap
		}
		return boosted
	}
	return base
}

func (w *Watcher) globalDuplicate(ctx context.Context, text string) (bool, string) {
	found, existing, err := w.store.HasRecentSimilarQuery(ctx, text, similarResearchWindow)
	if err != nil {
		slog.Warn("Duplicate check failed", "error", err)
		return false, ""
	}
	return found, existing
}

func (w *Watcher) decide(ctx context.Context, snap *session.WatcherContext) (*models.Decision, error) {
	resp, err := w.llm.Query(ctx, buildDecisionPrompt(snap), llm.QueryOptions{
		MaxTokens:   decisionMaxTokens,
		Temperature: decisionTemperature,
		System:      decisionSystemPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("decision query failed: %w", err)
	}
	decision, err := parseDecision(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("decision reply unparseable: %w", err)
	}
	return decision, nil
}

func (w *Watcher) publishTriggered(sessionID string, decision *models.Decision) {
	if w.bus == nil {
		return
	}
	ev := events.Event{
		Type:      events.EventTypeResearchTriggered,
		SessionID: sessionID,
		Payload: map[string]any{
			"query":      decision.Query,
			"type":       string(decision.ResearchType),
			"confidence": decision.Confidence,
			"priority":   decision.Priority,
		},
		Timestamp: time.Now(),
	}
	w.bus.Publish(events.SessionChannel(sessionID), ev)
	w.bus.Publish(events.GlobalResearchChannel, ev)
}
