// Package crew runs the iterative research loop: plan with the
// coordinator, fan out across specialists, persist partial findings,
// evaluate, and synthesize a final result.
//
// The loop is bounded by an iteration budget resolved from the directive
// (explicit budget, then depth label, then the configured default) and
// terminates early once the evaluator is satisfied.
package crew

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/assistkit/scout/pkg/config"
	"github.com/assistkit/scout/pkg/coordinator"
	"github.com/assistkit/scout/pkg/events"
	"github.com/assistkit/scout/pkg/models"
	"github.com/assistkit/scout/pkg/similarity"
	"github.com/assistkit/scout/pkg/specialist"
)

// ErrEmptyQuery rejects directives without a query.
var ErrEmptyQuery = errors.New("research query must not be empty")

const (
	// maxResultSources caps the deduplicated source list on a result.
	maxResultSources = 10

	// maxPriorFindings is how many related prior findings feed the planner.
	maxPriorFindings = 5

	// confidenceStopThreshold ends the loop when the evaluator is this sure.
	confidenceStopThreshold = 0.85

	// partialConfidencePerResult builds the partial-finding confidence;
	// the total never exceeds the partial ceiling.
	partialConfidencePerResult = 0.02

	// helpfulConfidenceThreshold: a result at least this confident counts
	// as positive ledger feedback for the sources behind it.
	helpfulConfidenceThreshold = 0.7
)

// Specialist is the executor contract the crew dispatches to.
// Satisfied by *specialist.Specialist.
type Specialist interface {
	Name() string
	Execute(ctx context.Context, req specialist.Request) *models.Fragment
}

// Persistence is the store subset the crew needs. Satisfied by *store.Store.
type Persistence interface {
	FindRelatedFindings(ctx context.Context, query string, limit int) ([]*models.Finding, error)
	SaveFinding(ctx context.Context, f *models.Finding) error
	EmbedFinding(ctx context.Context, f *models.Finding) error
}

// MemoryBridge receives qualifying final findings. Satisfied by
// *memory.Bridge.
type MemoryBridge interface {
	Inject(ctx context.Context, f *models.Finding) (bool, error)
}

// SourceAssessor scores result sources and learns from outcomes.
// Satisfied by *assessor.Assessor.
type SourceAssessor interface {
	Assess(ctx context.Context, src models.Source, topic string, queryWords []string) models.SourceAssessment
	RecordFeedback(ctx context.Context, src models.Source, helpful bool, topic string)
}

// Crew coordinates one research exploration at a time per call; it is
// safe to run multiple explorations concurrently.
type Crew struct {
	coord       *coordinator.Coordinator
	specialists map[string]Specialist
	store       Persistence
	bridge      MemoryBridge   // nil disables memory write-through
	bus         *events.Bus    // nil disables event emission
	assessor    SourceAssessor // nil skips source scoring
	cfg         *config.CrewConfig
}

// New wires a crew. The specialists map is keyed by specialist name.
func New(coord *coordinator.Coordinator, specialists map[string]Specialist, st Persistence, bridge MemoryBridge, bus *events.Bus, cfg *config.CrewConfig) *Crew {
	if cfg == nil {
		cfg = config.DefaultCrewConfig()
	}
	return &Crew{
		coord:       coord,
		specialists: specialists,
		store:       st,
		bridge:      bridge,
		bus:         bus,
		cfg:         cfg,
	}
}

// SetAssessor enables source-quality scoring on final results.
func (c *Crew) SetAssessor(a SourceAssessor) {
	c.assessor = a
}

// Explore runs the full research loop for one directive.
func (c *Crew) Explore(ctx context.Context, directive models.Directive) (*models.Result, error) {
	if strings.TrimSpace(directive.Query) == "" {
		return nil, ErrEmptyQuery
	}

	start := time.Now()
	budget := c.iterationBudget(directive)

	if budget == 0 {
		return &models.Result{
			Query:    directive.Query,
			Duration: time.Since(start),
		}, nil
	}

	prior := c.loadPriorKnowledge(ctx, directive.Query)
	plan := c.coord.Plan(ctx, directive, prior)

	var (
		accumulated []*models.Fragment
		pivot       *models.Pivot
		iterations  int
	)
	steps := plan.Steps

	for iterations < budget {
		iterations++
		c.publish(events.EventTypeIterationStart, directive.SessionID, map[string]any{
			"iteration": iterations,
			"steps":     len(steps),
		})

		fragments := c.dispatch(ctx, steps)
		accumulated = append(accumulated, fragments...)

		c.publish(events.EventTypeIterationComplete, directive.SessionID, map[string]any{
			"iteration": iterations,
			"fragments": len(fragments),
		})

		c.persistPartials(ctx, directive, fragments, iterations)

		eval := c.coord.Evaluate(ctx, directive, accumulated)
		if eval.Pivot != nil {
			pivot = eval.Pivot
			c.publish(events.EventTypePivotDetected, directive.SessionID, map[string]any{
				"alternative": pivot.Alternative,
				"urgency":     string(pivot.Urgency),
			})
		}

		if eval.Complete || eval.Confidence > confidenceStopThreshold || len(eval.NextSteps) == 0 {
			break
		}
		steps = eval.NextSteps
	}

	synth := c.coord.Synthesize(ctx, directive, accumulated, pivot)
	if synth.Pivot != nil {
		pivot = synth.Pivot
	}

	result := &models.Result{
		Query:       directive.Query,
		Summary:     synth.Summary,
		KeyFindings: synth.KeyFindings,
		Sources:     DeduplicateSources(collectSources(accumulated)),
		Confidence:  models.Clamp01(synth.Confidence),
		Iterations:  iterations,
		Tokens:      estimateTokens(accumulated, synth),
		Duration:    time.Since(start),
		Pivot:       pivot,
	}
	c.assessSources(ctx, directive.Query, result)

	c.persistFinal(ctx, directive, result, accumulated)

	c.publish(events.EventTypeResearchComplete, directive.SessionID, map[string]any{
		"query":      result.Query,
		"confidence": result.Confidence,
		"iterations": result.Iterations,
		"sources":    len(result.Sources),
		"finding_id": result.FindingID,
	})
	return result, nil
}

// iterationBudget resolves the loop bound: explicit wins, then the depth
// map, then the configured default.
func (c *Crew) iterationBudget(directive models.Directive) int {
	if directive.MaxIterations != nil {
		if *directive.MaxIterations < 0 {
			return 0
		}
		return *directive.MaxIterations
	}
	if directive.Depth.Valid() {
		return c.cfg.IterationsForDepth(string(directive.Depth))
	}
	return c.cfg.DefaultMaxIterations
}

// loadPriorKnowledge recalls related prior findings for the planner.
// Recall failures are non-fatal.
func (c *Crew) loadPriorKnowledge(ctx context.Context, query string) []models.PriorKnowledge {
	findings, err := c.store.FindRelatedFindings(ctx, query, maxPriorFindings)
	if err != nil {
		slog.Warn("Prior-knowledge recall failed", "error", err)
		return nil
	}
	now := time.Now()
	prior := make([]models.PriorKnowledge, 0, len(findings))
	for _, f := range findings {
		if f.IsPartial() {
			continue
		}
		prior = append(prior, models.PriorKnowledge{
			Query:      f.Query,
			Summary:    f.Summary,
			AgeHours:   now.Sub(f.CreatedAt).Hours(),
			Confidence: f.Confidence,
		})
	}
	return prior
}

// dispatch executes the current step list, in parallel or sequentially by
// priority, and returns the fragments in a stable per-step order. Steps
// naming an unregistered specialist are skipped with a warning.
func (c *Crew) dispatch(ctx context.Context, steps []models.PlanStep) []*models.Fragment {
	ordered := make([]models.PlanStep, len(steps))
	copy(ordered, steps)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	fragments := make([]*models.Fragment, len(ordered))
	run := func(i int) {
		step := ordered[i]
		sp, ok := c.specialists[step.Specialist]
		if !ok {
			slog.Warn("Plan step names an unregistered specialist, skipping", "specialist", step.Specialist)
			return
		}
		c.publish(events.EventTypeSpecialistDispatch, "", map[string]any{
			"specialist": step.Specialist,
			"query":      step.Query,
		})
		frag := sp.Execute(ctx, specialist.Request{
			Query:      step.Query,
			MaxResults: c.cfg.MaxResults,
			ScrapeTop:  c.cfg.ScrapeTop,
			Timeout:    c.cfg.SpecialistTimeout.Std(),
		})
		c.publish(events.EventTypeSpecialistComplete, "", map[string]any{
			"specialist": step.Specialist,
			"results":    len(frag.Results),
		})
		fragments[i] = frag
	}

	if c.cfg.Parallel() {
		var g errgroup.Group
		for i := range ordered {
			g.Go(func() error {
				run(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range ordered {
			run(i)
		}
	}

	out := fragments[:0]
	for _, frag := range fragments {
		if frag != nil {
			out = append(out, frag)
		}
	}
	return out
}

// persistPartials writes one low-confidence partial finding per fragment
// so interrupted research leaves a trace. Failures are non-fatal.
func (c *Crew) persistPartials(ctx context.Context, directive models.Directive, fragments []*models.Fragment, iteration int) {
	for _, frag := range fragments {
		if len(frag.Results) == 0 {
			continue
		}
		confidence := partialConfidencePerResult * float64(len(frag.Results))
		if confidence > models.PartialConfidenceCeiling {
			confidence = models.PartialConfidenceCeiling
		}
		partial := &models.Finding{
			Query:      directive.Query,
			Summary:    fmt.Sprintf("Partial results from %s (iteration %d)", frag.Specialist, iteration),
			Sources:    fragmentSources(frag),
			Domain:     frag.Specialist,
			Depth:      directive.Depth,
			Confidence: confidence,
			SessionID:  directive.SessionID,
		}
		if err := c.store.SaveFinding(ctx, partial); err != nil {
			slog.Warn("Failed to persist partial finding", "specialist", frag.Specialist, "error", err)
		}
	}
}

// persistFinal writes the synthesized finding, embeds it, and hands it to
// the memory bridge. Embed and inject failures are non-fatal.
func (c *Crew) persistFinal(ctx context.Context, directive models.Directive, result *models.Result, fragments []*models.Fragment) {
	finding := &models.Finding{
		Query:      directive.Query,
		Summary:    result.Summary,
		KeyPoints:  result.KeyFindings,
		Content:    buildFindingContent(result, fragments),
		Sources:    result.Sources,
		Domain:     coordinator.InferDomain(directive.Query),
		Depth:      directive.Depth,
		Confidence: result.Confidence,
		SessionID:  directive.SessionID,
	}

	if err := c.store.SaveFinding(ctx, finding); err != nil {
		slog.Error("Failed to persist final finding", "query", directive.Query, "error", err)
		return
	}
	result.FindingID = finding.ID

	if err := c.store.EmbedFinding(ctx, finding); err != nil {
		slog.Warn("Failed to embed finding", "finding_id", finding.ID, "error", err)
	}
	if c.bridge != nil {
		if _, err := c.bridge.Inject(ctx, finding); err != nil {
			slog.Warn("Memory write-through failed", "finding_id", finding.ID, "error", err)
		}
	}
}

// assessSources stamps a quality score on each kept source and feeds the
// ledger: sources that made a confident result count as helpful.
func (c *Crew) assessSources(ctx context.Context, query string, result *models.Result) {
	if c.assessor == nil {
		return
	}
	topic := coordinator.InferDomain(query)
	queryWords := similarity.Tokens(query)
	helpful := result.Confidence >= helpfulConfidenceThreshold
	for i := range result.Sources {
		assessment := c.assessor.Assess(ctx, result.Sources[i], topic, queryWords)
		quality := assessment.Reliability
		result.Sources[i].Quality = &quality
		c.assessor.RecordFeedback(ctx, result.Sources[i], helpful, topic)
	}
}

// buildFindingContent assembles the stored full content: the summary,
// key findings, and the scraped bodies, truncated to the content cap.
func buildFindingContent(result *models.Result, fragments []*models.Fragment) string {
	var b strings.Builder
	b.WriteString(result.Summary)
	for _, kf := range result.KeyFindings {
		b.WriteString("\n- ")
		b.WriteString(kf)
	}
	for _, frag := range fragments {
		for _, page := range frag.Scraped {
			fmt.Fprintf(&b, "\n\n[%s]\n%s", page.URL, page.Content)
			if b.Len() > models.MaxContentBytes {
				return models.TruncateContent(b.String())
			}
		}
	}
	return models.TruncateContent(b.String())
}

func (c *Crew) publish(eventType, sessionID string, payload map[string]any) {
	if c.bus == nil {
		return
	}
	ev := events.Event{
		Type:      eventType,
		SessionID: sessionID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	if sessionID != "" {
		c.bus.Publish(events.SessionChannel(sessionID), ev)
	}
	c.bus.Publish(events.GlobalResearchChannel, ev)
}

// collectSources flattens every fragment's results into sources.
func collectSources(fragments []*models.Fragment) []models.Source {
	var sources []models.Source
	for _, frag := range fragments {
		sources = append(sources, fragmentSources(frag)...)
	}
	return sources
}

func fragmentSources(frag *models.Fragment) []models.Source {
	out := make([]models.Source, 0, len(frag.Results))
	for _, r := range frag.Results {
		out = append(out, models.Source{
			Title:     r.Title,
			URL:       r.URL,
			Snippet:   r.Snippet,
			Source:    r.Source,
			Relevance: models.Clamp01(r.Relevance),
		})
	}
	return out
}

// DeduplicateSources collapses sources by normalized URL, keeping the
// highest-relevance representative, ordered by relevance, capped at the
// result source limit. The operation is idempotent.
func DeduplicateSources(sources []models.Source) []models.Source {
	best := make(map[string]models.Source)
	order := make([]string, 0, len(sources))
	for _, src := range sources {
		key := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(src.URL)), "/")
		if key == "" {
			continue
		}
		if existing, ok := best[key]; !ok {
			best[key] = src
			order = append(order, key)
		} else if src.Relevance > existing.Relevance {
			best[key] = src
		}
	}

	out := make([]models.Source, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Relevance > out[j].Relevance
	})
	if len(out) > maxResultSources {
		out = out[:maxResultSources]
	}
	return out
}

// estimateTokens approximates the token count of all emitted text.
func estimateTokens(fragments []*models.Fragment, synth *models.Synthesis) int {
	var n int
	for _, frag := range fragments {
		for _, r := range frag.Results {
			n += len(r.Title) + len(r.Snippet)
		}
		for _, page := range frag.Scraped {
			n += len(page.Content)
		}
	}
	n += len(synth.Summary)
	for _, kf := range synth.KeyFindings {
		n += len(kf)
	}
	return (n + 3) / 4
}
