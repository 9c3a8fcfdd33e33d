// Package coordinator drives the plan / evaluate / synthesize cycle
// around the specialist searches. Each operation is one LLM call with a
// strict labeled reply grammar, tolerant of malformed output; every operation has a
// mechanical fallback so the crew always gets a usable answer back.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/montanaflynn/stats"

	"github.com/assistkit/scout/pkg/llm"
	"github.com/assistkit/scout/pkg/models"
)

// CompletionThreshold is the mean result relevance above which the
// evaluator declares completion without an LLM call.
const CompletionThreshold = 0.85

const (
	maxPlanSteps      = 5
	maxPriorKnowledge = 3

	// Synthesis prompt caps.
	scrapedBodiesPerSpecialist    = 2
	scrapedBodyCap                = 1200
	maxResultsPerFragmentInPrompt = 8

	// mechanicalConfidenceCeiling caps the confidence of a synthesis
	// built without the LLM.
	mechanicalConfidenceCeiling = 0.4
)

// Coordinator plans, evaluates, and synthesizes for the crew.
type Coordinator struct {
	client    llm.Client
	available []string // specialist names in preference order
}

// New creates a coordinator over the gateway and the registered
// specialist names (dispatch-preference order).
func New(client llm.Client, available []string) *Coordinator {
	return &Coordinator{client: client, available: available}
}

// Available returns the specialist names the coordinator plans over.
func (c *Coordinator) Available() []string {
	return c.available
}

// Plan produces a search strategy for the directive. Any LLM or parse
// failure degrades to the fallback plan: one step per available
// specialist at decreasing priority.
func (c *Coordinator) Plan(ctx context.Context, directive models.Directive, prior []models.PriorKnowledge) *models.Plan {
	prompt := buildPlanPrompt(directive, prior, c.available)

	resp, err := c.client.Query(ctx, prompt, llm.QueryOptions{System: planSystem})
	if err != nil {
		slog.Warn("Planner LLM call failed, using fallback plan", "error", err)
		return c.fallbackPlan(directive.Query)
	}

	plan, err := parsePlan(resp.Text)
	if err != nil {
		slog.Warn("Planner reply unparseable, using fallback plan", "error", err)
		return c.fallbackPlan(directive.Query)
	}

	plan.Steps = c.normalizeSteps(plan.Steps)
	if len(plan.Steps) == 0 {
		return c.fallbackPlan(directive.Query)
	}
	return plan
}

// fallbackPlan issues the directive verbatim to every available
// specialist, priority descending from 8.
func (c *Coordinator) fallbackPlan(query string) *models.Plan {
	steps := make([]models.PlanStep, 0, len(c.available))
	for i, name := range c.available {
		steps = append(steps, models.PlanStep{
			Specialist: name,
			Query:      query,
			Priority:   models.ClampPriority(8 - i),
		})
	}
	return &models.Plan{
		Strategy: "broad specialist fan-out",
		Steps:    steps,
		Fallback: true,
	}
}

// normalizeSteps rewrites unknown specialist names to the routing choice
// for the step's query and drops steps with no usable target.
func (c *Coordinator) normalizeSteps(steps []models.PlanStep) []models.PlanStep {
	known := make(map[string]bool, len(c.available))
	for _, name := range c.available {
		known[name] = true
	}

	out := steps[:0]
	for _, step := range steps {
		if !known[step.Specialist] {
			routed := SelectSpecialists(step.Query, c.available)
			if len(routed) == 0 {
				continue
			}
			step.Specialist = routed[0]
		}
		out = append(out, step)
	}
	return out
}

// Evaluate judges the accumulated fragments. With at least two fragments
// whose mean result relevance beats the completion threshold it returns
// complete without consulting the LLM; an LLM or parse failure is also
// treated as complete so the crew never loops on a broken evaluator.
func (c *Coordinator) Evaluate(ctx context.Context, directive models.Directive, fragments []*models.Fragment) *models.Evaluation {
	if mean, ok := meanRelevance(fragments); ok && len(fragments) >= 2 && mean > CompletionThreshold {
		return &models.Evaluation{
			Complete:   true,
			Confidence: mean,
			Reasoning:  fmt.Sprintf("mean result relevance %.2f exceeds completion threshold", mean),
		}
	}

	prompt := buildEvaluatePrompt(directive, fragments)
	resp, err := c.client.Query(ctx, prompt, llm.QueryOptions{System: evaluateSystem})
	if err != nil {
		slog.Warn("Evaluator LLM call failed, treating research as complete", "error", err)
		return &models.Evaluation{Complete: true, Confidence: 0.5, Reasoning: "evaluator unavailable"}
	}

	eval, err := parseEvaluation(resp.Text)
	if err != nil {
		slog.Warn("Evaluator reply unparseable, treating research as complete")
		return &models.Evaluation{Complete: true, Confidence: 0.5, Reasoning: "evaluator reply unparseable"}
	}
	eval.NextSteps = c.normalizeSteps(eval.NextSteps)
	return eval
}

// Synthesize condenses all fragments into the final answer. LLM or parse
// failure degrades to a mechanical synthesis from the top results.
func (c *Coordinator) Synthesize(ctx context.Context, directive models.Directive, fragments []*models.Fragment, pivot *models.Pivot) *models.Synthesis {
	prompt := buildSynthesizePrompt(directive, fragments, pivot)

	resp, err := c.client.Query(ctx, prompt, llm.QueryOptions{System: synthesizeSystem})
	if err != nil {
		slog.Warn("Synthesizer LLM call failed, building mechanical synthesis", "error", err)
		return mechanicalSynthesis(directive, fragments, pivot)
	}

	synth, err := parseSynthesis(resp.Text)
	if err != nil {
		slog.Warn("Synthesizer reply unparseable, building mechanical synthesis")
		return mechanicalSynthesis(directive, fragments, pivot)
	}
	if synth.Pivot == nil {
		synth.Pivot = pivot
	}
	return synth
}

// mechanicalSynthesis assembles a summary from the top results without
// the LLM. Confidence never exceeds the mechanical ceiling.
func mechanicalSynthesis(directive models.Directive, fragments []*models.Fragment, pivot *models.Pivot) *models.Synthesis {
	var titles []string
	total := 0
	for _, frag := range fragments {
		total += len(frag.Results)
		for _, r := range frag.Results {
			if len(titles) < models.MaxKeyPoints && r.Title != "" {
				titles = append(titles, r.Title)
			}
		}
	}

	if total == 0 {
		return &models.Synthesis{
			Summary:    fmt.Sprintf("No sources were found for %q.", directive.Query),
			Confidence: 0,
			Pivot:      pivot,
			Mechanical: true,
		}
	}

	confidence := 0.1 * float64(total)
	if confidence > mechanicalConfidenceCeiling {
		confidence = mechanicalConfidenceCeiling
	}

	return &models.Synthesis{
		Summary: fmt.Sprintf("Collected %d sources across %d specialist searches for %q. Top sources: %s.",
			total, len(fragments), directive.Query, strings.Join(titles[:min(3, len(titles))], "; ")),
		KeyFindings: titles,
		Confidence:  confidence,
		Pivot:       pivot,
		Mechanical:  true,
	}
}

// meanRelevance averages the relevance of every result across fragments.
func meanRelevance(fragments []*models.Fragment) (float64, bool) {
	var relevances []float64
	for _, frag := range fragments {
		for _, r := range frag.Results {
			relevances = append(relevances, r.Relevance)
		}
	}
	if len(relevances) == 0 {
		return 0, false
	}
	mean, err := stats.Mean(relevances)
	if err != nil {
		return 0, false
	}
	return mean, true
}
