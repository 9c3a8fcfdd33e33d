package coordinator

import (
	"fmt"
	"strings"

	"github.com/assistkit/scout/pkg/models"
)

// planSystem frames the planner role.
const planSystem = `You are the research planner for an autonomous research service. You break a research request into targeted search steps for specialist backends.`

// planReplyFormat is the labeled grammar the planner must answer in.
const planReplyFormat = `Reply in exactly this format:
STRATEGY: <one line describing the overall search strategy>
RATIONALE: <one line explaining why>
STEPS:
- specialist:<web|code|docs> query:"<search query>" priority:<1-10>
- specialist:<web|code|docs> query:"<search query>" priority:<1-10>

Use 1 to 4 steps. Higher priority runs first in sequential mode.`

// evaluateSystem frames the evaluator role.
const evaluateSystem = `You are the research evaluator. You judge whether accumulated search results answer the original request, and propose follow-up steps when they do not.`

// evaluateReplyFormat is the labeled grammar the evaluator must answer in.
const evaluateReplyFormat = `Reply in exactly this format:
COMPLETE: <true|false>
CONFIDENCE: <0.0-1.0>
REASONING: <one line>
NEXT_STEPS:
- specialist:<web|code|docs> query:"<search query>" priority:<1-10>
PIVOT: alternative:"<different approach>" reason:"<why>" urgency:<low|medium|high>

Omit NEXT_STEPS when complete. Omit PIVOT unless the user's phrased problem is better solved a different way.`

// synthesizeSystem frames the synthesizer role.
const synthesizeSystem = `You are the research synthesizer. You condense search results and page content into a short answer an AI coding assistant can act on.`

// synthesizeReplyFormat is the labeled grammar the synthesizer must answer in.
const synthesizeReplyFormat = `Reply in exactly this format:
SUMMARY: <2-4 sentences answering the request>
KEY_FINDINGS:
- <finding>
- <finding>
CONFIDENCE: <0.0-1.0>

Use 5 to 8 key findings when the material supports them.`

// buildPlanPrompt assembles the planner prompt from the directive and any
// prior findings worth reusing.
func buildPlanPrompt(directive models.Directive, prior []models.PriorKnowledge, available []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Research request: %s\n", directive.Query)
	if directive.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n", truncate(directive.Context, 600))
	}
	fmt.Fprintf(&b, "\nAvailable specialists: %s\n", strings.Join(available, ", "))

	if len(prior) > 0 {
		b.WriteString("\nPrior research on related questions:\n")
		for i, p := range prior {
			if i >= maxPriorKnowledge {
				break
			}
			fmt.Fprintf(&b, "- %q (%.0fh ago, confidence %.2f): %s\n",
				p.Query, p.AgeHours, p.Confidence, truncate(p.Summary, 200))
		}
		b.WriteString("Plan around what is already known; do not re-search answered questions.\n")
	}

	b.WriteString("\n")
	b.WriteString(planReplyFormat)
	return b.String()
}

// buildEvaluatePrompt assembles the evaluator prompt over the accumulated
// fragments.
func buildEvaluatePrompt(directive models.Directive, fragments []*models.Fragment) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Research request: %s\n\n", directive.Query)
	b.WriteString("Accumulated results:\n")
	b.WriteString(formatFragments(fragments, 0, 0))
	b.WriteString("\n")
	b.WriteString(evaluateReplyFormat)
	return b.String()
}

// buildSynthesizePrompt assembles the synthesizer prompt: every result's
// title/snippet/URL plus the first scraped bodies per specialist, capped.
func buildSynthesizePrompt(directive models.Directive, fragments []*models.Fragment, pivot *models.Pivot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Research request: %s\n", directive.Query)
	if directive.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n", truncate(directive.Context, 600))
	}
	b.WriteString("\nCollected material:\n")
	b.WriteString(formatFragments(fragments, scrapedBodiesPerSpecialist, scrapedBodyCap))

	if pivot != nil {
		fmt.Fprintf(&b, "\nDuring research an alternative approach was flagged: %q (%s). Mention it if the findings support it.\n",
			pivot.Alternative, pivot.Reason)
	}

	b.WriteString("\n")
	b.WriteString(synthesizeReplyFormat)
	return b.String()
}

// formatFragments renders fragments for a prompt. maxBodies > 0 includes
// up to that many scraped bodies per specialist, each cut to bodyCap bytes.
func formatFragments(fragments []*models.Fragment, maxBodies, bodyCap int) string {
	var b strings.Builder
	for _, frag := range fragments {
		fmt.Fprintf(&b, "\n[%s] %d results\n", frag.Specialist, len(frag.Results))
		for i, r := range frag.Results {
			if i >= maxResultsPerFragmentInPrompt {
				break
			}
			fmt.Fprintf(&b, "- %s (%s, relevance %.2f)\n", r.Title, r.URL, r.Relevance)
			if r.Snippet != "" {
				fmt.Fprintf(&b, "  %s\n", truncate(r.Snippet, 200))
			}
		}
		for i, page := range frag.Scraped {
			if i >= maxBodies {
				break
			}
			fmt.Fprintf(&b, "\nContent of %s:\n%s\n", page.URL, truncate(page.Content, bodyCap))
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
