package coordinator

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/assistkit/scout/pkg/models"
)

// ErrUnparseable is returned when a reply carries none of the expected
// labeled sections. Callers fall back per component policy.
var ErrUnparseable = errors.New("reply did not match the expected format")

// Compiled once: labeled-field extraction patterns. Parsers are
// deliberately forgiving about casing, markdown bold markers, and field
// order; missing fields default and numeric fields clamp.
var (
	stepPattern = regexp.MustCompile(`(?i)specialist\s*:\s*\*{0,2}(\w+)\*{0,2}[\s,;]+query\s*:\s*"([^"]+)"[\s,;]*(?:priority\s*:\s*(\d+))?`)

	// Step lines without quoted queries: everything between query: and a
	// trailing priority field.
	looseStepPattern = regexp.MustCompile(`(?i)specialist\s*:\s*\*{0,2}(\w+)\*{0,2}[\s,;]+query\s*:\s*(.+?)[\s,;]+priority\s*:\s*(\d+)`)

	pivotPattern = regexp.MustCompile(`(?i)alternative\s*:\s*"?([^"\n]+?)"?[\s,;]+reason\s*:\s*"?([^"\n]+?)"?(?:[\s,;]+urgency\s*:\s*(\w+))?\s*$`)

	boolTruePattern = regexp.MustCompile(`(?i)^\s*(true|yes|y|complete|done)\b`)

	floatPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

// sectionLabels lists every label any grammar uses, so section capture
// knows where one section ends.
var sectionLabels = []string{
	"STRATEGY", "RATIONALE", "STEPS",
	"COMPLETE", "CONFIDENCE", "REASONING", "NEXT_STEPS", "PIVOT",
	"SUMMARY", "KEY_FINDINGS",
}

// extractSections splits a reply into its labeled sections. A section
// starts at a line beginning with "LABEL:" (case-insensitive, optional
// markdown bold) and runs until the next label or the end of the text.
func extractSections(text string) map[string]string {
	sections := make(map[string]string)
	lines := strings.Split(text, "\n")

	var current string
	var content []string
	flush := func() {
		if current != "" {
			sections[current] = strings.TrimSpace(strings.Join(content, "\n"))
		}
		content = nil
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		stripped := strings.Trim(line, "*# ")

		label, rest, found := matchLabel(stripped)
		if found {
			flush()
			current = label
			if rest != "" {
				content = append(content, rest)
			}
			continue
		}
		if current != "" {
			content = append(content, line)
		}
	}
	flush()
	return sections
}

func matchLabel(line string) (label, rest string, found bool) {
	upper := strings.ToUpper(line)
	for _, l := range sectionLabels {
		if strings.HasPrefix(upper, l) {
			after := line[len(l):]
			after = strings.TrimLeft(after, "* ")
			if !strings.HasPrefix(after, ":") {
				continue
			}
			return l, strings.TrimSpace(after[1:]), true
		}
	}
	return "", "", false
}

// parseSteps reads plan-step lines out of a section body.
func parseSteps(body string) []models.PlanStep {
	var steps []models.PlanStep
	for _, line := range strings.Split(body, "\n") {
		m := stepPattern.FindStringSubmatch(line)
		if m == nil {
			m = looseStepPattern.FindStringSubmatch(line)
		}
		if m == nil {
			continue
		}
		priority := 5
		if len(m) > 3 && m[3] != "" {
			if n, err := strconv.Atoi(m[3]); err == nil {
				priority = n
			}
		}
		query := strings.TrimSpace(strings.Trim(m[2], `"`))
		if query == "" {
			continue
		}
		steps = append(steps, models.PlanStep{
			Specialist: strings.ToLower(m[1]),
			Query:      query,
			Priority:   models.ClampPriority(priority),
		})
	}
	return steps
}

// parseFloat recovers the first numeric token in a section, clamped to
// [0, 1]. Missing numbers return the fallback.
func parseFloat(body string, fallback float64) float64 {
	m := floatPattern.FindString(body)
	if m == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return fallback
	}
	return models.Clamp01(v)
}

// parsePivot reads an optional pivot out of a PIVOT section. "none" and
// empty bodies yield nil.
func parsePivot(body string) *models.Pivot {
	body = strings.TrimSpace(body)
	if body == "" || strings.EqualFold(body, "none") || strings.EqualFold(body, "n/a") {
		return nil
	}
	m := pivotPattern.FindStringSubmatch(strings.ReplaceAll(body, "\n", " "))
	if m == nil {
		return nil
	}
	urgency := models.PivotUrgencyMedium
	switch strings.ToLower(m[3]) {
	case "low":
		urgency = models.PivotUrgencyLow
	case "high":
		urgency = models.PivotUrgencyHigh
	}
	return &models.Pivot{
		Alternative: strings.TrimSpace(m[1]),
		Reason:      strings.TrimSpace(m[2]),
		Urgency:     urgency,
	}
}

// firstLine keeps a section usable as a one-line field.
func firstLine(body string) string {
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		return strings.TrimSpace(body[:i])
	}
	return body
}

// parsePlan parses a STRATEGY/RATIONALE/STEPS reply.
func parsePlan(text string) (*models.Plan, error) {
	sections := extractSections(text)

	steps := parseSteps(sections["STEPS"])
	if len(steps) == 0 {
		// Some models emit step lines without the STEPS header.
		steps = parseSteps(text)
	}
	if len(steps) == 0 {
		return nil, ErrUnparseable
	}
	if len(steps) > maxPlanSteps {
		steps = steps[:maxPlanSteps]
	}

	return &models.Plan{
		Strategy:  firstLine(sections["STRATEGY"]),
		Rationale: firstLine(sections["RATIONALE"]),
		Steps:     steps,
	}, nil
}

// parseEvaluation parses a COMPLETE/CONFIDENCE/REASONING/NEXT_STEPS/PIVOT
// reply.
func parseEvaluation(text string) (*models.Evaluation, error) {
	sections := extractSections(text)

	completeBody, hasComplete := sections["COMPLETE"]
	_, hasConfidence := sections["CONFIDENCE"]
	if !hasComplete && !hasConfidence {
		return nil, ErrUnparseable
	}

	return &models.Evaluation{
		Complete:   boolTruePattern.MatchString(completeBody),
		Confidence: parseFloat(sections["CONFIDENCE"], 0.5),
		Reasoning:  firstLine(sections["REASONING"]),
		NextSteps:  parseSteps(sections["NEXT_STEPS"]),
		Pivot:      parsePivot(sections["PIVOT"]),
	}, nil
}

// parseSynthesis parses a SUMMARY/KEY_FINDINGS/CONFIDENCE reply.
func parseSynthesis(text string) (*models.Synthesis, error) {
	sections := extractSections(text)

	summary := strings.TrimSpace(sections["SUMMARY"])
	if summary == "" {
		return nil, ErrUnparseable
	}

	var keyFindings []string
	for _, line := range strings.Split(sections["KEY_FINDINGS"], "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•"))
		if line != "" {
			keyFindings = append(keyFindings, line)
		}
	}
	if len(keyFindings) > models.MaxKeyPoints {
		keyFindings = keyFindings[:models.MaxKeyPoints]
	}

	return &models.Synthesis{
		Summary:     summary,
		KeyFindings: keyFindings,
		Confidence:  parseFloat(sections["CONFIDENCE"], 0.5),
		Pivot:       parsePivot(sections["PIVOT"]),
	}, nil
}
