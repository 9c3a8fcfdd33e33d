package watcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/assistkit/scout/pkg/models"
	"github.com/assistkit/scout/pkg/session"
)

// ErrNoDecision means the LLM reply carried no parseable JSON decision.
var ErrNoDecision = errors.New("no decision object in reply")

const maxPromptEvents = 8

const decisionSystemPrompt = `You decide whether an AI coding assistant's session would benefit from background research right now.

Respond with a single JSON object, nothing else:
{
  "shouldResearch": bool,
  "query": "search query if true",
  "researchType": "error" | "stuck" | "unknown_api" | "proactive" | "direct",
  "confidence": 0.0-1.0,
  "priority": 1-10,
  "reason": "one sentence",
  "alternativeHint": "optional better approach",
  "blockedBy": "optional blocker description"
}

Only recommend research that would concretely unblock or improve the current work. Prefer shouldResearch=false when the session is progressing normally.`

// buildDecisionPrompt renders the session snapshot for the decision call.
func buildDecisionPrompt(snap *session.WatcherContext) string {
	var b strings.Builder

	if snap.CurrentTask != "" {
		fmt.Fprintf(&b, "Current task: %s\n", snap.CurrentTask)
	}
	if snap.WorkingDir != "" {
		fmt.Fprintf(&b, "Working directory: %s\n", snap.WorkingDir)
	}
	if len(snap.Topics) > 0 {
		fmt.Fprintf(&b, "Active topics: %s\n", strings.Join(snap.Topics, ", "))
	}
	if snap.Stuck.IsStuck() {
		fmt.Fprintf(&b, "Stuck indicator: repeated %q tool calls %d times in a row\n",
			snap.Stuck.Focus, snap.Stuck.Repeats)
	}

	if len(snap.RecentErrors) > 0 {
		b.WriteString("\nRecent errors:\n")
		for _, e := range snap.RecentErrors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}

	if len(snap.ResearchHistory) > 0 {
		b.WriteString("\nAlready researched (do not repeat):\n")
		for _, rec := range snap.ResearchHistory {
			fmt.Fprintf(&b, "- %s\n", rec.Query)
		}
	}

	events := snap.RecentMessages
	if len(events) > maxPromptEvents {
		events = events[len(events)-maxPromptEvents:]
	}
	if len(events) > 0 {
		b.WriteString("\nRecent events:\n")
		for _, ev := range events {
			content := ev.Content
			if len(content) > 200 {
				content = content[:200]
			}
			fmt.Fprintf(&b, "[%s] %s\n", ev.Type, content)
		}
	}

	b.WriteString("\nShould background research be triggered for this session?")
	return b.String()
}

// parseDecision extracts the first balanced JSON object embedded in the
// reply and unmarshals it. Confidence and priority are clamped.
func parseDecision(reply string) (*models.Decision, error) {
	raw, ok := firstJSONObject(reply)
	if !ok {
		return nil, ErrNoDecision
	}

	var d models.Decision
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoDecision, err)
	}

	d.Confidence = models.Clamp01(d.Confidence)
	d.Priority = models.ClampPriority(d.Priority)
	d.Query = strings.TrimSpace(d.Query)
	if d.ShouldResearch && d.Query == "" {
		return nil, fmt.Errorf("%w: positive decision without query", ErrNoDecision)
	}
	return &d, nil
}

// firstJSONObject scans for the first brace-balanced {...} span, honoring
// string literals and escapes, so decisions wrapped in prose still parse.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
