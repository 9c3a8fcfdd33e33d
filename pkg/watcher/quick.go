package watcher

import (
	"regexp"
	"strings"

	"github.com/assistkit/scout/pkg/models"
)

// quickPattern maps one recognizable failure shape to a query template.
// {0} is replaced with the first capture group.
type quickPattern struct {
	re    *regexp.Regexp
	query string
}

var quickPatterns = []quickPattern{
	{regexp.MustCompile(`(?m)ModuleNotFoundError: No module named '([^']+)'`), "python ModuleNotFoundError no module named {0}"},
	{regexp.MustCompile(`(?m)Cannot find module '([^']+)'`), "node cannot find module {0}"},
	{regexp.MustCompile(`(?m)panic: (.+)`), "golang panic {0}"},
	{regexp.MustCompile(`(?m)(?:^|\s)(\w*Error): (.+)`), "how to fix {0}: {1}"},
	{regexp.MustCompile(`(?im)segmentation fault`), "debugging segmentation fault causes"},
	{regexp.MustCompile(`(?im)ECONNREFUSED[ :]*([\d.:]+)?`), "ECONNREFUSED connection refused troubleshooting"},
	{regexp.MustCompile(`(?im)permission denied[: ]*(\S+)?`), "permission denied error {0}"},
	{regexp.MustCompile(`(?im)fatal: (.+)`), "git fatal {0}"},
}

const maxQuickQueryLen = 200

// detectError matches the latest tool output against the known failure
// patterns and proposes a research decision, or nil when nothing matches.
func detectError(output string) *models.Decision {
	for _, p := range quickPatterns {
		m := p.re.FindStringSubmatch(output)
		if m == nil {
			continue
		}
		query := p.query
		for i := 1; i < len(m); i++ {
			placeholder := "{" + string(rune('0'+i-1)) + "}"
			query = strings.ReplaceAll(query, placeholder, strings.TrimSpace(m[i]))
		}
		query = strings.TrimSpace(strings.Join(strings.Fields(query), " "))
		if len(query) > maxQuickQueryLen {
			query = query[:maxQuickQueryLen]
		}
		return &models.Decision{
			ShouldResearch: true,
			Query:          query,
			ResearchType:   models.ResearchTypeError,
			Confidence:     quickConfidence,
			Priority:       7,
			Reason:         "error pattern detected in tool output",
		}
	}
	return nil
}
