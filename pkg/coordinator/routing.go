package coordinator

import (
	"regexp"
)

// Routing heuristics: keyword families that pull a query toward one of
// the three specialist domains.
var (
	codeQueryPattern = regexp.MustCompile(`(?i)\b(code|function|class|method|bug|error|exception|stack\s?trace|compile|build|implement|library|package|dependency|module|sdk|github|repo(sitory)?|npm|pip|cargo|crate|gem|golang|python|rust|java(script)?|typescript|syntax)\b`)

	docsQueryPattern = regexp.MustCompile(`(?i)\b(docs?|documentation|tutorial|guide|spec(ification)?|rfc|paper|research|wiki(pedia)?|reference|manual|concept|theory|architecture|design\s+pattern|how\s+does|what\s+is|explain)\b`)

	webQueryPattern = regexp.MustCompile(`(?i)\b(news|latest|release|version|announce(ment)?|compare|comparison|vs\.?|versus|best|alternative|pricing|benchmark|review)\b`)
)

// SelectSpecialists routes a query to specialist names by keyword match.
// No match falls back to the general-web specialist; if that is absent,
// every available specialist is selected.
func SelectSpecialists(query string, available []string) []string {
	has := make(map[string]bool, len(available))
	for _, name := range available {
		has[name] = true
	}

	var selected []string
	pick := func(name string) {
		if has[name] {
			selected = append(selected, name)
		}
	}

	if codeQueryPattern.MatchString(query) {
		pick("code")
	}
	if docsQueryPattern.MatchString(query) {
		pick("docs")
	}
	if webQueryPattern.MatchString(query) {
		pick("web")
	}

	if len(selected) > 0 {
		return selected
	}
	if has["web"] {
		return []string{"web"}
	}
	return append([]string(nil), available...)
}

// InferDomain tags a query with the best-matching domain label for
// finding storage. Ambiguous queries default to web.
func InferDomain(query string) string {
	switch {
	case codeQueryPattern.MatchString(query):
		return "code"
	case docsQueryPattern.MatchString(query):
		return "docs"
	default:
		return "web"
	}
}
