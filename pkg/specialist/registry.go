package specialist

import (
	"github.com/assistkit/scout/pkg/config"
	"github.com/assistkit/scout/pkg/models"
	"github.com/assistkit/scout/pkg/scrape"
)

// BuildSpecialists assembles the standard three-specialist roster with
// every backend tool wired. Tools whose credentials are unset simply sit
// out; a specialist left with no eligible tools returns empty fragments.
func BuildSpecialists(cfg *config.ToolsConfig, fetcher *scrape.Fetcher) map[string]*Specialist {
	if cfg == nil {
		cfg = config.DefaultToolsConfig()
	}
	api := newAPIClient(cfg)

	brave := newBraveTool(api, cfg)
	serper := newSerperTool(api, cfg)
	tavily := newTavilyTool(api, cfg)

	web := New("web", models.DomainWeb, fetcher,
		brave, serper, tavily)

	code := New("code", models.DomainCode, fetcher,
		newGitHubRepoTool(api, cfg),
		newGitHubCodeTool(api, cfg),
		newStackExchangeTool(api, cfg),
		newNPMTool(api),
		newCratesTool(api),
		newSiteSearchTool(brave, "web-code-sites", "site:github.com OR site:stackoverflow.com"))

	docs := New("docs", models.DomainDocs, fetcher,
		newWikipediaTool(api),
		newArxivTool(api),
		newHackerNewsTool(api),
		newSiteSearchTool(brave, "web-mdn", "site:developer.mozilla.org"))

	return map[string]*Specialist{
		web.Name():  web,
		code.Name(): code,
		docs.Name(): docs,
	}
}
