package specialist

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/assistkit/scout/pkg/config"
	"github.com/assistkit/scout/pkg/models"
)

// Web search backends, in preference order: Brave, Serper, Tavily. Each
// needs its own API key; the specialist skips tools whose key is unset.

type braveTool struct {
	api     *apiClient
	baseURL string
	keyEnv  string
}

func newBraveTool(api *apiClient, cfg *config.ToolsConfig) *braveTool {
	return &braveTool{
		api:     api,
		baseURL: "https://api.search.brave.com/res/v1/web/search",
		keyEnv:  cfg.BraveAPIKeyEnv,
	}
}

func (t *braveTool) Name() string        { return "brave" }
func (t *braveTool) Description() string { return "Brave web search" }
func (t *braveTool) Credential() string  { return t.keyEnv }

func (t *braveTool) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	var reply struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}

	endpoint := fmt.Sprintf("%s?q=%s&count=%d", t.baseURL, url.QueryEscape(query), maxResults)
	err := t.api.getJSON(ctx, endpoint, map[string]string{
		"X-Subscription-Token": os.Getenv(t.keyEnv),
	}, &reply)
	if err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}

	out := make([]models.SearchResult, 0, len(reply.Web.Results))
	for i, r := range reply.Web.Results {
		out = append(out, models.SearchResult{
			Title:     collapseSpace(stripTags(r.Title)),
			URL:       r.URL,
			Snippet:   collapseSpace(stripTags(r.Description)),
			Source:    t.Name(),
			Relevance: rankRelevance(i),
		})
	}
	return out, nil
}

type serperTool struct {
	api     *apiClient
	baseURL string
	keyEnv  string
}

func newSerperTool(api *apiClient, cfg *config.ToolsConfig) *serperTool {
	return &serperTool{
		api:     api,
		baseURL: "https://google.serper.dev/search",
		keyEnv:  cfg.SerperAPIKeyEnv,
	}
}

func (t *serperTool) Name() string        { return "serper" }
func (t *serperTool) Description() string { return "Google results via Serper" }
func (t *serperTool) Credential() string  { return t.keyEnv }

func (t *serperTool) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	var reply struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}

	body := map[string]any{"q": query, "num": maxResults}
	err := t.api.postJSON(ctx, t.baseURL, map[string]string{
		"X-API-KEY": os.Getenv(t.keyEnv),
	}, body, &reply)
	if err != nil {
		return nil, fmt.Errorf("serper search: %w", err)
	}

	out := make([]models.SearchResult, 0, len(reply.Organic))
	for i, r := range reply.Organic {
		out = append(out, models.SearchResult{
			Title:     r.Title,
			URL:       r.Link,
			Snippet:   r.Snippet,
			Source:    t.Name(),
			Relevance: rankRelevance(i),
		})
	}
	return out, nil
}

type tavilyTool struct {
	api     *apiClient
	baseURL string
	keyEnv  string
}

func newTavilyTool(api *apiClient, cfg *config.ToolsConfig) *tavilyTool {
	return &tavilyTool{
		api:     api,
		baseURL: "https://api.tavily.com/search",
		keyEnv:  cfg.TavilyAPIKeyEnv,
	}
}

func (t *tavilyTool) Name() string        { return "tavily" }
func (t *tavilyTool) Description() string { return "Tavily research search" }
func (t *tavilyTool) Credential() string  { return t.keyEnv }

func (t *tavilyTool) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	var reply struct {
		Results []struct {
			Title   string  `json:"title"`
			URL     string  `json:"url"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}

	body := map[string]any{"query": query, "max_results": maxResults}
	err := t.api.postJSON(ctx, t.baseURL, map[string]string{
		"Authorization": "Bearer " + os.Getenv(t.keyEnv),
	}, body, &reply)
	if err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}

	out := make([]models.SearchResult, 0, len(reply.Results))
	for i, r := range reply.Results {
		relevance := models.Clamp01(r.Score)
		if relevance == 0 {
			relevance = rankRelevance(i)
		}
		out = append(out, models.SearchResult{
			Title:     r.Title,
			URL:       r.URL,
			Snippet:   collapseSpace(r.Content),
			Source:    t.Name(),
			Relevance: relevance,
		})
	}
	return out, nil
}

// siteSearchTool restricts a general web tool to specific sites. Used as
// the code and docs fallback when the dedicated backends find nothing or
// lack credentials of their own.
type siteSearchTool struct {
	inner    Tool
	name     string
	restrict string
}

func newSiteSearchTool(inner Tool, name, restrict string) *siteSearchTool {
	return &siteSearchTool{inner: inner, name: name, restrict: restrict}
}

func (t *siteSearchTool) Name() string        { return t.name }
func (t *siteSearchTool) Description() string { return "site-restricted " + t.inner.Name() }
func (t *siteSearchTool) Credential() string  { return t.inner.Credential() }

func (t *siteSearchTool) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	results, err := t.inner.Search(ctx, query+" "+t.restrict, maxResults)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Source = t.name
	}
	return results, nil
}
