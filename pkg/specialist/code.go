package specialist

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/assistkit/scout/pkg/config"
	"github.com/assistkit/scout/pkg/models"
)

// Code search backends: GitHub repositories and code, Stack Exchange,
// and the npm / crates.io package registries. Repository and registry
// searches run unauthenticated; GitHub code search requires a token.

type githubRepoTool struct {
	api      *apiClient
	baseURL  string
	tokenEnv string
}

func newGitHubRepoTool(api *apiClient, cfg *config.ToolsConfig) *githubRepoTool {
	return &githubRepoTool{
		api:      api,
		baseURL:  "https://api.github.com",
		tokenEnv: cfg.GitHubTokenEnv,
	}
}

func (t *githubRepoTool) Name() string        { return "github-repos" }
func (t *githubRepoTool) Description() string { return "GitHub repository search" }

// Credential is empty: repository search works anonymously; a token, when
// present, is attached for the higher rate limit.
func (t *githubRepoTool) Credential() string { return "" }

func (t *githubRepoTool) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	var reply struct {
		Items []struct {
			FullName    string  `json:"full_name"`
			HTMLURL     string  `json:"html_url"`
			Description string  `json:"description"`
			Stars       int     `json:"stargazers_count"`
			Score       float64 `json:"score"`
		} `json:"items"`
	}

	endpoint := fmt.Sprintf("%s/search/repositories?q=%s&per_page=%d&sort=stars",
		t.baseURL, url.QueryEscape(query), maxResults)
	if err := t.api.getJSON(ctx, endpoint, githubHeaders(t.tokenEnv), &reply); err != nil {
		return nil, fmt.Errorf("github repo search: %w", err)
	}

	out := make([]models.SearchResult, 0, len(reply.Items))
	for i, r := range reply.Items {
		out = append(out, models.SearchResult{
			Title:     r.FullName,
			URL:       r.HTMLURL,
			Snippet:   r.Description,
			Source:    t.Name(),
			Relevance: rankRelevance(i),
			Metadata:  map[string]string{"stars": fmt.Sprint(r.Stars)},
		})
	}
	return out, nil
}

type githubCodeTool struct {
	api      *apiClient
	baseURL  string
	tokenEnv string
}

func newGitHubCodeTool(api *apiClient, cfg *config.ToolsConfig) *githubCodeTool {
	return &githubCodeTool{
		api:      api,
		baseURL:  "https://api.github.com",
		tokenEnv: cfg.GitHubTokenEnv,
	}
}

func (t *githubCodeTool) Name() string        { return "github-code" }
func (t *githubCodeTool) Description() string { return "GitHub code search" }
func (t *githubCodeTool) Credential() string  { return t.tokenEnv }

func (t *githubCodeTool) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	var reply struct {
		Items []struct {
			Name       string `json:"name"`
			Path       string `json:"path"`
			HTMLURL    string `json:"html_url"`
			Repository struct {
				FullName string `json:"full_name"`
			} `json:"repository"`
		} `json:"items"`
	}

	endpoint := fmt.Sprintf("%s/search/code?q=%s&per_page=%d",
		t.baseURL, url.QueryEscape(query), maxResults)
	if err := t.api.getJSON(ctx, endpoint, githubHeaders(t.tokenEnv), &reply); err != nil {
		return nil, fmt.Errorf("github code search: %w", err)
	}

	out := make([]models.SearchResult, 0, len(reply.Items))
	for i, r := range reply.Items {
		out = append(out, models.SearchResult{
			Title:     r.Repository.FullName + "/" + r.Path,
			URL:       r.HTMLURL,
			Snippet:   "code match in " + r.Repository.FullName,
			Source:    t.Name(),
			Relevance: rankRelevance(i),
		})
	}
	return out, nil
}

func githubHeaders(tokenEnv string) map[string]string {
	headers := map[string]string{
		"Accept": "application/vnd.github+json",
	}
	if token := os.Getenv(tokenEnv); token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return headers
}

type stackExchangeTool struct {
	api     *apiClient
	baseURL string
	keyEnv  string
	site    string
}

func newStackExchangeTool(api *apiClient, cfg *config.ToolsConfig) *stackExchangeTool {
	return &stackExchangeTool{
		api:     api,
		baseURL: "https://api.stackexchange.com/2.3",
		keyEnv:  cfg.StackExchangeKeyEnv,
		site:    "stackoverflow",
	}
}

func (t *stackExchangeTool) Name() string        { return "stackexchange" }
func (t *stackExchangeTool) Description() string { return "Stack Overflow question search" }

// Credential is empty: the API allows keyless access at a reduced quota.
func (t *stackExchangeTool) Credential() string { return "" }

func (t *stackExchangeTool) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	var reply struct {
		Items []struct {
			Title       string `json:"title"`
			Link        string `json:"link"`
			Score       int    `json:"score"`
			IsAnswered  bool   `json:"is_answered"`
			AnswerCount int    `json:"answer_count"`
		} `json:"items"`
	}

	endpoint := fmt.Sprintf("%s/search/advanced?order=desc&sort=relevance&q=%s&site=%s&pagesize=%d",
		t.baseURL, url.QueryEscape(query), t.site, maxResults)
	if key := os.Getenv(t.keyEnv); key != "" {
		endpoint += "&key=" + url.QueryEscape(key)
	}
	if err := t.api.getJSON(ctx, endpoint, nil, &reply); err != nil {
		return nil, fmt.Errorf("stackexchange search: %w", err)
	}

	out := make([]models.SearchResult, 0, len(reply.Items))
	for i, r := range reply.Items {
		relevance := rankRelevance(i)
		if r.IsAnswered {
			relevance = models.Clamp01(relevance + 0.05)
		}
		out = append(out, models.SearchResult{
			Title:     collapseSpace(stripTags(r.Title)),
			URL:       r.Link,
			Snippet:   fmt.Sprintf("score %d, %d answers", r.Score, r.AnswerCount),
			Source:    t.Name(),
			Relevance: relevance,
		})
	}
	return out, nil
}

type npmTool struct {
	api     *apiClient
	baseURL string
}

func newNPMTool(api *apiClient) *npmTool {
	return &npmTool{api: api, baseURL: "https://registry.npmjs.org"}
}

func (t *npmTool) Name() string        { return "npm" }
func (t *npmTool) Description() string { return "npm package registry search" }
func (t *npmTool) Credential() string  { return "" }

func (t *npmTool) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	var reply struct {
		Objects []struct {
			Package struct {
				Name        string `json:"name"`
				Description string `json:"description"`
				Links       struct {
					NPM string `json:"npm"`
				} `json:"links"`
			} `json:"package"`
			Score struct {
				Final float64 `json:"final"`
			} `json:"score"`
		} `json:"objects"`
	}

	endpoint := fmt.Sprintf("%s/-/v1/search?text=%s&size=%d",
		t.baseURL, url.QueryEscape(query), maxResults)
	if err := t.api.getJSON(ctx, endpoint, nil, &reply); err != nil {
		return nil, fmt.Errorf("npm search: %w", err)
	}

	out := make([]models.SearchResult, 0, len(reply.Objects))
	for _, r := range reply.Objects {
		link := r.Package.Links.NPM
		if link == "" {
			link = "https://www.npmjs.com/package/" + r.Package.Name
		}
		out = append(out, models.SearchResult{
			Title:     r.Package.Name,
			URL:       link,
			Snippet:   r.Package.Description,
			Source:    t.Name(),
			Relevance: models.Clamp01(r.Score.Final),
		})
	}
	return out, nil
}

type cratesTool struct {
	api     *apiClient
	baseURL string
}

func newCratesTool(api *apiClient) *cratesTool {
	return &cratesTool{api: api, baseURL: "https://crates.io/api/v1"}
}

func (t *cratesTool) Name() string        { return "crates" }
func (t *cratesTool) Description() string { return "crates.io registry search" }
func (t *cratesTool) Credential() string  { return "" }

func (t *cratesTool) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	var reply struct {
		Crates []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Downloads   int64  `json:"downloads"`
		} `json:"crates"`
	}

	endpoint := fmt.Sprintf("%s/crates?q=%s&per_page=%d",
		t.baseURL, url.QueryEscape(query), maxResults)
	if err := t.api.getJSON(ctx, endpoint, nil, &reply); err != nil {
		return nil, fmt.Errorf("crates search: %w", err)
	}

	out := make([]models.SearchResult, 0, len(reply.Crates))
	for i, r := range reply.Crates {
		out = append(out, models.SearchResult{
			Title:     r.Name,
			URL:       "https://crates.io/crates/" + r.Name,
			Snippet:   r.Description,
			Source:    t.Name(),
			Relevance: rankRelevance(i),
			Metadata:  map[string]string{"downloads": fmt.Sprint(r.Downloads)},
		})
	}
	return out, nil
}
