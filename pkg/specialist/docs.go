package specialist

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"

	"github.com/assistkit/scout/pkg/models"
)

// Documentation backends: Wikipedia, arXiv, and Hacker News (Algolia).
// All three are keyless public APIs.

type wikipediaTool struct {
	api     *apiClient
	baseURL string
}

func newWikipediaTool(api *apiClient) *wikipediaTool {
	return &wikipediaTool{api: api, baseURL: "https://en.wikipedia.org/w/api.php"}
}

func (t *wikipediaTool) Name() string        { return "wikipedia" }
func (t *wikipediaTool) Description() string { return "Wikipedia article search" }
func (t *wikipediaTool) Credential() string  { return "" }

func (t *wikipediaTool) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	var reply struct {
		Query struct {
			Search []struct {
				Title   string `json:"title"`
				Snippet string `json:"snippet"`
			} `json:"search"`
		} `json:"query"`
	}

	endpoint := fmt.Sprintf("%s?action=query&list=search&format=json&srsearch=%s&srlimit=%d",
		t.baseURL, url.QueryEscape(query), maxResults)
	if err := t.api.getJSON(ctx, endpoint, nil, &reply); err != nil {
		return nil, fmt.Errorf("wikipedia search: %w", err)
	}

	out := make([]models.SearchResult, 0, len(reply.Query.Search))
	for i, r := range reply.Query.Search {
		out = append(out, models.SearchResult{
			Title:     r.Title,
			URL:       "https://en.wikipedia.org/wiki/" + url.PathEscape(strings.ReplaceAll(r.Title, " ", "_")),
			Snippet:   collapseSpace(stripTags(r.Snippet)),
			Source:    t.Name(),
			Relevance: rankRelevance(i),
		})
	}
	return out, nil
}

type arxivTool struct {
	api     *apiClient
	baseURL string
}

func newArxivTool(api *apiClient) *arxivTool {
	return &arxivTool{api: api, baseURL: "https://export.arxiv.org/api/query"}
}

func (t *arxivTool) Name() string        { return "arxiv" }
func (t *arxivTool) Description() string { return "arXiv paper search" }
func (t *arxivTool) Credential() string  { return "" }

// arxivFeed is the subset of the Atom reply the tool reads.
type arxivFeed struct {
	Entries []struct {
		ID      string `xml:"id"`
		Title   string `xml:"title"`
		Summary string `xml:"summary"`
	} `xml:"entry"`
}

func (t *arxivTool) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	endpoint := fmt.Sprintf("%s?search_query=all:%s&max_results=%d",
		t.baseURL, url.QueryEscape(query), maxResults)
	body, err := t.api.getRaw(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("arxiv search: %w", err)
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("arxiv feed: %w", err)
	}

	out := make([]models.SearchResult, 0, len(feed.Entries))
	for i, e := range feed.Entries {
		snippet := collapseSpace(e.Summary)
		if len(snippet) > 300 {
			snippet = snippet[:300]
		}
		out = append(out, models.SearchResult{
			Title:     collapseSpace(e.Title),
			URL:       strings.TrimSpace(e.ID),
			Snippet:   snippet,
			Source:    t.Name(),
			Relevance: rankRelevance(i),
		})
	}
	return out, nil
}

type hackerNewsTool struct {
	api     *apiClient
	baseURL string
}

func newHackerNewsTool(api *apiClient) *hackerNewsTool {
	return &hackerNewsTool{api: api, baseURL: "https://hn.algolia.com/api/v1"}
}

func (t *hackerNewsTool) Name() string        { return "hackernews" }
func (t *hackerNewsTool) Description() string { return "Hacker News discussion search" }
func (t *hackerNewsTool) Credential() string  { return "" }

func (t *hackerNewsTool) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	var reply struct {
		Hits []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			ObjectID    string `json:"objectID"`
			Points      int    `json:"points"`
			NumComments int    `json:"num_comments"`
		} `json:"hits"`
	}

	endpoint := fmt.Sprintf("%s/search?query=%s&tags=story&hitsPerPage=%d",
		t.baseURL, url.QueryEscape(query), maxResults)
	if err := t.api.getJSON(ctx, endpoint, nil, &reply); err != nil {
		return nil, fmt.Errorf("hackernews search: %w", err)
	}

	out := make([]models.SearchResult, 0, len(reply.Hits))
	for i, r := range reply.Hits {
		link := r.URL
		if link == "" {
			link = "https://news.ycombinator.com/item?id=" + r.ObjectID
		}
		out = append(out, models.SearchResult{
			Title:     r.Title,
			URL:       link,
			Snippet:   fmt.Sprintf("%d points, %d comments", r.Points, r.NumComments),
			Source:    t.Name(),
			Relevance: rankRelevance(i),
		})
	}
	return out, nil
}
