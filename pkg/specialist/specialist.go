// Package specialist implements the domain search specialists: each one
// runs an ordered list of credential-gated backend tools, deduplicates
// the results, and scrapes the top hits into full content.
//
// Tools are soft dependencies everywhere: a missing credential removes a
// tool from the rotation, a failing tool is logged and skipped, and a
// specialist with nothing to run returns an empty fragment rather than
// an error.
package specialist

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/assistkit/scout/pkg/models"
	"github.com/assistkit/scout/pkg/scrape"
)

const defaultMaxResults = 10

// Tool is one search backend. Credential names the environment variable
// that must be non-empty for the tool to run; "" means no credential is
// needed.
type Tool interface {
	Name() string
	Description() string
	Credential() string
	Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error)
}

// Request is one dispatch to a specialist. Timeout is the scraping
// budget: each of the top ScrapeTop URLs gets Timeout/ScrapeTop.
type Request struct {
	Query      string
	MaxResults int
	ScrapeTop  int
	Timeout    time.Duration
}

// Specialist runs one research domain over its registered tools.
type Specialist struct {
	name    string
	domain  models.SpecialistDomain
	tools   []Tool
	fetcher *scrape.Fetcher
}

// New creates a specialist. Tool order is dispatch order.
func New(name string, domain models.SpecialistDomain, fetcher *scrape.Fetcher, tools ...Tool) *Specialist {
	return &Specialist{name: name, domain: domain, fetcher: fetcher, tools: tools}
}

// Name returns the specialist's registered name.
func (s *Specialist) Name() string { return s.name }

// Domain returns the specialist's domain tag.
func (s *Specialist) Domain() models.SpecialistDomain { return s.domain }

// AddTool appends a backend to the rotation.
func (s *Specialist) AddTool(t Tool) {
	s.tools = append(s.tools, t)
}

// Execute runs the specialist: search tools in order until MaxResults are
// collected or the tools are exhausted, deduplicate by URL, then scrape
// the top results. Never returns an error: everything that can go wrong
// degrades to a smaller (possibly empty) fragment.
func (s *Specialist) Execute(ctx context.Context, req Request) *models.Fragment {
	frag := &models.Fragment{
		Specialist: s.name,
		Results:    []models.SearchResult{},
		Timestamp:  time.Now(),
	}

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	eligible := s.eligibleTools()
	if len(eligible) == 0 {
		slog.Info("No credentialed tools for specialist", "specialist", s.name)
		return frag
	}

	var collected []models.SearchResult
	for _, tool := range eligible {
		if len(collected) >= maxResults {
			break
		}
		results, err := tool.Search(ctx, req.Query, maxResults-len(collected))
		if err != nil {
			slog.Warn("Search tool failed, skipping",
				"specialist", s.name, "tool", tool.Name(), "error", err)
			continue
		}
		collected = append(collected, results...)
	}

	frag.Results = dedupeResults(collected)
	if len(frag.Results) > maxResults {
		frag.Results = frag.Results[:maxResults]
	}

	s.scrapeTop(ctx, req, frag)
	return frag
}

// eligibleTools filters the registered tools to those whose credential
// environment variable is set, preserving registration order.
func (s *Specialist) eligibleTools() []Tool {
	var eligible []Tool
	for _, t := range s.tools {
		if cred := t.Credential(); cred != "" && os.Getenv(cred) == "" {
			slog.Debug("Tool credential not set, skipping",
				"specialist", s.name, "tool", t.Name(), "credential", cred)
			continue
		}
		eligible = append(eligible, t)
	}
	return eligible
}

// scrapeTop fetches full content for the top ScrapeTop results. Fetch
// failures are ignored per URL; cache hits are handled by the fetcher.
func (s *Specialist) scrapeTop(ctx context.Context, req Request, frag *models.Fragment) {
	if s.fetcher == nil || req.ScrapeTop <= 0 || len(frag.Results) == 0 {
		return
	}

	n := min(req.ScrapeTop, len(frag.Results))
	var perURL time.Duration
	if req.Timeout > 0 {
		perURL = req.Timeout / time.Duration(req.ScrapeTop)
	}

	for _, r := range frag.Results[:n] {
		page, err := s.fetchOne(ctx, r.URL, perURL)
		if err != nil {
			slog.Debug("Scrape failed, skipping",
				"specialist", s.name, "url", r.URL, "error", err)
			continue
		}
		frag.Scraped = append(frag.Scraped, *page)
	}
}

func (s *Specialist) fetchOne(ctx context.Context, url string, timeout time.Duration) (*models.ScrapedPage, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.fetcher.Fetch(ctx, url)
}

// dedupeResults removes URL duplicates, keeping the earliest-seen result.
// The key is the lowercased URL with a trailing slash stripped, so
// "https://Example.com/A/" and "https://example.com/a" collide.
func dedupeResults(results []models.SearchResult) []models.SearchResult {
	seen := make(map[string]bool, len(results))
	deduped := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		key := normalizeURL(r.URL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, r)
	}
	return deduped
}

func normalizeURL(raw string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "/")
}
