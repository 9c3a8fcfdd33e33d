package specialist

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistkit/scout/pkg/models"
)

// stubTool is a scriptable search backend.
type stubTool struct {
	name    string
	cred    string
	results []models.SearchResult
	err     error
	calls   int
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub" }
func (s *stubTool) Credential() string  { return s.cred }

func (s *stubTool) Search(_ context.Context, _ string, maxResults int) ([]models.SearchResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.results) > maxResults {
		return s.results[:maxResults], nil
	}
	return s.results, nil
}

func result(url string, relevance float64) models.SearchResult {
	return models.SearchResult{Title: "t", URL: url, Source: "stub", Relevance: relevance}
}

func TestExecute_CollectsAcrossToolsInOrder(t *testing.T) {
	first := &stubTool{name: "first", results: []models.SearchResult{
		result("https://a.example/1", 0.9),
		result("https://a.example/2", 0.85),
	}}
	second := &stubTool{name: "second", results: []models.SearchResult{
		result("https://b.example/1", 0.8),
	}}
	sp := New("web", models.DomainWeb, nil, first, second)

	frag := sp.Execute(context.Background(), Request{Query: "q", MaxResults: 5})

	require.Len(t, frag.Results, 3)
	assert.Equal(t, "https://a.example/1", frag.Results[0].URL)
	assert.Equal(t, "https://b.example/1", frag.Results[2].URL)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestExecute_StopsOnceMaxResultsReached(t *testing.T) {
	first := &stubTool{name: "first", results: []models.SearchResult{
		result("https://a.example/1", 0.9),
		result("https://a.example/2", 0.85),
	}}
	second := &stubTool{name: "second"}
	sp := New("web", models.DomainWeb, nil, first, second)

	frag := sp.Execute(context.Background(), Request{Query: "q", MaxResults: 2})

	assert.Len(t, frag.Results, 2)
	assert.Zero(t, second.calls)
}

func TestExecute_SkipsFailingTool(t *testing.T) {
	broken := &stubTool{name: "broken", err: errors.New("rate limited")}
	working := &stubTool{name: "working", results: []models.SearchResult{
		result("https://b.example/1", 0.8),
	}}
	sp := New("web", models.DomainWeb, nil, broken, working)

	frag := sp.Execute(context.Background(), Request{Query: "q", MaxResults: 5})

	require.Len(t, frag.Results, 1)
	assert.Equal(t, "https://b.example/1", frag.Results[0].URL)
}

func TestExecute_CredentialGating(t *testing.T) {
	gated := &stubTool{name: "gated", cred: "SCOUT_TEST_MISSING_KEY", results: []models.SearchResult{
		result("https://a.example/1", 0.9),
	}}
	open := &stubTool{name: "open", results: []models.SearchResult{
		result("https://b.example/1", 0.8),
	}}
	sp := New("web", models.DomainWeb, nil, gated, open)

	t.Run("missing credential skips tool", func(t *testing.T) {
		frag := sp.Execute(context.Background(), Request{Query: "q", MaxResults: 5})
		require.Len(t, frag.Results, 1)
		assert.Zero(t, gated.calls)
	})

	t.Run("set credential admits tool", func(t *testing.T) {
		t.Setenv("SCOUT_TEST_MISSING_KEY", "value")
		frag := sp.Execute(context.Background(), Request{Query: "q", MaxResults: 5})
		assert.Len(t, frag.Results, 2)
		assert.Equal(t, 1, gated.calls)
	})
}

func TestExecute_NoEligibleToolsReturnsEmptyFragment(t *testing.T) {
	gated := &stubTool{name: "gated", cred: "SCOUT_TEST_MISSING_KEY"}
	sp := New("web", models.DomainWeb, nil, gated)

	frag := sp.Execute(context.Background(), Request{Query: "q"})
	assert.Equal(t, "web", frag.Specialist)
	assert.Empty(t, frag.Results)
}

func TestDedupeResults(t *testing.T) {
	results := []models.SearchResult{
		result("https://Example.com/A/", 0.9),
		result("https://example.com/a", 0.8),
		result("https://other.example/b", 0.7),
		{Title: "no url"},
	}
	deduped := dedupeResults(results)
	require.Len(t, deduped, 2)
	// Earliest-seen representative wins.
	assert.Equal(t, "https://Example.com/A/", deduped[0].URL)
}

func TestBuildSpecialists(t *testing.T) {
	specialists := BuildSpecialists(nil, nil)
	require.Len(t, specialists, 3)
	for _, name := range []string{"web", "code", "docs"} {
		sp, ok := specialists[name]
		require.True(t, ok, name)
		assert.Equal(t, name, sp.Name())
	}
	assert.Equal(t, models.DomainCode, specialists["code"].Domain())
}
