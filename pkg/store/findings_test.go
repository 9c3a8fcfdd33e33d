package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistkit/scout/pkg/models"
)

func sampleFinding(query string) *models.Finding {
	quality := 0.8
	return &models.Finding{
		Query:      query,
		Summary:    "summary of " + query,
		KeyPoints:  []string{"point one", "point two"},
		Content:    "full content body",
		Domain:     "web",
		Depth:      models.DepthMedium,
		Confidence: 0.9,
		SessionID:  "sess-1",
		Sources: []models.Source{
			{Title: "First", URL: "https://a.example/one", Snippet: "snip a", Source: "brave", Relevance: 0.9, Quality: &quality},
			{Title: "Second", URL: "https://b.example/two", Snippet: "snip b", Source: "serper", Relevance: 0.7},
		},
	}
}

func TestSaveAndGetFinding_RoundTrip(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	f := sampleFinding("how to profile goroutine leaks")
	require.NoError(t, s.SaveFinding(ctx, f))
	require.NotEmpty(t, f.ID)

	got, err := s.GetFinding(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Query, got.Query)
	assert.Equal(t, f.Summary, got.Summary)
	assert.Equal(t, f.KeyPoints, got.KeyPoints)
	assert.Equal(t, f.Content, got.Content)
	assert.Equal(t, "web", got.Domain)
	assert.Equal(t, models.DepthMedium, got.Depth)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
	assert.Equal(t, "sess-1", got.SessionID)

	// Source order and per-source fields survive the round trip.
	require.Len(t, got.Sources, 2)
	assert.Equal(t, "https://a.example/one", got.Sources[0].URL)
	assert.Equal(t, "https://b.example/two", got.Sources[1].URL)
	require.NotNil(t, got.Sources[0].Quality)
	assert.InDelta(t, 0.8, *got.Sources[0].Quality, 1e-9)
	assert.Nil(t, got.Sources[1].Quality)
}

func TestSaveFinding_ClampsAndCaps(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	t.Run("confidence clamped to unit interval", func(t *testing.T) {
		over := sampleFinding("confidence over")
		over.Confidence = 1.7
		require.NoError(t, s.SaveFinding(ctx, over))
		got, err := s.GetFinding(ctx, over.ID)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, got.Confidence, 1e-9)

		under := sampleFinding("confidence under")
		under.Confidence = -0.4
		require.NoError(t, s.SaveFinding(ctx, under))
		got, err = s.GetFinding(ctx, under.ID)
		require.NoError(t, err)
		assert.InDelta(t, 0.0, got.Confidence, 1e-9)
	})

	t.Run("key points capped", func(t *testing.T) {
		f := sampleFinding("too many points")
		f.KeyPoints = make([]string, 0, models.MaxKeyPoints+4)
		for i := 0; i < models.MaxKeyPoints+4; i++ {
			f.KeyPoints = append(f.KeyPoints, "point")
		}
		require.NoError(t, s.SaveFinding(ctx, f))
		got, err := s.GetFinding(ctx, f.ID)
		require.NoError(t, err)
		assert.Len(t, got.KeyPoints, models.MaxKeyPoints)
	})

	t.Run("content truncated at byte cap", func(t *testing.T) {
		f := sampleFinding("huge content")
		f.Content = strings.Repeat("x", models.MaxContentBytes+500)
		require.NoError(t, s.SaveFinding(ctx, f))
		got, err := s.GetFinding(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, models.MaxContentBytes, len(got.Content))
	})

	t.Run("source relevance clamped", func(t *testing.T) {
		f := sampleFinding("relevance clamp")
		f.Sources = []models.Source{{URL: "https://c.example", Relevance: 2.5}}
		require.NoError(t, s.SaveFinding(ctx, f))
		got, err := s.GetFinding(ctx, f.ID)
		require.NoError(t, err)
		require.Len(t, got.Sources, 1)
		assert.InDelta(t, 1.0, got.Sources[0].Relevance, 1e-9)
	})
}

func TestSaveFinding_Immutable(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	f := sampleFinding("write once")
	require.NoError(t, s.SaveFinding(ctx, f))

	again := sampleFinding("write once changed")
	again.ID = f.ID
	assert.Error(t, s.SaveFinding(ctx, again))
}

func TestSearchFindings(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	require.NoError(t, s.SaveFinding(ctx, sampleFinding("grpc streaming backpressure")))
	match := sampleFinding("other topic")
	match.Content = "details about grpc flow control windows"
	require.NoError(t, s.SaveFinding(ctx, match))
	require.NoError(t, s.SaveFinding(ctx, sampleFinding("css grid layout")))

	found, err := s.SearchFindings(ctx, "grpc", 10)
	require.NoError(t, err)
	assert.Len(t, found, 2)
	for _, f := range found {
		assert.NotEmpty(t, f.Sources)
	}
}

func TestHasRecentSimilarQuery(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	f := sampleFinding("optimize docker image build cache")
	require.NoError(t, s.SaveFinding(ctx, f))

	t.Run("same words different punctuation match", func(t *testing.T) {
		found, existing, err := s.HasRecentSimilarQuery(ctx, "Optimize Docker image build-cache?", time.Hour)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, f.Query, existing)
	})

	t.Run("jaccard exactly at threshold matches", func(t *testing.T) {
		base := sampleFinding("alpha beta gamma delta")
		require.NoError(t, s.SaveFinding(ctx, base))

		// 4 shared tokens over a 5-token union is exactly 0.8.
		found, _, err := s.HasRecentSimilarQuery(ctx, "alpha beta gamma delta epsilon", time.Hour)
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("low overlap does not match", func(t *testing.T) {
		found, _, err := s.HasRecentSimilarQuery(ctx, "optimize postgres index usage", time.Hour)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("outside window does not match", func(t *testing.T) {
		setFindingCreatedAt(t, s, f.ID, time.Now().UTC().Add(-2*time.Hour))
		found, _, err := s.HasRecentSimilarQuery(ctx, "optimize docker image build cache", time.Hour)
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestFindRelatedFindings_KeywordFallback(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	require.NoError(t, s.SaveFinding(ctx, sampleFinding("kafka consumer rebalancing")))
	require.NoError(t, s.SaveFinding(ctx, sampleFinding("terraform state locking")))

	related, err := s.FindRelatedFindings(ctx, "kafka", 5)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "kafka consumer rebalancing", related[0].Query)
}

func TestFindRelatedFindings_VectorRanking(t *testing.T) {
	near := []float32{1, 0, 0}
	mid := []float32{0.7, 0.7, 0}
	far := []float32{0, 0, 1}
	embedder := &fakeEmbedder{
		vectors: map[string][]float32{
			"query text": near,
		},
	}
	s := newTestStore(t, Options{Embedder: embedder})
	ctx := context.Background()

	save := func(query string, vec []float32) *models.Finding {
		f := sampleFinding(query)
		require.NoError(t, s.SaveFinding(ctx, f))
		embedder.vectors[f.Query+"\n"+f.Summary] = vec
		require.NoError(t, s.EmbedFinding(ctx, f))
		return f
	}
	closest := save("closest finding", near)
	middle := save("middle finding", mid)
	farthest := save("farthest finding", far)

	related, err := s.FindRelatedFindings(ctx, "query text", 2)
	require.NoError(t, err)
	require.Len(t, related, 2)
	assert.Equal(t, closest.ID, related[0].ID)
	assert.Equal(t, middle.ID, related[1].ID)
	_ = farthest

	t.Run("embedding failure falls back to keyword search", func(t *testing.T) {
		embedder.err = assert.AnError
		defer func() { embedder.err = nil }()

		related, err := s.FindRelatedFindings(ctx, "middle", 5)
		require.NoError(t, err)
		require.Len(t, related, 1)
		assert.Equal(t, middle.ID, related[0].ID)
	})
}

func TestHasRecentSimilarQueryVec(t *testing.T) {
	embedder := &fakeEmbedder{
		vectors: map[string][]float32{
			"probe duplicate": {1, 0, 0},
			"probe boundary":  {0.8, 0.6, 0},
			"probe unrelated": {0, 1, 0},
		},
	}
	s := newTestStore(t, Options{Embedder: embedder})
	ctx := context.Background()

	f := sampleFinding("stored research query")
	require.NoError(t, s.SaveFinding(ctx, f))
	embedder.vectors[f.Query+"\n"+f.Summary] = []float32{1, 0, 0}
	require.NoError(t, s.EmbedFinding(ctx, f))

	t.Run("identical vector is a duplicate", func(t *testing.T) {
		found, sim, findingID, err := s.HasRecentSimilarQueryVec(ctx, "probe duplicate", time.Hour, 0)
		require.NoError(t, err)
		assert.True(t, found)
		assert.InDelta(t, 1.0, sim, 1e-6)
		assert.Equal(t, f.ID, findingID)
	})

	t.Run("cosine exactly at threshold is a duplicate", func(t *testing.T) {
		found, sim, _, err := s.HasRecentSimilarQueryVec(ctx, "probe boundary", time.Hour, 0)
		require.NoError(t, err)
		assert.True(t, found)
		assert.InDelta(t, 0.8, sim, 1e-6)
	})

	t.Run("orthogonal vector is not a duplicate", func(t *testing.T) {
		found, _, findingID, err := s.HasRecentSimilarQueryVec(ctx, "probe unrelated", time.Hour, 0)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, findingID)
	})

	t.Run("window excludes old findings", func(t *testing.T) {
		setFindingCreatedAt(t, s, f.ID, time.Now().UTC().Add(-3*time.Hour))
		found, _, _, err := s.HasRecentSimilarQueryVec(ctx, "probe duplicate", time.Hour, 0)
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestEmbedFinding_WithoutEmbedderIsNoop(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	f := sampleFinding("no embedder configured")
	require.NoError(t, s.SaveFinding(ctx, f))
	assert.NoError(t, s.EmbedFinding(ctx, f))
}

func TestDeleteStalePartialFindings(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	stale := time.Now().UTC().Add(-48 * time.Hour)

	oldPartial := sampleFinding("old partial")
	oldPartial.Confidence = 0.2
	oldFinal := sampleFinding("old final")
	oldFinal.Confidence = 0.9
	freshPartial := sampleFinding("fresh partial")
	freshPartial.Confidence = 0.2
	for _, f := range []*models.Finding{oldPartial, oldFinal, freshPartial} {
		require.NoError(t, s.SaveFinding(ctx, f))
	}
	setFindingCreatedAt(t, s, oldPartial.ID, stale)
	setFindingCreatedAt(t, s, oldFinal.ID, stale)

	n, err := s.DeleteStalePartialFindings(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetFinding(ctx, oldPartial.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetFinding(ctx, oldFinal.ID)
	assert.NoError(t, err)
	_, err = s.GetFinding(ctx, freshPartial.ID)
	assert.NoError(t, err)
}
