package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistkit/scout/pkg/config"
)

func newTestTracker(maxEvents int) *Tracker {
	return NewTracker(&config.SessionsConfig{MaxEvents: maxEvents})
}

func TestIngest_CreatesSessionAndBoundsRing(t *testing.T) {
	tr := newTestTracker(5)

	for i := 0; i < 12; i++ {
		tr.Ingest("s1", Event{Type: EventUserPrompt, Content: fmt.Sprintf("prompt number %d", i)})
	}

	ctx, ok := tr.GetWatcherContext("s1")
	require.True(t, ok)
	assert.Len(t, ctx.RecentMessages, 5)
	// Oldest events dropped, arrival order preserved.
	assert.Equal(t, "prompt number 7", ctx.RecentMessages[0].Content)
	assert.Equal(t, "prompt number 11", ctx.RecentMessages[4].Content)
	assert.Equal(t, 5, ctx.EventCount)
}

func TestIngest_IgnoresEmpty(t *testing.T) {
	tr := newTestTracker(10)

	tr.Ingest("", Event{Type: EventUserPrompt, Content: "orphan"})
	tr.Ingest("s1", Event{Type: EventUserPrompt, Content: ""})

	_, ok := tr.GetWatcherContext("s1")
	assert.False(t, ok)
	assert.Equal(t, 0, tr.Stats().Sessions)
}

func TestCurrentTaskAndTopics(t *testing.T) {
	tr := newTestTracker(20)

	tr.Ingest("s1", Event{Type: EventUserPrompt, Content: "migrate the postgres schema to sqlite"})
	tr.Ingest("s1", Event{Type: EventToolOutput, Content: "done"})
	tr.Ingest("s1", Event{Type: EventUserPrompt, Content: "now fix the sqlite busy timeout"})

	ctx, ok := tr.GetWatcherContext("s1")
	require.True(t, ok)
	assert.Equal(t, "now fix the sqlite busy timeout", ctx.CurrentTask)
	assert.Contains(t, ctx.Topics, "sqlite")
	// "sqlite" appeared twice so it outranks single-mention terms.
	assert.Equal(t, "sqlite", ctx.Topics[0])
}

func TestCaptureErrors(t *testing.T) {
	tr := newTestTracker(50)

	tr.Ingest("s1", Event{Type: EventToolOutput, Content: "building...\nError: cannot find module 'left-pad'\nexit status 1"})
	tr.Ingest("s1", Event{Type: EventToolOutput, Content: "all good"})

	ctx, _ := tr.GetWatcherContext("s1")
	require.Len(t, ctx.RecentErrors, 1)
	assert.Contains(t, ctx.RecentErrors[0], "left-pad")

	// The error list is bounded.
	for i := 0; i < 20; i++ {
		tr.Ingest("s1", Event{Type: EventToolOutput, Content: fmt.Sprintf("error: failure %d", i)})
	}
	ctx, _ = tr.GetWatcherContext("s1")
	assert.Len(t, ctx.RecentErrors, maxRecentErrors)
}

func TestStuckDetection(t *testing.T) {
	tr := newTestTracker(50)

	// Two consecutive tool-call sequences with the same focus.
	tr.Ingest("s1", Event{Type: EventToolCall, Content: "grep -r pattern src/"})
	tr.Ingest("s1", Event{Type: EventToolCall, Content: "grep -r pattern lib/"})
	tr.Ingest("s1", Event{Type: EventToolOutput, Content: "no matches"})
	tr.Ingest("s1", Event{Type: EventToolCall, Content: "grep -rn pattern ."})

	ctx, _ := tr.GetWatcherContext("s1")
	assert.Equal(t, "grep", ctx.Stuck.Focus)
	assert.Equal(t, 2, ctx.Stuck.Repeats)
	assert.True(t, ctx.Stuck.IsStuck())

	// A different focus resets the counter.
	tr.Ingest("s1", Event{Type: EventToolOutput, Content: "found it"})
	tr.Ingest("s1", Event{Type: EventToolCall, Content: "cat src/main.go"})
	ctx, _ = tr.GetWatcherContext("s1")
	assert.Equal(t, "cat", ctx.Stuck.Focus)
	assert.False(t, ctx.Stuck.IsStuck())
}

func TestStuck_RunsWithinOneSequenceCountOnce(t *testing.T) {
	tr := newTestTracker(50)

	// Five calls in a single unbroken run are one sequence.
	for i := 0; i < 5; i++ {
		tr.Ingest("s1", Event{Type: EventToolCall, Content: "kubectl get pods"})
	}
	ctx, _ := tr.GetWatcherContext("s1")
	assert.Equal(t, 1, ctx.Stuck.Repeats)
	assert.False(t, ctx.Stuck.IsStuck())
}

func TestHasRecentSimilarResearch(t *testing.T) {
	tr := newTestTracker(10)
	tr.Ingest("s1", Event{Type: EventUserPrompt, Content: "hello"})

	tr.RecordResearch("s1", "how to implement rate limiting in FastAPI")

	assert.True(t, tr.HasRecentSimilarResearch("s1", "implement rate limiting FastAPI how to", time.Hour))
	assert.False(t, tr.HasRecentSimilarResearch("s1", "kubernetes pod eviction thresholds", time.Hour))
	// Outside the window nothing matches.
	assert.False(t, tr.HasRecentSimilarResearch("s1", "how to implement rate limiting in FastAPI", time.Nanosecond))
	// Unknown sessions never match.
	assert.False(t, tr.HasRecentSimilarResearch("nope", "anything", time.Hour))
}

func TestLatestToolOutput(t *testing.T) {
	tr := newTestTracker(10)
	tr.Ingest("s1", Event{Type: EventToolOutput, Content: "first"})
	tr.Ingest("s1", Event{Type: EventUserPrompt, Content: "prompt"})
	tr.Ingest("s1", Event{Type: EventToolOutput, Content: "second"})

	assert.Equal(t, "second", tr.LatestToolOutput("s1"))
	assert.Equal(t, "", tr.LatestToolOutput("unknown"))
}

func TestPruneInactive(t *testing.T) {
	tr := newTestTracker(10)
	tr.Ingest("old", Event{Type: EventUserPrompt, Content: "stale work", Timestamp: time.Now().Add(-3 * time.Hour)})
	tr.Ingest("fresh", Event{Type: EventUserPrompt, Content: "active work"})

	pruned := tr.PruneInactive(2 * time.Hour)
	assert.Equal(t, 1, pruned)

	_, ok := tr.GetWatcherContext("old")
	assert.False(t, ok)
	_, ok = tr.GetWatcherContext("fresh")
	assert.True(t, ok)
}

func TestMarkAnalyzedAndSummaries(t *testing.T) {
	tr := newTestTracker(10)
	tr.Ingest("s1", Event{Type: EventUserPrompt, Content: "work on the parser"})
	tr.SetWorkingDir("s1", "/home/dev/proj")
	tr.MarkAnalyzed("s1")

	sum, ok := tr.Get("s1")
	require.True(t, ok)
	assert.Equal(t, "/home/dev/proj", sum.WorkingDir)
	assert.NotNil(t, sum.LastAnalyzedAt)
	assert.Equal(t, 1, sum.EventCount)

	list := tr.List()
	require.Len(t, list, 1)
	assert.Equal(t, "s1", list[0].SessionID)

	stats := tr.Stats()
	assert.Equal(t, 1, stats.Sessions)
	assert.Equal(t, 1, stats.TotalEvents)
}
