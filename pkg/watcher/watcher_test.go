package watcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistkit/scout/pkg/config"
	"github.com/assistkit/scout/pkg/llm"
	"github.com/assistkit/scout/pkg/models"
	"github.com/assistkit/scout/pkg/session"
)

type scriptedLLM struct {
	reply string
	err   error
	calls int
}

func (s *scriptedLLM) Query(_ context.Context, _ string, _ llm.QueryOptions) (*llm.Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Text: s.reply, Provider: "fake"}, nil
}

type fakeDedup struct {
	found    bool
	existing string
}

func (f *fakeDedup) HasRecentSimilarQuery(_ context.Context, _ string, _ time.Duration) (bool, string, error) {
	return f.found, f.existing, nil
}

func boolPtr(b bool) *bool { return &b }

func testConfig() *config.ResearchConfig {
	return &config.ResearchConfig{
		AutonomousEnabled:   boolPtr(true),
		ConfidenceThreshold: 0.6,
		SessionCooldown:     config.Duration(5 * time.Minute),
		MaxResearchPerHour:  10,
	}
}

const positiveReply = `Based on the repeated failures I recommend research.
{"shouldResearch": true, "query": "express middleware TypeError cannot read property", "researchType": "error", "confidence": 0.9, "priority": 8, "reason": "repeated unhandled error"}`

func seedSession(t *testing.T, tracker *session.Tracker, id string) {
	t.Helper()
	tracker.Ingest(id, session.Event{Type: session.EventUserPrompt, Content: "add request validation middleware"})
	tracker.Ingest(id, session.Event{Type: session.EventToolOutput, Content: "TypeError: Cannot read property 'headers' of undefined"})
}

func TestAnalyze_Gates(t *testing.T) {
	t.Run("autonomous off", func(t *testing.T) {
		cfg := testConfig()
		cfg.AutonomousEnabled = boolPtr(false)
		w := New(&scriptedLLM{}, session.NewTracker(nil), &fakeDedup{}, nil, cfg)

		d := w.Analyze(context.Background(), "s1", models.TriggerToolOutput)
		assert.False(t, d.ShouldResearch)
		assert.Equal(t, "autonomous research disabled", d.Reason)
	})

	t.Run("user prompt trigger", func(t *testing.T) {
		w := New(&scriptedLLM{}, session.NewTracker(nil), &fakeDedup{}, nil, testConfig())
		d := w.Analyze(context.Background(), "s1", models.TriggerUserPrompt)
		assert.False(t, d.ShouldResearch)
		assert.Contains(t, d.Reason, "explicit research request")
	})

	t.Run("unknown session", func(t *testing.T) {
		w := New(&scriptedLLM{reply: positiveReply}, session.NewTracker(nil), &fakeDedup{}, nil, testConfig())
		d := w.Analyze(context.Background(), "nope", models.TriggerToolOutput)
		assert.False(t, d.ShouldResearch)
		assert.Equal(t, "unknown session", d.Reason)
	})

	t.Run("global duplicate of session task", func(t *testing.T) {
		tracker := session.NewTracker(nil)
		seedSession(t, tracker, "s1")
		fake := &scriptedLLM{reply: positiveReply}
		w := New(fake, tracker, &fakeDedup{found: true, existing: "prior query"}, nil, testConfig())

		d := w.Analyze(context.Background(), "s1", models.TriggerToolOutput)
		assert.False(t, d.ShouldResearch)
		assert.Contains(t, d.Reason, "similar finding already exists")
		assert.Zero(t, fake.calls)
	})
}

func TestAnalyze_TriggersThenCoolsDown(t *testing.T) {
	tracker := session.NewTracker(nil)
	seedSession(t, tracker, "s1")
	fake := &scriptedLLM{reply: positiveReply}
	w := New(fake, tracker, &fakeDedup{}, nil, testConfig())

	first := w.Analyze(context.Background(), "s1", models.TriggerToolOutput)
	require.True(t, first.ShouldResearch)
	assert.Equal(t, models.ResearchTypeError, first.ResearchType)
	assert.InDelta(t, 0.9, first.Confidence, 0.001)

	second := w.Analyze(context.Background(), "s1", models.TriggerToolOutput)
	assert.False(t, second.ShouldResearch)
	assert.Equal(t, "Cooldown active", second.Reason)
	assert.Equal(t, 1, fake.calls)
}

func TestAnalyze_ResetCooldown(t *testing.T) {
	tracker := session.NewTracker(nil)
	seedSession(t, tracker, "s1")
	// Distinct queries so session-local dedup does not kick in after the
	// first trigger is recorded.
	fake := &scriptedLLM{reply: `{"shouldResearch": true, "query": "completely unrelated kubernetes ingress question", "researchType": "proactive", "confidence": 0.8, "priority": 5, "reason": "r"}`}
	w := New(fake, tracker, &fakeDedup{}, nil, testConfig())

	require.True(t, w.Analyze(context.Background(), "s1", models.TriggerToolOutput).ShouldResearch)
	assert.Equal(t, "Cooldown active", w.Analyze(context.Background(), "s1", models.TriggerToolOutput).Reason)

	w.ResetCooldown("s1")
	d := w.Analyze(context.Background(), "s1", models.TriggerToolOutput)
	assert.NotEqual(t, "Cooldown active", d.Reason)
	assert.Equal(t, 2, fake.calls)
}

func TestAnalyze_HourlyBudget(t *testing.T) {
	cfg := testConfig()
	cfg.MaxResearchPerHour = 3
	cfg.SessionCooldown = 0
	fake := &scriptedLLM{reply: positiveReply}
	tracker := session.NewTracker(nil)
	w := New(fake, tracker, &fakeDedup{}, nil, cfg)

	for i, id := range []string{"s1", "s2", "s3"} {
		seedSession(t, tracker, id)
		d := w.Analyze(context.Background(), id, models.TriggerToolOutput)
		require.True(t, d.ShouldResearch, "trigger %d", i+1)
	}

	seedSession(t, tracker, "s4")
	fourth := w.Analyze(context.Background(), "s4", models.TriggerToolOutput)
	assert.False(t, fourth.ShouldResearch)
	assert.Equal(t, "Global rate limit reached", fourth.Reason)

	// After the rolling hour elapses the window resets and admits again.
	w.budget.now = func() time.Time { return time.Now().Add(61 * time.Minute) }
	fifth := w.Analyze(context.Background(), "s4", models.TriggerToolOutput)
	assert.True(t, fifth.ShouldResearch)
}

func TestAnalyze_ConfidenceThresholds(t *testing.T) {
	t.Run("base threshold rejects", func(t *testing.T) {
		tracker := session.NewTracker(nil)
		seedSession(t, tracker, "s1")
		fake := &scriptedLLM{reply: `{"shouldResearch": true, "query": "q words here now", "researchType": "error", "confidence": 0.5, "priority": 5, "reason": "weak"}`}
		w := New(fake, tracker, &fakeDedup{}, nil, testConfig())

		d := w.Analyze(context.Background(), "s1", models.TriggerToolOutput)
		assert.False(t, d.ShouldResearch)
		assert.Contains(t, d.Reason, "below")
	})

	t.Run("stuck needs more", func(t *testing.T) {
		tracker := session.NewTracker(nil)
		seedSession(t, tracker, "s1")
		fake := &scriptedLLM{reply: `{"shouldResearch": true, "query": "q words here now", "researchType": "stuck", "confidence": 0.65, "priority": 5, "reason": "loop"}`}
		w := New(fake, tracker, &fakeDedup{}, nil, testConfig())

		d := w.Analyze(context.Background(), "s1", models.TriggerToolOutput)
		// 0.65 passes the 0.6 base but not the 0.7 stuck threshold.
		assert.False(t, d.ShouldResearch)
	})
}

func TestAnalyze_LLMFailure(t *testing.T) {
	tracker := session.NewTracker(nil)
	seedSession(t, tracker, "s1")
	w := New(&scriptedLLM{err: errors.New("provider down")}, tracker, &fakeDedup{}, nil, testConfig())

	d := w.Analyze(context.Background(), "s1", models.TriggerToolOutput)
	assert.False(t, d.ShouldResearch)
	assert.Equal(t, "decision unavailable", d.Reason)
}

func TestQuickAnalyze(t *testing.T) {
	t.Run("error output triggers without LLM", func(t *testing.T) {
		tracker := session.NewTracker(nil)
		seedSession(t, tracker, "s1")
		fake := &scriptedLLM{}
		w := New(fake, tracker, &fakeDedup{}, nil, testConfig())

		d := w.QuickAnalyze(context.Background(), "s1")
		require.NotNil(t, d)
		assert.True(t, d.ShouldResearch)
		assert.Equal(t, models.ResearchTypeError, d.ResearchType)
		assert.InDelta(t, quickConfidence, d.Confidence, 0.001)
		assert.Contains(t, d.Query, "TypeError")
		assert.Zero(t, fake.calls)
	})

	t.Run("clean output returns nil", func(t *testing.T) {
		tracker := session.NewTracker(nil)
		tracker.Ingest("s1", session.Event{Type: session.EventToolOutput, Content: "all 42 tests passed"})
		w := New(&scriptedLLM{}, tracker, &fakeDedup{}, nil, testConfig())
		assert.Nil(t, w.QuickAnalyze(context.Background(), "s1"))
	})

	t.Run("unknown session returns nil", func(t *testing.T) {
		w := New(&scriptedLLM{}, session.NewTracker(nil), &fakeDedup{}, nil, testConfig())
		assert.Nil(t, w.QuickAnalyze(context.Background(), "missing"))
	})

	t.Run("cooldown still applies", func(t *testing.T) {
		tracker := session.NewTracker(nil)
		seedSession(t, tracker, "s1")
		w := New(&scriptedLLM{}, tracker, &fakeDedup{}, nil, testConfig())

		require.True(t, w.QuickAnalyze(context.Background(), "s1").ShouldResearch)
		second := w.QuickAnalyze(context.Background(), "s1")
		require.NotNil(t, second)
		assert.False(t, second.ShouldResearch)
		assert.Equal(t, "Cooldown active", second.Reason)
	})
}

func TestDetectError(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string // substring of the proposed query, "" means nil
	}{
		{"python module", "Traceback...\nModuleNotFoundError: No module named 'requests'", "requests"},
		{"node module", "Error: Cannot find module 'express'", "express"},
		{"go panic", "panic: runtime error: invalid memory address", "golang panic"},
		{"generic error", "TypeError: x is not a function", "TypeError"},
		{"clean output", "compiled successfully in 2.3s", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := detectError(tt.output)
			if tt.want == "" {
				assert.Nil(t, d)
				return
			}
			require.NotNil(t, d)
			assert.Contains(t, d.Query, tt.want)
		})
	}
}
