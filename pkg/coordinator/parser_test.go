package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistkit/scout/pkg/models"
)

func TestParsePlan(t *testing.T) {
	t.Run("well formed", func(t *testing.T) {
		plan, err := parsePlan(`STRATEGY: split by error message and framework docs
RATIONALE: the error is framework-specific
STEPS:
- specialist:code query:"TypeError cannot read property of undefined express middleware" priority:8
- specialist:docs query:"express error handling middleware documentation" priority:5`)
		require.NoError(t, err)

		assert.Equal(t, "split by error message and framework docs", plan.Strategy)
		assert.Equal(t, "the error is framework-specific", plan.Rationale)
		require.Len(t, plan.Steps, 2)
		assert.Equal(t, "code", plan.Steps[0].Specialist)
		assert.Equal(t, 8, plan.Steps[0].Priority)
		assert.Equal(t, "express error handling middleware documentation", plan.Steps[1].Query)
	})

	t.Run("reordered sections and markdown noise", func(t *testing.T) {
		plan, err := parsePlan(`Here is my plan.

**STEPS:**
- specialist:**web** query:"golang sqlite WAL checkpoint tuning" priority:9

**STRATEGY**: single targeted search
RATIONALE: the question is narrow`)
		require.NoError(t, err)
		assert.Equal(t, "single targeted search", plan.Strategy)
		require.Len(t, plan.Steps, 1)
		assert.Equal(t, "web", plan.Steps[0].Specialist)
	})

	t.Run("priority clamped and defaulted", func(t *testing.T) {
		plan, err := parsePlan(`STEPS:
- specialist:web query:"a" priority:99
- specialist:docs query:"b"`)
		require.NoError(t, err)
		require.Len(t, plan.Steps, 2)
		assert.Equal(t, 10, plan.Steps[0].Priority)
		assert.Equal(t, 5, plan.Steps[1].Priority)
	})

	t.Run("step cap", func(t *testing.T) {
		text := "STEPS:\n"
		for i := 0; i < 9; i++ {
			text += `- specialist:web query:"q" priority:5` + "\n"
		}
		plan, err := parsePlan(text)
		require.NoError(t, err)
		assert.Len(t, plan.Steps, maxPlanSteps)
	})

	t.Run("no steps fails", func(t *testing.T) {
		_, err := parsePlan("STRATEGY: think hard\nRATIONALE: none")
		assert.ErrorIs(t, err, ErrUnparseable)
	})

	t.Run("empty reply fails", func(t *testing.T) {
		_, err := parsePlan("")
		assert.ErrorIs(t, err, ErrUnparseable)
	})
}

func TestParseEvaluation(t *testing.T) {
	t.Run("incomplete with next steps and pivot", func(t *testing.T) {
		eval, err := parseEvaluation(`COMPLETE: false
CONFIDENCE: 0.55
REASONING: missing version-specific details
NEXT_STEPS:
- specialist:docs query:"sqlite busy_timeout semantics" priority:7
PIVOT: alternative:"use WAL mode instead of tuning locks" reason:"eliminates writer contention" urgency:high`)
		require.NoError(t, err)

		assert.False(t, eval.Complete)
		assert.InDelta(t, 0.55, eval.Confidence, 0.001)
		assert.Equal(t, "missing version-specific details", eval.Reasoning)
		require.Len(t, eval.NextSteps, 1)
		require.NotNil(t, eval.Pivot)
		assert.Equal(t, "use WAL mode instead of tuning locks", eval.Pivot.Alternative)
		assert.Equal(t, models.PivotUrgencyHigh, eval.Pivot.Urgency)
	})

	t.Run("complete variants", func(t *testing.T) {
		for _, body := range []string{"COMPLETE: true", "COMPLETE: yes", "Complete: TRUE"} {
			eval, err := parseEvaluation(body + "\nCONFIDENCE: 0.9")
			require.NoError(t, err, body)
			assert.True(t, eval.Complete, body)
		}
	})

	t.Run("pivot none is nil", func(t *testing.T) {
		eval, err := parseEvaluation("COMPLETE: true\nCONFIDENCE: 0.8\nPIVOT: none")
		require.NoError(t, err)
		assert.Nil(t, eval.Pivot)
	})

	t.Run("pivot without urgency defaults medium", func(t *testing.T) {
		eval, err := parseEvaluation(`COMPLETE: false
CONFIDENCE: 0.4
PIVOT: alternative:"switch ORM" reason:"simpler"`)
		require.NoError(t, err)
		require.NotNil(t, eval.Pivot)
		assert.Equal(t, models.PivotUrgencyMedium, eval.Pivot.Urgency)
	})

	t.Run("confidence clamped", func(t *testing.T) {
		eval, err := parseEvaluation("COMPLETE: false\nCONFIDENCE: 3.7")
		require.NoError(t, err)
		assert.Equal(t, 1.0, eval.Confidence)
	})

	t.Run("missing everything fails", func(t *testing.T) {
		_, err := parseEvaluation("I think we should keep looking.")
		assert.ErrorIs(t, err, ErrUnparseable)
	})
}

func TestParseSynthesis(t *testing.T) {
	t.Run("well formed", func(t *testing.T) {
		synth, err := parseSynthesis(`SUMMARY: Enable WAL mode and set a busy timeout.
Both writers then queue instead of failing immediately.
KEY_FINDINGS:
- WAL allows concurrent readers during writes
- busy_timeout retries the lock acquisition
- modernc.org/sqlite exposes both as DSN pragmas
CONFIDENCE: 0.82`)
		require.NoError(t, err)

		assert.Contains(t, synth.Summary, "Enable WAL mode")
		assert.Contains(t, synth.Summary, "queue instead of failing")
		require.Len(t, synth.KeyFindings, 3)
		assert.Equal(t, "busy_timeout retries the lock acquisition", synth.KeyFindings[1])
		assert.InDelta(t, 0.82, synth.Confidence, 0.001)
	})

	t.Run("key findings capped", func(t *testing.T) {
		text := "SUMMARY: fine\nKEY_FINDINGS:\n"
		for i := 0; i < 12; i++ {
			text += "- point\n"
		}
		synth, err := parseSynthesis(text + "CONFIDENCE: 0.5")
		require.NoError(t, err)
		assert.Len(t, synth.KeyFindings, models.MaxKeyPoints)
	})

	t.Run("missing confidence defaults", func(t *testing.T) {
		synth, err := parseSynthesis("SUMMARY: short answer")
		require.NoError(t, err)
		assert.InDelta(t, 0.5, synth.Confidence, 0.001)
	})

	t.Run("no summary fails", func(t *testing.T) {
		_, err := parseSynthesis("KEY_FINDINGS:\n- alone\nCONFIDENCE: 0.3")
		assert.ErrorIs(t, err, ErrUnparseable)
	})
}
