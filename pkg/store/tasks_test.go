package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistkit/scout/pkg/models"
)

func TestCreateAndGetTask(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	task := &models.Task{
		Query:     "how does sqlite WAL mode work",
		Context:   "debugging write contention",
		Depth:     models.DepthDeep,
		Priority:  7,
		SessionID: "sess-1",
		Trigger:   models.TriggerUserPrompt,
	}
	require.NoError(t, s.CreateTask(ctx, task))
	require.NotEmpty(t, task.ID)
	assert.Equal(t, models.TaskStatusQueued, task.Status)

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Query, got.Query)
	assert.Equal(t, task.Context, got.Context)
	assert.Equal(t, models.DepthDeep, got.Depth)
	assert.Equal(t, 7, got.Priority)
	assert.Equal(t, models.TaskStatusQueued, got.Status)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, models.TriggerUserPrompt, got.Trigger)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)
}

func TestCreateTask_Validation(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	t.Run("empty query rejected", func(t *testing.T) {
		err := s.CreateTask(ctx, &models.Task{})
		assert.Error(t, err)
	})

	t.Run("priority clamped", func(t *testing.T) {
		high := &models.Task{Query: "clamp high", Priority: 99}
		require.NoError(t, s.CreateTask(ctx, high))
		assert.Equal(t, 10, high.Priority)

		low := &models.Task{Query: "clamp low", Priority: -3}
		require.NoError(t, s.CreateTask(ctx, low))
		assert.Equal(t, 1, low.Priority)
	})

	t.Run("defaults filled", func(t *testing.T) {
		task := &models.Task{Query: "defaults"}
		require.NoError(t, s.CreateTask(ctx, task))
		assert.Equal(t, models.TaskStatusQueued, task.Status)
		assert.Equal(t, models.TriggerManual, task.Trigger)
		assert.False(t, task.CreatedAt.IsZero())
	})
}

func TestGetTask_NotFound(t *testing.T) {
	s := newTestStore(t, Options{})

	_, err := s.GetTask(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateTaskStatus(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	t.Run("running stamps started_at once", func(t *testing.T) {
		task := &models.Task{Query: "stamp start"}
		require.NoError(t, s.CreateTask(ctx, task))

		require.NoError(t, s.UpdateTaskStatus(ctx, task.ID, models.TaskStatusRunning, ""))
		first, err := s.GetTask(ctx, task.ID)
		require.NoError(t, err)
		require.NotNil(t, first.StartedAt)

		require.NoError(t, s.UpdateTaskStatus(ctx, task.ID, models.TaskStatusRunning, ""))
		second, err := s.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, *first.StartedAt, *second.StartedAt)
	})

	t.Run("terminal status is final", func(t *testing.T) {
		task := &models.Task{Query: "monotonic"}
		require.NoError(t, s.CreateTask(ctx, task))
		require.NoError(t, s.UpdateTaskStatus(ctx, task.ID, models.TaskStatusRunning, ""))
		require.NoError(t, s.UpdateTaskStatus(ctx, task.ID, models.TaskStatusCompleted, ""))

		// A late failure report must not resurrect the task.
		require.NoError(t, s.UpdateTaskStatus(ctx, task.ID, models.TaskStatusFailed, "late worker"))

		got, err := s.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusCompleted, got.Status)
		assert.Empty(t, got.Error)
		assert.NotNil(t, got.CompletedAt)
	})

	t.Run("unknown task", func(t *testing.T) {
		err := s.UpdateTaskStatus(ctx, "missing", models.TaskStatusRunning, "")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("failed keeps error message", func(t *testing.T) {
		task := &models.Task{Query: "record failure"}
		require.NoError(t, s.CreateTask(ctx, task))
		require.NoError(t, s.UpdateTaskStatus(ctx, task.ID, models.TaskStatusFailed, "provider unreachable"))

		got, err := s.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusFailed, got.Status)
		assert.Equal(t, "provider unreachable", got.Error)
	})
}

func TestSaveTaskResult(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	task := &models.Task{Query: "complete me"}
	require.NoError(t, s.CreateTask(ctx, task))
	require.NoError(t, s.UpdateTaskStatus(ctx, task.ID, models.TaskStatusRunning, ""))
	require.NoError(t, s.SaveTaskResult(ctx, task.ID, "finding-42"))

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, got.Status)
	assert.Equal(t, "finding-42", got.FindingID)
	assert.NotNil(t, got.CompletedAt)
}

func TestIncrementTaskAttempts(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	task := &models.Task{Query: "count attempts"}
	require.NoError(t, s.CreateTask(ctx, task))

	n, err := s.IncrementTaskAttempts(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.IncrementTaskAttempts(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.IncrementTaskAttempts(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetQueuedTasks_DispatchOrder(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	low := &models.Task{Query: "low priority", Priority: 3}
	olderHigh := &models.Task{Query: "older high", Priority: 9}
	newerHigh := &models.Task{Query: "newer high", Priority: 9}
	running := &models.Task{Query: "already running", Priority: 10}

	for _, task := range []*models.Task{low, olderHigh, newerHigh, running} {
		require.NoError(t, s.CreateTask(ctx, task))
	}
	setTaskCreatedAt(t, s, low.ID, base)
	setTaskCreatedAt(t, s, olderHigh.ID, base.Add(1*time.Minute))
	setTaskCreatedAt(t, s, newerHigh.ID, base.Add(2*time.Minute))
	require.NoError(t, s.UpdateTaskStatus(ctx, running.ID, models.TaskStatusRunning, ""))

	queued, err := s.GetQueuedTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, queued, 3)
	assert.Equal(t, olderHigh.ID, queued[0].ID)
	assert.Equal(t, newerHigh.ID, queued[1].ID)
	assert.Equal(t, low.ID, queued[2].ID)
}

func TestSearchTasks(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	require.NoError(t, s.CreateTask(ctx, &models.Task{Query: "tune postgres vacuum"}))
	require.NoError(t, s.CreateTask(ctx, &models.Task{Query: "other topic", Context: "postgres replication lag"}))
	require.NoError(t, s.CreateTask(ctx, &models.Task{Query: "unrelated"}))

	found, err := s.SearchTasks(ctx, "postgres", 10)
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestGetQueueStats(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	a := &models.Task{Query: "a"}
	b := &models.Task{Query: "b"}
	c := &models.Task{Query: "c"}
	for _, task := range []*models.Task{a, b, c} {
		require.NoError(t, s.CreateTask(ctx, task))
	}
	require.NoError(t, s.UpdateTaskStatus(ctx, b.ID, models.TaskStatusRunning, ""))
	require.NoError(t, s.UpdateTaskStatus(ctx, c.ID, models.TaskStatusFailed, "boom"))

	stats, err := s.GetQueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Queued)
	assert.Equal(t, 1, stats.Running)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Completed)
}

func TestFindRecentSimilarTask(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	existing := &models.Task{Query: "fix go http retry logic"}
	require.NoError(t, s.CreateTask(ctx, existing))

	t.Run("near-duplicate phrasing matches", func(t *testing.T) {
		found, err := s.FindRecentSimilarTask(ctx, "Fix Go HTTP retry logic!", 5*time.Minute)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, existing.ID, found.ID)
	})

	t.Run("different query does not match", func(t *testing.T) {
		found, err := s.FindRecentSimilarTask(ctx, "tune rust tokio runtime", 5*time.Minute)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("outside window does not match", func(t *testing.T) {
		setTaskCreatedAt(t, s, existing.ID, time.Now().UTC().Add(-10*time.Minute))
		found, err := s.FindRecentSimilarTask(ctx, "fix go http retry logic", 5*time.Minute)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("failed tasks are not dedup candidates", func(t *testing.T) {
		failed := &models.Task{Query: "investigate flaky websocket test"}
		require.NoError(t, s.CreateTask(ctx, failed))
		require.NoError(t, s.UpdateTaskStatus(ctx, failed.ID, models.TaskStatusFailed, "boom"))

		found, err := s.FindRecentSimilarTask(ctx, "investigate flaky websocket test", 5*time.Minute)
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestFailRunningTasks(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	r1 := &models.Task{Query: "orphan one"}
	r2 := &models.Task{Query: "orphan two"}
	q := &models.Task{Query: "still queued"}
	for _, task := range []*models.Task{r1, r2, q} {
		require.NoError(t, s.CreateTask(ctx, task))
	}
	require.NoError(t, s.UpdateTaskStatus(ctx, r1.ID, models.TaskStatusRunning, ""))
	require.NoError(t, s.UpdateTaskStatus(ctx, r2.ID, models.TaskStatusRunning, ""))

	n, err := s.FailRunningTasks(ctx, "orphaned at startup")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := s.GetTask(ctx, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, got.Status)
	assert.Equal(t, "orphaned at startup", got.Error)

	still, err := s.GetTask(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusQueued, still.Status)
}

func TestDeleteOldTasks(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	oldDone := &models.Task{Query: "old done"}
	oldQueued := &models.Task{Query: "old queued"}
	freshDone := &models.Task{Query: "fresh done"}
	for _, task := range []*models.Task{oldDone, oldQueued, freshDone} {
		require.NoError(t, s.CreateTask(ctx, task))
	}
	require.NoError(t, s.UpdateTaskStatus(ctx, oldDone.ID, models.TaskStatusCompleted, ""))
	require.NoError(t, s.UpdateTaskStatus(ctx, freshDone.ID, models.TaskStatusCompleted, ""))
	stale := time.Now().UTC().Add(-48 * time.Hour)
	setTaskCreatedAt(t, s, oldDone.ID, stale)
	setTaskCreatedAt(t, s, oldQueued.ID, stale)

	n, err := s.DeleteOldTasks(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetTask(ctx, oldDone.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Non-terminal tasks survive retention regardless of age.
	_, err = s.GetTask(ctx, oldQueued.ID)
	assert.NoError(t, err)
}
