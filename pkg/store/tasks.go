package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/assistkit/scout/pkg/models"
	"github.com/assistkit/scout/pkg/similarity"
)

const taskColumns = `id, query, context, depth, priority, status, session_id,
	trigger_kind, created_at, started_at, completed_at, finding_id, attempts, error`

// CreateTask persists a new task. Missing id, status, and creation time are
// filled in; priority is clamped to [1, 10].
func (s *Store) CreateTask(ctx context.Context, task *models.Task) error {
	if task.Query == "" {
		return fmt.Errorf("task query must not be empty")
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = models.TaskStatusQueued
	}
	if task.Trigger == "" {
		task.Trigger = models.TriggerManual
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	task.Priority = models.ClampPriority(task.Priority)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, query, context, depth, priority, status, session_id,
			trigger_kind, created_at, started_at, completed_at, finding_id, attempts, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Query, task.Context, string(task.Depth), task.Priority,
		string(task.Status), task.SessionID, string(task.Trigger),
		toMillis(task.CreatedAt), nullMillis(task.StartedAt), nullMillis(task.CompletedAt),
		task.FindingID, task.Attempts, task.Error)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// UpdateTaskStatus moves a task to a new status. Transitions out of a
// terminal status are ignored so late workers cannot resurrect a finished
// task. Running stamps started_at on first entry; terminal statuses stamp
// completed_at.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status models.TaskStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := toMillis(time.Now().UTC())
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET
			status = ?,
			error = ?,
			started_at = CASE WHEN ? = 'running' THEN COALESCE(started_at, ?) ELSE started_at END,
			completed_at = CASE WHEN ? IN ('completed', 'failed', 'cancelled') THEN ? ELSE completed_at END
		WHERE id = ? AND status NOT IN ('completed', 'failed', 'cancelled')`,
		string(status), errMsg, string(status), now, string(status), now, id)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		// Either unknown id or already terminal; terminal is not an error.
		exists, err := s.taskExists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
	}
	return nil
}

// IncrementTaskAttempts bumps and returns the attempt counter for one
// execution try.
func (s *Store) IncrementTaskAttempts(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET attempts = attempts + 1 WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to increment task attempts: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}

	var attempts int
	if err := s.db.QueryRowContext(ctx,
		`SELECT attempts FROM tasks WHERE id = ?`, id).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("failed to read task attempts: %w", err)
	}
	return attempts, nil
}

// SaveTaskResult records the produced finding and completes the task.
func (s *Store) SaveTaskResult(ctx context.Context, id, findingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := toMillis(time.Now().UTC())
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = 'completed', finding_id = ?, completed_at = ?, error = ''
		WHERE id = ? AND status NOT IN ('completed', 'failed', 'cancelled')`,
		findingID, now, id)
	if err != nil {
		return fmt.Errorf("failed to save task result: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		exists, err := s.taskExists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
	}
	return nil
}

// GetTask fetches one task by id.
func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// GetQueuedTasks returns up to limit queued tasks in dispatch order:
// priority descending, then oldest first.
func (s *Store) GetQueuedTasks(ctx context.Context, limit int) ([]*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE status = 'queued'
		ORDER BY priority DESC, created_at ASC
		LIMIT ?`, positiveLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list queued tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// GetRecentTasks returns the newest tasks regardless of status.
func (s *Store) GetRecentTasks(ctx context.Context, limit int) ([]*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		ORDER BY created_at DESC
		LIMIT ?`, positiveLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list recent tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// SearchTasks returns tasks whose query or context contains the text,
// newest first.
func (s *Store) SearchTasks(ctx context.Context, query string, limit int) ([]*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE query LIKE ? OR context LIKE ?
		ORDER BY created_at DESC
		LIMIT ?`, pattern, pattern, positiveLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to search tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// GetQueueStats counts tasks by status.
func (s *Store) GetQueueStats(ctx context.Context) (*models.QueueStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue stats: %w", err)
	}
	defer rows.Close()

	stats := &models.QueueStats{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan queue stats: %w", err)
		}
		switch models.TaskStatus(status) {
		case models.TaskStatusQueued:
			stats.Queued = count
		case models.TaskStatusRunning:
			stats.Running = count
		case models.TaskStatusCompleted:
			stats.Completed = count
		case models.TaskStatusFailed:
			stats.Failed = count
		case models.TaskStatusCancelled:
			stats.Cancelled = count
		}
	}
	return stats, rows.Err()
}

// FindRecentSimilarTask looks for a non-failed task created within the
// window whose query is a near-duplicate (token Jaccard at or above the
// keyword threshold). Returns nil when nothing matches.
func (s *Store) FindRecentSimilarTask(ctx context.Context, query string, window time.Duration) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := toMillis(time.Now().UTC().Add(-window))
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE created_at >= ? AND status != 'failed'
		ORDER BY created_at DESC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to scan recent tasks: %w", err)
	}
	defer rows.Close()

	tokens := similarity.Tokens(query)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		if similarity.Jaccard(tokens, similarity.Tokens(task.Query)) >= KeywordSimilarityThreshold {
			return task, nil
		}
	}
	return nil, rows.Err()
}

// FailRunningTasks marks every running task as failed. Called once at
// startup so tasks orphaned by a previous process do not stay running
// forever.
func (s *Store) FailRunningTasks(ctx context.Context, reason string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := toMillis(time.Now().UTC())
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = 'failed', error = ?, completed_at = ?
		WHERE status = 'running'`, reason, now)
	if err != nil {
		return 0, fmt.Errorf("failed to fail running tasks: %w", err)
	}
	return res.RowsAffected()
}

// DeleteOldTasks removes terminal tasks older than the age. Used by the
// retention worker.
func (s *Store) DeleteOldTasks(ctx context.Context, age time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := toMillis(time.Now().UTC().Add(-age))
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM tasks
		WHERE status IN ('completed', 'failed', 'cancelled') AND created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old tasks: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) taskExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check task existence: %w", err)
	}
	return true, nil
}

// rowScanner lets scanTask work over both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		task      models.Task
		depth     string
		status    string
		trigger   string
		createdAt int64
		startedAt sql.NullInt64
		doneAt    sql.NullInt64
	)
	err := row.Scan(&task.ID, &task.Query, &task.Context, &depth, &task.Priority,
		&status, &task.SessionID, &trigger, &createdAt, &startedAt, &doneAt,
		&task.FindingID, &task.Attempts, &task.Error)
	if err != nil {
		return nil, err
	}
	task.Depth = models.Depth(depth)
	task.Status = models.TaskStatus(status)
	task.Trigger = models.Trigger(trigger)
	task.CreatedAt = fromMillis(createdAt)
	task.StartedAt = timePtr(startedAt)
	task.CompletedAt = timePtr(doneAt)
	return &task, nil
}

func collectTasks(rows *sql.Rows) ([]*models.Task, error) {
	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func positiveLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}
