// Package queue schedules persisted research tasks. A polling scheduler
// admits queued tasks up to the configured concurrency, executes each one
// through the crew under a wall-clock deadline, and retries failures with
// linear backoff before marking them failed.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/assistkit/scout/pkg/config"
	"github.com/assistkit/scout/pkg/events"
	"github.com/assistkit/scout/pkg/models"
)

var (
	// ErrEmptyQuery rejects enqueue requests without a query.
	ErrEmptyQuery = errors.New("task query must not be empty")

	// ErrQueueFull rejects enqueues once the queued backlog hits the cap.
	ErrQueueFull = errors.New("task queue is full")
)

// dedupWindow is how far back Enqueue scans for near-duplicate tasks.
const dedupWindow = 5 * time.Minute

// backoffUnit is the linear retry backoff base (1s times the attempt
// number). Shortened in tests.
var backoffUnit = time.Second

// Explorer runs one research task. Satisfied by *crew.Crew.
type Explorer interface {
	Explore(ctx context.Context, directive models.Directive) (*models.Result, error)
}

// TaskStore is the store subset the scheduler needs. Satisfied by
// *store.Store.
type TaskStore interface {
	CreateTask(ctx context.Context, task *models.Task) error
	FindRecentSimilarTask(ctx context.Context, query string, window time.Duration) (*models.Task, error)
	GetQueuedTasks(ctx context.Context, limit int) ([]*models.Task, error)
	GetQueueStats(ctx context.Context) (*models.QueueStats, error)
	UpdateTaskStatus(ctx context.Context, id string, status models.TaskStatus, errMsg string) error
	IncrementTaskAttempts(ctx context.Context, id string) (int, error)
	SaveTaskResult(ctx context.Context, id, findingID string) error
	FailRunningTasks(ctx context.Context, reason string) (int64, error)
}

// EnqueueInput is one research request to queue.
type EnqueueInput struct {
	Query     string
	Context   string
	Depth     models.Depth
	Trigger   models.Trigger
	SessionID string
	Priority  int
}

// Scheduler polls the task table and runs admitted tasks through the
// explorer. Create with New, then Start; Stop drains in-flight work.
type Scheduler struct {
	store    TaskStore
	explorer Explorer
	bus      *events.Bus // nil disables event emission
	cfg      *config.QueueConfig

	running  atomic.Int32
	baseCtx  context.Context
	stopCh   chan struct{}
	stopOnce sync.Once
	loopDone chan struct{}
	inflight sync.WaitGroup
}

// New builds a stopped scheduler.
func New(st TaskStore, explorer Explorer, bus *events.Bus, cfg *config.QueueConfig) *Scheduler {
	if cfg == nil {
		cfg = config.DefaultQueueConfig()
	}
	return &Scheduler{
		store:    st,
		explorer: explorer,
		bus:      bus,
		cfg:      cfg,
		stopCh:   make(chan struct{}),
		loopDone: make(chan struct{}),
	}
}

// Enqueue validates, deduplicates, and persists a research request.
// A near-duplicate of a recent non-failed task returns that task with
// created=false instead of queueing a new one.
func (s *Scheduler) Enqueue(ctx context.Context, in EnqueueInput) (task *models.Task, created bool, err error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, false, ErrEmptyQuery
	}

	stats, err := s.store.GetQueueStats(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check queue capacity: %w", err)
	}
	if s.cfg.MaxQueueSize > 0 && stats.Queued >= s.cfg.MaxQueueSize {
		return nil, false, ErrQueueFull
	}

	existing, err := s.store.FindRecentSimilarTask(ctx, query, dedupWindow)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check for duplicate task: %w", err)
	}
	if existing != nil {
		slog.Debug("Enqueue deduplicated to existing task",
			"task_id", existing.ID, "query", query)
		return existing, false, nil
	}

	task = &models.Task{
		Query:     query,
		Context:   in.Context,
		Depth:     in.Depth,
		Priority:  in.Priority,
		Status:    models.TaskStatusQueued,
		SessionID: in.SessionID,
		Trigger:   in.Trigger,
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, false, fmt.Errorf("failed to enqueue task: %w", err)
	}

	s.publish(events.EventTypeTaskQueued, task)
	return task, true, nil
}

// Start recovers orphaned tasks and launches the scheduling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.baseCtx = ctx

	orphaned, err := s.store.FailRunningTasks(ctx, "orphaned at startup")
	if err != nil {
		return fmt.Errorf("failed to recover orphaned tasks: %w", err)
	}
	if orphaned > 0 {
		slog.Warn("Failed tasks orphaned by a previous process", "count", orphaned)
	}

	go s.loop()
	slog.Info("Task scheduler started",
		"max_concurrent", s.cfg.MaxConcurrent,
		"poll_interval", s.cfg.PollInterval.Std().String())
	return nil
}

// Stop ends the loop and waits for in-flight tasks up to the drain
// timeout, then emits queue:drained.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.loopDone

		drained := make(chan struct{})
		go func() {
			s.inflight.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(s.cfg.DrainTimeout.Std()):
			slog.Warn("Drain timeout reached with tasks still in flight",
				"running", s.running.Load())
		}

		if s.bus != nil {
			s.bus.Publish(events.GlobalQueueChannel, events.Event{
				Type:      events.EventTypeQueueDrained,
				Timestamp: time.Now(),
			})
		}
		slog.Info("Task scheduler stopped")
	})
}

// Running reports the number of tasks currently executing.
func (s *Scheduler) Running() int {
	return int(s.running.Load())
}

func (s *Scheduler) loop() {
	defer close(s.loopDone)
	ticker := time.NewTicker(s.cfg.PollInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-s.baseCtx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick admits queued tasks into the free worker slots, in priority order.
func (s *Scheduler) tick() {
	free := s.cfg.MaxConcurrent - int(s.running.Load())
	if free <= 0 {
		return
	}

	tasks, err := s.store.GetQueuedTasks(s.baseCtx, free)
	if err != nil {
		slog.Error("Failed to poll queued tasks", "error", err)
		return
	}

	for _, task := range tasks {
		if err := s.store.UpdateTaskStatus(s.baseCtx, task.ID, models.TaskStatusRunning, ""); err != nil {
			slog.Error("Failed to admit task", "task_id", task.ID, "error", err)
			continue
		}
		s.running.Add(1)
		s.inflight.Add(1)
		go s.execute(task)
	}
}

// execute runs one task with retries. Each attempt races the task
// timeout; exhausted retries mark the task failed with the last error.
func (s *Scheduler) execute(task *models.Task) {
	defer s.inflight.Done()
	defer s.running.Add(-1)

	s.publish(events.EventTypeTaskStarted, task)

	directive := models.Directive{
		Query:     task.Query,
		Context:   task.Context,
		Depth:     task.Depth,
		SessionID: task.SessionID,
	}
	maxAttempts := s.cfg.RetryAttempts + 1

	var lastErr error
	for {
		attempt, err := s.store.IncrementTaskAttempts(s.baseCtx, task.ID)
		if err != nil {
			slog.Error("Failed to count task attempt", "task_id", task.ID, "error", err)
			attempt = task.Attempts + 1
		}
		task.Attempts = attempt

		result, err := s.runOnce(directive)
		if err == nil {
			if err := s.store.SaveTaskResult(s.baseCtx, task.ID, result.FindingID); err != nil {
				slog.Error("Failed to save task result", "task_id", task.ID, "error", err)
			}
			task.Status = models.TaskStatusCompleted
			task.FindingID = result.FindingID
			s.publish(events.EventTypeTaskCompleted, task)
			return
		}

		lastErr = err
		slog.Warn("Task attempt failed",
			"task_id", task.ID, "attempt", attempt, "error", err)

		if attempt >= maxAttempts {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * backoffUnit):
		case <-s.stopCh:
			if err := s.store.UpdateTaskStatus(s.baseCtx, task.ID, models.TaskStatusCancelled, "scheduler stopped during retry"); err != nil {
				slog.Error("Failed to cancel task", "task_id", task.ID, "error", err)
			}
			return
		}
	}

	if err := s.store.UpdateTaskStatus(s.baseCtx, task.ID, models.TaskStatusFailed, lastErr.Error()); err != nil {
		slog.Error("Failed to mark task failed", "task_id", task.ID, "error", err)
	}
	task.Status = models.TaskStatusFailed
	task.Error = lastErr.Error()
	s.publish(events.EventTypeTaskFailed, task)
}

// runOnce executes one exploration attempt under the task deadline.
func (s *Scheduler) runOnce(directive models.Directive) (*models.Result, error) {
	ctx, cancel := context.WithTimeout(s.baseCtx, s.cfg.TaskTimeout.Std())
	defer cancel()
	return s.explorer.Explore(ctx, directive)
}

func (s *Scheduler) publish(eventType string, task *models.Task) {
	if s.bus == nil {
		return
	}
	ev := events.Event{
		Type:      eventType,
		SessionID: task.SessionID,
		Payload: map[string]any{
			"task_id":  task.ID,
			"query":    task.Query,
			"status":   string(task.Status),
			"attempts": task.Attempts,
		},
		Timestamp: time.Now(),
	}
	if task.Error != "" {
		ev.Payload["error"] = task.Error
	}
	if task.SessionID != "" {
		s.bus.Publish(events.SessionChannel(task.SessionID), ev)
	}
	s.bus.Publish(events.GlobalQueueChannel, ev)
}
