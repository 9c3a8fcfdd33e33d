// Package services is the domain layer between the HTTP handlers and the
// core components: input validation, error mapping, and projections the
// API returns. Handlers never touch the store or queue directly.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/assistkit/scout/pkg/models"
	"github.com/assistkit/scout/pkg/queue"
	"github.com/assistkit/scout/pkg/store"
)

// maxQueryLen bounds accepted research queries.
const maxQueryLen = 1000

// Enqueuer is the queue subset the research service needs. Satisfied by
// *queue.Scheduler.
type Enqueuer interface {
	Enqueue(ctx context.Context, in queue.EnqueueInput) (*models.Task, bool, error)
}

// Explorer runs research synchronously, bypassing the queue. Satisfied
// by *crew.Crew.
type Explorer interface {
	Explore(ctx context.Context, directive models.Directive) (*models.Result, error)
}

// ResearchStore is the store subset backing research reads. Satisfied by
// *store.Store.
type ResearchStore interface {
	GetTask(ctx context.Context, id string) (*models.Task, error)
	GetRecentTasks(ctx context.Context, limit int) ([]*models.Task, error)
	GetFinding(ctx context.Context, id string) (*models.Finding, error)
	SearchFindings(ctx context.Context, query string, limit int) ([]*models.Finding, error)
	FindRelatedFindings(ctx context.Context, query string, limit int) ([]*models.Finding, error)
	GetReliableSources(ctx context.Context, topic string, limit int) ([]models.ReliableSource, error)
}

// SubmitResearchInput is one validated research request.
type SubmitResearchInput struct {
	Query     string
	Depth     string
	Context   string
	Priority  int
	Trigger   string
	SessionID string
}

// ResearchStatus is the task projection returned to clients, with the
// result finding attached once the task completed.
type ResearchStatus struct {
	Task    *models.Task    `json:"task"`
	Finding *models.Finding `json:"finding,omitempty"`
}

// ResearchService validates and routes research requests.
type ResearchService struct {
	queue Enqueuer
	crew  Explorer
	store ResearchStore
}

// NewResearchService creates a new ResearchService.
func NewResearchService(q Enqueuer, crew Explorer, st ResearchStore) *ResearchService {
	if q == nil {
		panic("NewResearchService: queue must not be nil")
	}
	if st == nil {
		panic("NewResearchService: store must not be nil")
	}
	return &ResearchService{queue: q, crew: crew, store: st}
}

// Submit validates the request and enqueues it. created=false means the
// request deduplicated to an existing recent task.
func (s *ResearchService) Submit(ctx context.Context, input SubmitResearchInput) (*models.Task, bool, error) {
	if input.Query == "" {
		return nil, false, NewValidationError("query", "query is required")
	}
	if len(input.Query) > maxQueryLen {
		return nil, false, NewValidationError("query", fmt.Sprintf("query exceeds %d characters", maxQueryLen))
	}
	depth := models.Depth(input.Depth)
	if input.Depth != "" && !depth.Valid() {
		return nil, false, NewValidationError("depth", "depth must be quick, medium, or deep")
	}
	if depth == "" {
		depth = models.DepthMedium
	}
	trigger := models.Trigger(input.Trigger)
	if trigger == "" {
		trigger = models.TriggerManual
	}
	priority := input.Priority
	if priority == 0 {
		priority = 5
	}

	task, created, err := s.queue.Enqueue(ctx, queue.EnqueueInput{
		Query:     input.Query,
		Context:   input.Context,
		Depth:     depth,
		Trigger:   trigger,
		SessionID: input.SessionID,
		Priority:  models.ClampPriority(priority),
	})
	switch {
	case errors.Is(err, queue.ErrEmptyQuery):
		return nil, false, NewValidationError("query", "query is required")
	case errors.Is(err, queue.ErrQueueFull):
		return nil, false, fmt.Errorf("%w: %w", ErrCapacity, err)
	case err != nil:
		return nil, false, fmt.Errorf("failed to submit research: %w", err)
	}
	return task, created, nil
}

// ExploreNow runs research synchronously instead of queueing it. Used by
// clients that want the result in the response.
func (s *ResearchService) ExploreNow(ctx context.Context, input SubmitResearchInput) (*models.Result, error) {
	if s.crew == nil {
		return nil, fmt.Errorf("direct exploration is not configured")
	}
	if input.Query == "" {
		return nil, NewValidationError("query", "query is required")
	}
	depth := models.Depth(input.Depth)
	if input.Depth != "" && !depth.Valid() {
		return nil, NewValidationError("depth", "depth must be quick, medium, or deep")
	}

	result, err := s.crew.Explore(ctx, models.Directive{
		Query:     input.Query,
		Context:   input.Context,
		Depth:     depth,
		SessionID: input.SessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("exploration failed: %w", err)
	}
	return result, nil
}

// Get returns one task with its result finding when completed.
func (s *ResearchService) Get(ctx context.Context, id string) (*ResearchStatus, error) {
	if id == "" {
		return nil, NewValidationError("id", "task id is required")
	}

	task, err := s.store.GetTask(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}

	status := &ResearchStatus{Task: task}
	if task.Status == models.TaskStatusCompleted && task.FindingID != "" {
		finding, err := s.store.GetFinding(ctx, task.FindingID)
		if err == nil {
			status.Finding = finding
		}
	}
	return status, nil
}

// Recent lists the newest tasks.
func (s *ResearchService) Recent(ctx context.Context, limit int) ([]*models.Task, error) {
	tasks, err := s.store.GetRecentTasks(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// Search runs a keyword search over stored findings.
func (s *ResearchService) Search(ctx context.Context, query string, limit int) ([]*models.Finding, error) {
	if query == "" {
		return nil, NewValidationError("q", "search text is required")
	}
	findings, err := s.store.SearchFindings(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search findings: %w", err)
	}
	return findings, nil
}

// Related recalls findings similar to the query, vector-first with
// keyword fallback inside the store.
func (s *ResearchService) Related(ctx context.Context, query string, limit int) ([]*models.Finding, error) {
	if query == "" {
		return nil, NewValidationError("q", "search text is required")
	}
	findings, err := s.store.FindRelatedFindings(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to recall related findings: %w", err)
	}
	return findings, nil
}

// ReliableSources projects the learned source-quality ledger.
func (s *ResearchService) ReliableSources(ctx context.Context, topic string, limit int) ([]models.ReliableSource, error) {
	sources, err := s.store.GetReliableSources(ctx, topic, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reliable sources: %w", err)
	}
	return sources, nil
}
