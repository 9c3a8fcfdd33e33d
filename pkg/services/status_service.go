package services

import (
	"context"
	"fmt"

	"github.com/assistkit/scout/pkg/models"
	"github.com/assistkit/scout/pkg/session"
)

// StatusStore is the store subset backing health and stats projections.
// Satisfied by *store.Store.
type StatusStore interface {
	GetQueueStats(ctx context.Context) (*models.QueueStats, error)
	IsVectorReady() bool
}

// RunningCounter reports in-flight task executions. Satisfied by
// *queue.Scheduler.
type RunningCounter interface {
	Running() int
}

// Health is the service readiness projection.
type Health struct {
	Status      string `json:"status"`
	VectorReady bool   `json:"vector_ready"`
	LLMProvider string `json:"llm_provider,omitempty"`
	Sessions    int    `json:"sessions"`
	Running     int    `json:"running_tasks"`
}

// StatusService projects queue stats and overall health.
type StatusService struct {
	store       StatusStore
	scheduler   RunningCounter
	tracker     *session.Tracker
	llmProvider string
}

// NewStatusService creates a new StatusService.
func NewStatusService(st StatusStore, scheduler RunningCounter, tracker *session.Tracker, llmProvider string) *StatusService {
	if st == nil {
		panic("NewStatusService: store must not be nil")
	}
	return &StatusService{
		store:       st,
		scheduler:   scheduler,
		tracker:     tracker,
		llmProvider: llmProvider,
	}
}

// QueueStats returns task counts by status.
func (s *StatusService) QueueStats(ctx context.Context) (*models.QueueStats, error) {
	stats, err := s.store.GetQueueStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue stats: %w", err)
	}
	return stats, nil
}

// Health reports readiness. The store read doubles as the liveness
// probe: a failing database marks the service degraded.
func (s *StatusService) Health(ctx context.Context) Health {
	h := Health{
		Status:      "ok",
		VectorReady: s.store.IsVectorReady(),
		LLMProvider: s.llmProvider,
	}
	if _, err := s.store.GetQueueStats(ctx); err != nil {
		h.Status = "degraded"
	}
	if s.tracker != nil {
		h.Sessions = s.tracker.Stats().Sessions
	}
	if s.scheduler != nil {
		h.Running = s.scheduler.Running()
	}
	return h
}
