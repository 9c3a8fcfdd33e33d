// Package cleanup enforces data retention in the background.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/assistkit/scout/pkg/config"
)

// RetentionStore is the store subset the cleanup loop operates on.
// Satisfied by *store.Store.
type RetentionStore interface {
	DeleteExpiredURLs(ctx context.Context) (int64, error)
	DeleteOldTasks(ctx context.Context, age time.Duration) (int64, error)
	DeleteStalePartialFindings(ctx context.Context, age time.Duration) (int64, error)
}

// SessionPruner drops idle sessions from memory. Satisfied by
// *session.Tracker.
type SessionPruner interface {
	PruneInactive(idle time.Duration) int
}

// Service periodically enforces retention policies:
//   - Removes expired URL cache rows
//   - Prunes idle in-memory sessions
//   - Deletes terminal tasks past the task age
//   - Deletes stale partial findings (final findings are never touched)
//
// All operations are idempotent.
type Service struct {
	config  *config.RetentionConfig
	store   RetentionStore
	tracker SessionPruner
	idleTTL time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service. tracker may be nil when
// session pruning is handled elsewhere.
func NewService(cfg *config.RetentionConfig, st RetentionStore, tracker SessionPruner, idleTTL time.Duration) *Service {
	if cfg == nil {
		cfg = config.DefaultRetentionConfig()
	}
	return &Service{
		config:  cfg,
		store:   st,
		tracker: tracker,
		idleTTL: idleTTL,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"interval", s.config.Interval.Std(),
		"task_age", s.config.TaskAge.Std(),
		"partial_finding_age", s.config.PartialFindingAge.Std())
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.Interval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.expireURLCache(ctx)
	s.pruneSessions()
	s.deleteOldTasks(ctx)
	s.deleteStaleFindings(ctx)
}

func (s *Service) expireURLCache(ctx context.Context) {
	count, err := s.store.DeleteExpiredURLs(ctx)
	if err != nil {
		slog.Error("Retention: URL cache cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: expired cached URLs", "count", count)
	}
}

func (s *Service) pruneSessions() {
	if s.tracker == nil || s.idleTTL <= 0 {
		return
	}
	if count := s.tracker.PruneInactive(s.idleTTL); count > 0 {
		slog.Info("Retention: pruned idle sessions", "count", count)
	}
}

func (s *Service) deleteOldTasks(ctx context.Context) {
	count, err := s.store.DeleteOldTasks(ctx, s.config.TaskAge.Std())
	if err != nil {
		slog.Error("Retention: task cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: deleted old tasks", "count", count)
	}
}

func (s *Service) deleteStaleFindings(ctx context.Context) {
	count, err := s.store.DeleteStalePartialFindings(ctx, s.config.PartialFindingAge.Std())
	if err != nil {
		slog.Error("Retention: partial finding cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: deleted stale partial findings", "count", count)
	}
}
