// Package api exposes the HTTP surface: research submission and lookup,
// session snapshots, the assistant hook endpoint, health, and the
// WebSocket event stream.
package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/assistkit/scout/pkg/events"
	"github.com/assistkit/scout/pkg/masking"
	"github.com/assistkit/scout/pkg/models"
	"github.com/assistkit/scout/pkg/services"
	"github.com/assistkit/scout/pkg/session"
)

// Analyzer is the watcher subset the hook endpoint drives. Satisfied by
// *watcher.Watcher.
type Analyzer interface {
	QuickAnalyze(ctx context.Context, sessionID string) *models.Decision
	Analyze(ctx context.Context, sessionID string, trigger models.Trigger) *models.Decision
}

// Server wires the service layer into HTTP handlers.
type Server struct {
	research *services.ResearchService
	sessions *services.SessionService
	status   *services.StatusService
	tracker  *session.Tracker
	watcher  Analyzer
	masker   *masking.Masker
	hub      *events.Hub
}

// NewServer creates the API server. watcher, masker, and hub may be nil;
// the corresponding endpoints degrade instead of failing startup.
func NewServer(
	research *services.ResearchService,
	sessions *services.SessionService,
	status *services.StatusService,
	tracker *session.Tracker,
	w Analyzer,
	masker *masking.Masker,
	hub *events.Hub,
) *Server {
	if research == nil || sessions == nil || status == nil {
		panic("NewServer: services must not be nil")
	}
	return &Server{
		research: research,
		sessions: sessions,
		status:   status,
		tracker:  tracker,
		watcher:  w,
		masker:   masker,
		hub:      hub,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), securityHeaders())

	api := r.Group("/api")
	{
		api.POST("/research", s.submitResearchHandler)
		api.GET("/research", s.listResearchHandler)
		api.GET("/research/:id", s.getResearchHandler)
		api.GET("/search", s.searchHandler)
		api.GET("/findings/related", s.relatedFindingsHandler)
		api.GET("/queue/stats", s.queueStatsHandler)
		api.GET("/sessions", s.listSessionsHandler)
		api.GET("/sessions/:id", s.getSessionHandler)
		api.POST("/sessions/:id/reset-cooldown", s.resetCooldownHandler)
		api.GET("/sources/reliable", s.reliableSourcesHandler)
		api.POST("/hook", s.hookHandler)
		api.GET("/health", s.healthHandler)
		api.GET("/version", s.versionHandler)
	}
	r.GET("/ws", s.wsHandler)

	return r
}
