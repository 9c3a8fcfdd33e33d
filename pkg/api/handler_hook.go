package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/assistkit/scout/pkg/models"
	"github.com/assistkit/scout/pkg/services"
	"github.com/assistkit/scout/pkg/session"
)

// hookAnalysisTimeout bounds the background watcher run kicked off by a
// tool-output hook.
const hookAnalysisTimeout = 30 * time.Second

// hookContinue is the only response the hook endpoint ever sends. The
// assistant blocks on this call; any other answer would stall it.
var hookContinue = gin.H{"continue": true}

// hookHandler handles POST /api/hook. It ingests the event synchronously
// and defers watcher analysis to a goroutine so the reply is immediate.
func (s *Server) hookHandler(c *gin.Context) {
	var req HookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("Malformed hook payload", "error", err)
		c.JSON(http.StatusOK, hookContinue)
		return
	}

	eventType, ok := hookEventType(req.Trigger)
	if !ok {
		slog.Warn("Unknown hook trigger", "trigger", req.Trigger, "session_id", req.SessionID)
		c.JSON(http.StatusOK, hookContinue)
		return
	}

	content := req.Payload
	if s.masker != nil {
		content = s.masker.Mask(content)
	}
	if s.tracker != nil {
		s.tracker.Ingest(req.SessionID, session.Event{
			Type:      eventType,
			Content:   content,
			Timestamp: time.Now(),
		})
		if req.WorkingDir != "" {
			s.tracker.SetWorkingDir(req.SessionID, req.WorkingDir)
		}
	}

	if eventType == session.EventToolOutput && s.watcher != nil {
		go s.analyzeHook(req.SessionID)
	}

	c.JSON(http.StatusOK, hookContinue)
}

// analyzeHook runs the watcher over the freshly ingested tool output and
// enqueues research when it decides positively.
func (s *Server) analyzeHook(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), hookAnalysisTimeout)
	defer cancel()

	decision := s.watcher.QuickAnalyze(ctx, sessionID)
	if decision == nil {
		decision = s.watcher.Analyze(ctx, sessionID, models.TriggerToolOutput)
	}
	if decision == nil || !decision.ShouldResearch {
		return
	}

	task, created, err := s.research.Submit(ctx, services.SubmitResearchInput{
		Query:     decision.Query,
		Context:   decision.Reason,
		Priority:  decision.Priority,
		Trigger:   string(models.TriggerAutonomous),
		SessionID: sessionID,
	})
	if err != nil {
		slog.Warn("Failed to enqueue autonomous research",
			"session_id", sessionID, "query", decision.Query, "error", err)
		return
	}
	if created {
		slog.Info("Autonomous research queued",
			"session_id", sessionID, "task_id", task.ID, "query", decision.Query)
	}
}

func hookEventType(trigger string) (session.EventType, bool) {
	switch trigger {
	case string(models.TriggerUserPrompt):
		return session.EventUserPrompt, true
	case "toolCall":
		return session.EventToolCall, true
	case string(models.TriggerToolOutput):
		return session.EventToolOutput, true
	default:
		return "", false
	}
}
