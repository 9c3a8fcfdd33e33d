package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/assistkit/scout/pkg/services"
)

const defaultListLimit = 20

// submitResearchHandler handles POST /api/research.
func (s *Server) submitResearchHandler(c *gin.Context) {
	var req SubmitResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	task, created, err := s.research.Submit(c.Request.Context(), services.SubmitResearchInput{
		Query:     req.Query,
		Depth:     req.Depth,
		Context:   req.Context,
		Priority:  req.Priority,
		Trigger:   req.Trigger,
		SessionID: req.SessionID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	// A deduplicated request returns the prior task with 200 instead of 201.
	code := http.StatusCreated
	if !created {
		code = http.StatusOK
	}
	c.JSON(code, gin.H{"success": true, "data": gin.H{
		"id":     task.ID,
		"status": task.Status,
	}})
}

// getResearchHandler handles GET /api/research/:id.
func (s *Server) getResearchHandler(c *gin.Context) {
	status, err := s.research.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": status})
}

// listResearchHandler handles GET /api/research.
func (s *Server) listResearchHandler(c *gin.Context) {
	tasks, err := s.research.Recent(c.Request.Context(), queryLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": tasks})
}

// searchHandler handles GET /api/search.
func (s *Server) searchHandler(c *gin.Context) {
	findings, err := s.research.Search(c.Request.Context(), c.Query("q"), queryLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": findings})
}

// relatedFindingsHandler handles GET /api/findings/related.
func (s *Server) relatedFindingsHandler(c *gin.Context) {
	findings, err := s.research.Related(c.Request.Context(), c.Query("q"), queryLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": findings})
}

// reliableSourcesHandler handles GET /api/sources/reliable.
func (s *Server) reliableSourcesHandler(c *gin.Context) {
	sources, err := s.research.ReliableSources(c.Request.Context(), c.Query("topic"), queryLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": sources})
}

// queryLimit parses the limit query parameter, capped at 100.
func queryLimit(c *gin.Context) int {
	v := c.Query("limit")
	if v == "" {
		return defaultListLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	if n > 100 {
		return 100
	}
	return n
}
