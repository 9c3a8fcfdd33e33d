package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// listSessionsHandler handles GET /api/sessions.
func (s *Server) listSessionsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": s.sessions.List()})
}

// getSessionHandler handles GET /api/sessions/:id.
func (s *Server) getSessionHandler(c *gin.Context) {
	summary, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": summary})
}

// resetCooldownHandler handles POST /api/sessions/:id/reset-cooldown.
func (s *Server) resetCooldownHandler(c *gin.Context) {
	if err := s.sessions.ResetCooldown(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"reset": true}})
}
