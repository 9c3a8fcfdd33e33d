package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/assistkit/scout/pkg/version"
)

// queueStatsHandler handles GET /api/queue/stats.
func (s *Server) queueStatsHandler(c *gin.Context) {
	stats, err := s.status.QueueStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

// healthHandler handles GET /api/health.
func (s *Server) healthHandler(c *gin.Context) {
	h := s.status.Health(c.Request.Context())
	code := http.StatusOK
	if h.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, h)
}

// versionHandler handles GET /api/version.
func (s *Server) versionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get())
}
