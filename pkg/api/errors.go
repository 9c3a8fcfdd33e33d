package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/assistkit/scout/pkg/services"
)

// respondError maps service-layer errors to JSON error responses.
func respondError(c *gin.Context, err error) {
	var validErr *services.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": validErr.Error()})
		return
	}
	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "resource not found"})
		return
	}
	if errors.Is(err, services.ErrCapacity) {
		c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "queue at capacity, retry later"})
		return
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal server error"})
}
