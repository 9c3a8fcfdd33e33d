package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// requestLogger logs one line per request. The hook endpoint is skipped at
// Info level: it fires on every assistant tool call and would drown the log.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case c.Writer.Status() >= 500:
			slog.Error("Request failed", attrs...)
		case c.Request.URL.Path == "/api/hook":
			slog.Debug("Request", attrs...)
		default:
			slog.Info("Request", attrs...)
		}
	}
}

// securityHeaders sets standard security response headers.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}
