package database

import (
	"context"
	"database/sql"
	"time"
)

// HealthStatus reports database reachability and connection statistics.
type HealthStatus struct {
	Status          string `json:"status"`
	ResponseTime    int64  `json:"response_time_ms"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
}

// Health pings the database and returns connection statistics.
func Health(ctx context.Context, db *sql.DB) (*HealthStatus, error) {
	start := time.Now()

	if err := db.PingContext(ctx); err != nil {
		return &HealthStatus{
			Status:       "unhealthy",
			ResponseTime: time.Since(start).Milliseconds(),
		}, err
	}

	stats := db.Stats()
	return &HealthStatus{
		Status:          "healthy",
		ResponseTime:    time.Since(start).Milliseconds(),
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
	}, nil
}
