package health

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DatabaseChecker checks the embedded SQLite connection pool.
type DatabaseChecker struct {
	db *sql.DB
}

// NewDatabaseChecker wraps the *sql.DB underlying a GORM connection.
func NewDatabaseChecker(db *sql.DB) *DatabaseChecker {
	return &DatabaseChecker{db: db}
}

func (c *DatabaseChecker) Name() string { return "database" }

func (c *DatabaseChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	if err := c.db.PingContext(ctx); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("ping failed: %v", err),
			Latency: time.Since(start),
		}
	}

	stats := c.db.Stats()

	utilization := 0.0
	if stats.MaxOpenConnections > 0 {
		utilization = float64(stats.InUse) / float64(stats.MaxOpenConnections)
	}

	status := StatusHealthy
	message := "ok"

	if utilization > 0.9 {
		status = StatusDegraded
		message = "connection pool near limit"
	}
	if stats.WaitCount > 0 && stats.WaitDuration > 5*time.Second {
		status = StatusDegraded
		message = "connections waiting on pool"
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: map[string]interface{}{
			"open_conns":   stats.OpenConnections,
			"in_use":       stats.InUse,
			"idle":         stats.Idle,
			"wait_count":   stats.WaitCount,
			"wait_dur_ms":  stats.WaitDuration.Milliseconds(),
			"max_open":     stats.MaxOpenConnections,
			"utilization":  fmt.Sprintf("%.1f%%", utilization*100),
		},
		Latency: time.Since(start),
	}
}
