package health

import (
	"context"
	"fmt"
	"time"
)

// SessionPoolChecker checks the device session pool's connectivity.
type SessionPoolChecker struct {
	pool sessionPoolStatus
}

// sessionPoolStatus is the surface internal/devicesession.Pool exposes for
// health reporting.
type sessionPoolStatus interface {
	// Connected returns the number of currently-connected sessions and the
	// total number of device types the pool is configured to manage.
	Connected() (connected, total int)
}

// NewSessionPoolChecker wraps a device session pool for health reporting.
func NewSessionPoolChecker(pool sessionPoolStatus) *SessionPoolChecker {
	return &SessionPoolChecker{pool: pool}
}

func (c *SessionPoolChecker) Name() string { return "sessionpool" }

func (c *SessionPoolChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	connected, total := c.pool.Connected()

	status := StatusHealthy
	message := "ok"
	if total > 0 && connected == 0 {
		status = StatusDegraded
		message = "no device sessions connected"
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: map[string]interface{}{
			"connected": connected,
			"total":     total,
			"summary":   fmt.Sprintf("%d/%d connected", connected, total),
		},
		Latency: time.Since(start),
	}
}
