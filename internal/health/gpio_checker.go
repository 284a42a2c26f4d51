package health

import (
	"context"
	"fmt"
	"time"
)

// GPIOChecker checks the reset-line GPIO driver.
type GPIOChecker struct {
	driver gpioStatus
}

// gpioStatus is the surface internal/gpio.Driver exposes for health
// reporting; kept as an interface here so this package doesn't import gpio.
type gpioStatus interface {
	Healthy() bool
	LastError() error
	ResetsIssued() int64
}

// NewGPIOChecker wraps a GPIO driver for health reporting.
func NewGPIOChecker(driver gpioStatus) *GPIOChecker {
	return &GPIOChecker{driver: driver}
}

func (c *GPIOChecker) Name() string { return "gpio" }

func (c *GPIOChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	if !c.driver.Healthy() {
		msg := "gpio chip unavailable"
		if err := c.driver.LastError(); err != nil {
			msg = fmt.Sprintf("gpio chip unavailable: %v", err)
		}
		return CheckResult{
			Status:  StatusDegraded,
			Message: msg,
			Details: map[string]interface{}{"resets_issued": c.driver.ResetsIssued()},
			Latency: time.Since(start),
		}
	}

	return CheckResult{
		Status:  StatusHealthy,
		Message: "ok",
		Details: map[string]interface{}{"resets_issued": c.driver.ResetsIssued()},
		Latency: time.Since(start),
	}
}
