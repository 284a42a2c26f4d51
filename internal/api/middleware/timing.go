package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Timing logs a warning, and increments slowCounter if non-nil, for any
// request that takes longer than warnAt to complete.
func Timing(logger *zap.Logger, warnAt time.Duration, slowCounter prometheus.Counter) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		if warnAt > 0 && elapsed > warnAt {
			logger.Warn("slow request",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Duration("elapsed", elapsed),
				zap.Int("status", c.Writer.Status()),
			)
			if slowCounter != nil {
				slowCounter.Inc()
			}
		}
	}
}
