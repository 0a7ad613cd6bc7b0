package api

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/presence/internal/observability"
)

// Probe and scrape endpoints hit every few seconds; logging them drowns
// out everything else.
var quietPaths = map[string]struct{}{
	"/healthz": {},
	"/metrics": {},
}

// LoggingMiddleware records a latency histogram for every request and
// logs the ones worth reading.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		elapsed := time.Since(start)

		observability.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(status),
		).Observe(elapsed.Seconds())

		if _, quiet := quietPaths[path]; quiet {
			return
		}

		slog.Info("http request",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"bytes", c.Writer.Size(),
			"elapsed_ms", float64(elapsed.Microseconds())/1000.0,
			"ip", c.ClientIP(),
		)
	}
}
