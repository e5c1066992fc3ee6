package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger logs failed control plane requests at warn and the rest at debug.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"status", c.Writer.Status(),
			"path", c.Request.URL.Path,
			"latency", time.Since(start),
		}
		if len(c.Errors) > 0 {
			slog.Warn("control plane request", append(attrs, "errors", c.Errors.String())...)
			return
		}
		slog.Debug("control plane request", attrs...)
	}
}
