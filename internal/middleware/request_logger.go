package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/habit-tracker-api/internal/metrics"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request and records it in m.
func RequestLogger(log *zap.Logger, m metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		status := c.Writer.Status()
		duration := time.Since(start)
		m.RecordRequest(c.Request.Method, path, status, duration)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", GetRequestID(c)),
		}
		if userID, ok := GetUserID(c); ok {
			fields = append(fields, zap.Uint64("user_id", userID))
		}

		switch {
		case status >= 500:
			log.Error("http_request", fields...)
		case status >= 400:
			log.Warn("http_request", fields...)
		default:
			log.Info("http_request", fields...)
		}
	}
}
