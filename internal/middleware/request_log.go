package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/The24thDS/karen-backend/internal/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestLog tags every request with an id and logs its outcome.
func RequestLog(log *logger.Logger) gin.HandlerFunc {
	log = log.With("middleware", "RequestLog")
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Next()

		kv := []interface{}{
			"request_id", id,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if caller := Caller(c); caller.ID != "" {
			kv = append(kv, "user_id", caller.ID)
		}
		switch {
		case c.Writer.Status() >= 500:
			log.Error("request failed", append(kv, "errors", c.Errors.String())...)
		case c.Writer.Status() >= 400:
			log.Warn("request rejected", kv...)
		default:
			log.Info("request served", kv...)
		}
	}
}
