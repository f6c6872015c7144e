package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const contextUserIDKey = "api.user_id"

// requireSession aborts with 401 unless the client's session is bound to a
// user, and stores that user id on the context.
func (h *Handler) requireSession(c *gin.Context) {
	userID, ok, err := h.sessions.Current(c)
	if err != nil {
		h.logger.Warnf("session lookup failed: %v", err)
	}
	if err != nil || !ok {
		writeUnauthorized(c)
		c.Abort()
		return
	}

	c.Set(contextUserIDKey, userID)
	c.Next()
}

func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(contextUserIDKey)
}

// RequestLogger writes one structured line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Error("request", fields...)
		case status >= 400:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}
