package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"marrfa-assistant/internal/metrics"
	"marrfa-assistant/internal/model"
	"marrfa-assistant/internal/service"
)

const (
	requestIDHeader = "X-Request-Id"
	requestIDKey    = "request_id"
)

// RequestIDMiddleware accepts the caller's X-Request-Id or assigns a new one
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestID returns the id assigned by RequestIDMiddleware
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// UsageChecker counts a query against a session's allowance
type UsageChecker interface {
	Allow(ctx context.Context, sessionID string) (bool, int, error)
	Limit() int
}

// UsageLimitMiddleware rejects anonymous sessions that used up their
// allowance with 429. Redis failures let the query through.
func UsageLimitMiddleware(usage UsageChecker, logger *zap.Logger, m *metrics.Metrics) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		var req model.ChatRequest
		if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil || req.IsLoggedIn {
			c.Next()
			return
		}

		allowed, count, err := usage.Allow(c.Request.Context(), req.SessionID)
		if err != nil {
			logger.Warn("usage check failed, allowing query",
				zap.String("request_id", RequestID(c)),
				zap.Error(err),
			)
			c.Next()
			return
		}
		if !allowed {
			m.RecordUsageRejected()
			logger.Info("usage limit reached",
				zap.String("request_id", RequestID(c)),
				zap.String("session_id", req.SessionID),
				zap.Int("count", count),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				errorResponse(c, model.ErrorCodeLimit, service.LimitReply(usage.Limit())))
			return
		}
		c.Next()
	}
}
