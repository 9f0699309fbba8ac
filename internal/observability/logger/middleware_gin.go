package logger

import (
	"os"
	"strings"
	"time"

	obscontext "github.com/fuelgrid/tanksync/internal/observability/context"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const headerRequestID = "X-Request-Id"

// MiddlewareConfig controls the request logging middleware.
type MiddlewareConfig struct {
	// SkipPaths are request paths that never produce a log line.
	SkipPaths []string
}

// GinMiddleware assigns every request an ID, propagates it through the
// request context and response header, and emits one summary line per
// request with sensitive headers masked.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skip[path] = struct{}{}
	}

	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, requestID)
		c.Set("request_id", requestID)

		ctx := obscontext.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		if _, ok := skip[c.Request.URL.Path]; ok {
			return
		}

		FromContext(ctx).Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("authorization", MaskAuthorization(c.GetHeader("Authorization"))),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func envFromProcess() string {
	if env := strings.TrimSpace(os.Getenv("TANKSYNC_ENVIRONMENT")); env != "" {
		return env
	}
	return "development"
}
