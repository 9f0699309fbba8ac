package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/fuelgrid/tanksync/internal/synclog"
	"github.com/gin-gonic/gin"
)

// WebhookAuthRequired authenticates vendor pushes against the pre-shared
// webhook secret. A missing server-side secret fails closed with a 500: the
// webhook must never accept data while unconfigured. Rejections are audited
// as error sync logs so a misconfigured vendor shows up in the trail.
func (s *Server) WebhookAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := strings.TrimSpace(s.cfg.Webhook.Secret)
		if secret == "" {
			s.log.Error("webhook secret is not configured, rejecting delivery")
			s.auditRejection(c, "webhook secret is not configured")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   "server_misconfigured",
				"message": "webhook authentication is not configured",
			})
			return
		}

		token := bearerToken(c)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			s.auditRejection(c, "invalid or missing bearer token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "unauthorized",
				"message": "invalid or missing bearer token",
			})
			return
		}

		if !s.limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "rate_limited",
				"message": "too many requests",
			})
			return
		}

		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	parts := strings.Fields(header)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (s *Server) auditRejection(c *gin.Context, reason string) {
	now := time.Now().UTC()
	s.syncLogs.Record(c.Request.Context(), synclog.Entry{
		SyncType:   synclog.TypeVendorWebhook,
		Source:     c.ClientIP(),
		Status:     synclog.StatusError,
		Errors:     []string{reason},
		StartedAt:  now,
		FinishedAt: now,
	})
}
