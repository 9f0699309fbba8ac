package server

import (
	"net/http"

	"github.com/fuelgrid/tanksync/internal/dip"
	"github.com/fuelgrid/tanksync/internal/synclog"
	"github.com/gin-gonic/gin"
)

type recordDipsRequest struct {
	Dips []dip.Entry `json:"dips"`
}

// RecordDips accepts a batch of manually entered dip readings.
func (s *Server) RecordDips(c *gin.Context) {
	var req recordDipsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError("body must be a JSON object with a dips array"))
		return
	}

	summary := s.dips.RecordDips(c.Request.Context(), req.Dips, "dashboard")

	status := http.StatusOK
	if summary.TotalEntries == 0 {
		status = http.StatusBadRequest
	}

	resp := gin.H{
		"success": summary.Status() != synclog.StatusError,
		"stats": gin.H{
			"totalEntries":     summary.TotalEntries,
			"processedEntries": summary.ProcessedEntries,
			"alertCount":       summary.AlertCount,
			"duration":         summary.Duration.String(),
		},
		"results": summary.Results,
	}
	if len(summary.Errors) > 0 {
		resp["errors"] = s.truncateErrors(summary.Errors)
	}
	c.JSON(status, resp)
}
