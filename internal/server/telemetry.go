package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/fuelgrid/tanksync/internal/telemetry/domain"
	"github.com/gin-gonic/gin"
)

// Vendors occasionally retry with enormous bodies; cap reads well above any
// legitimate batch.
const maxWebhookBodyBytes = 10 << 20

// IngestTelemetry accepts a vendor telemetry push. The body is either a
// single record object or an array of records.
func (s *Server) IngestTelemetry(c *gin.Context) {
	started := time.Now()

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		s.auditRejection(c, "request body could not be read")
		s.respondIngestFailure(c, http.StatusBadRequest, "invalid_body", "request body could not be read", started)
		return
	}

	records, ok := decodeVendorBody(body)
	if !ok {
		s.auditRejection(c, "body is not a vendor record object or array")
		s.respondIngestFailure(c, http.StatusBadRequest, "invalid_json",
			"body must be a vendor record object or an array of records", started)
		return
	}

	summary, err := s.telemetry.Ingest(c.Request.Context(), records, "vendor_webhook")
	if err != nil {
		status := http.StatusInternalServerError
		code := "ingest_failed"
		if errors.Is(err, domain.ErrEmptyBatch) || errors.Is(err, domain.ErrBatchTooLarge) {
			status = http.StatusBadRequest
			code = "invalid_request"
		}
		s.respondIngestFailure(c, status, code, err.Error(), started)
		return
	}

	resp := gin.H{
		"success": true,
		"stats": gin.H{
			"totalRecords":     summary.TotalRecords,
			"processedRecords": summary.ProcessedRecords,
			"errorCount":       summary.ErrorCount(),
			"duration":         summary.Duration.String(),
		},
	}
	if len(summary.Errors) > 0 {
		resp["errors"] = s.truncateErrors(summary.Errors)
	}
	c.JSON(http.StatusOK, resp)
}

// decodeVendorBody accepts a single object or an array. Field-level garbage
// is tolerated by the lenient record types; only structural garbage fails.
func decodeVendorBody(body []byte) ([]domain.VendorRecord, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, false
	}

	switch trimmed[0] {
	case '[':
		var records []domain.VendorRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, false
		}
		return records, true
	case '{':
		var record domain.VendorRecord
		if err := json.Unmarshal(trimmed, &record); err != nil {
			return nil, false
		}
		return []domain.VendorRecord{record}, true
	default:
		return nil, false
	}
}

func (s *Server) respondIngestFailure(c *gin.Context, status int, code, message string, started time.Time) {
	c.JSON(status, gin.H{
		"success":  false,
		"error":    code,
		"message":  message,
		"duration": time.Since(started).String(),
	})
}

// truncateErrors returns the first N errors; the sync log keeps the rest.
func (s *Server) truncateErrors(errs []string) []string {
	max := s.cfg.Ingest.MaxErrors
	if max <= 0 {
		max = 10
	}
	if len(errs) <= max {
		return errs
	}
	return errs[:max]
}
