package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fuelgrid/tanksync/internal/alerting"
	"github.com/fuelgrid/tanksync/internal/telemetry/domain"
	"github.com/fuelgrid/tanksync/pkg/db/pagination"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func parsePagination(c *gin.Context) pagination.Pagination {
	size := defaultPageSize
	if raw := strings.TrimSpace(c.Query("page_size")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			size = parsed
		}
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return pagination.Pagination{
		PageToken: c.Query("page_token"),
		PageSize:  size,
	}
}

func applyCursor(q *gorm.DB, cursor pagination.Cursor) *gorm.DB {
	if cursor.ID == "" {
		return q
	}
	if id, err := strconv.ParseInt(cursor.ID, 10, 64); err == nil {
		return q.Where("id < ?", id)
	}
	return q
}

// ListLocations returns locations newest-first with cursor pagination.
func (s *Server) ListLocations(c *gin.Context) {
	page := parsePagination(c)
	cursor, err := pagination.DecodeCursor(page.PageToken)
	if err != nil {
		AbortWithError(c, invalidRequestError("malformed page token"))
		return
	}

	q := s.db.WithContext(c.Request.Context()).
		Model(&domain.Location{}).
		Order("id DESC").
		Limit(page.PageSize + 1)
	q = applyCursor(q, cursor)

	var rows []domain.Location
	if err := q.Find(&rows).Error; err != nil {
		AbortWithError(c, err)
		return
	}

	pageInfo := pagination.BuildCursorPageInfo(rows, page.PageSize, func(row domain.Location) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:        row.ID.String(),
			CreatedAt: row.CreatedAt.UTC().Format(time.RFC3339),
		})
		return token
	})
	if len(rows) > page.PageSize {
		rows = rows[:page.PageSize]
	}

	c.JSON(http.StatusOK, gin.H{
		"locations": rows,
		"page_info": pageInfo,
	})
}

// ListAlerts returns alerts newest-first, optionally filtered to active
// ones, with cursor pagination.
func (s *Server) ListAlerts(c *gin.Context) {
	page := parsePagination(c)
	cursor, err := pagination.DecodeCursor(page.PageToken)
	if err != nil {
		AbortWithError(c, invalidRequestError("malformed page token"))
		return
	}

	q := s.db.WithContext(c.Request.Context()).
		Model(&alerting.Alert{}).
		Order("id DESC").
		Limit(page.PageSize + 1)
	q = applyCursor(q, cursor)

	if raw := strings.TrimSpace(c.Query("active")); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			AbortWithError(c, invalidRequestError("active must be a boolean"))
			return
		}
		q = q.Where("is_active = ?", active)
	}
	if alertType := strings.TrimSpace(c.Query("type")); alertType != "" {
		q = q.Where("alert_type = ?", alertType)
	}

	var rows []alerting.Alert
	if err := q.Find(&rows).Error; err != nil {
		AbortWithError(c, err)
		return
	}

	pageInfo := pagination.BuildCursorPageInfo(rows, page.PageSize, func(row alerting.Alert) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:        row.ID.String(),
			CreatedAt: row.CreatedAt.UTC().Format(time.RFC3339),
		})
		return token
	})
	if len(rows) > page.PageSize {
		rows = rows[:page.PageSize]
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts":    rows,
		"page_info": pageInfo,
	})
}
