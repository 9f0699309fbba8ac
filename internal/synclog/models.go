// Package synclog records one audit row per ingestion execution.
package synclog

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Sync types.
const (
	TypeVendorWebhook = "vendor_webhook"
	TypeManualDip     = "manual_dip"
)

// Statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusError   = "error"
)

// SyncLog is a write-once audit record of one ingestion execution. The
// pipeline only ever appends these; nothing in the pipeline reads them.
type SyncLog struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	SyncType string       `gorm:"type:text;not null" json:"sync_type"`
	Source   string       `gorm:"type:text;not null" json:"source"`
	Status   string       `gorm:"type:text;not null" json:"status"`

	LocationsProcessed int `gorm:"not null" json:"locations_processed"`
	AssetsProcessed    int `gorm:"not null" json:"assets_processed"`
	ReadingsProcessed  int `gorm:"not null" json:"readings_processed"`
	ErrorCount         int `gorm:"not null" json:"error_count"`

	ErrorSummary string `gorm:"type:text;not null" json:"error_summary"`
	DurationMS   int64  `gorm:"column:duration_ms;not null" json:"duration_ms"`

	StartedAt  time.Time `gorm:"not null" json:"started_at"`
	FinishedAt time.Time `gorm:"not null" json:"finished_at"`
}

// TableName sets the database table name.
func (SyncLog) TableName() string { return "sync_logs" }
