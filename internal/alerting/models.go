// Package alerting detects threshold conditions on assets and persists
// de-duplicated alerts.
package alerting

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Alert types.
const (
	TypeLowBattery        = "low_battery"
	TypeLowFuel           = "low_fuel"
	TypeDeviceOffline     = "device_offline"
	TypeManualDipLow      = "manual_dip_low"
	TypeManualDipCritical = "manual_dip_critical"
)

// Severities.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert is one detected threshold condition for an asset. At most one
// active alert per (asset, type) may exist; the partial unique index on
// (asset_id, alert_type) WHERE is_active enforces this under concurrent
// delivery.
type Alert struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	AssetID    snowflake.ID `gorm:"not null;index" json:"asset_id"`
	LocationID snowflake.ID `gorm:"" json:"location_id"`

	Type     string `gorm:"column:alert_type;type:text;not null" json:"alert_type"`
	Severity string `gorm:"type:text;not null" json:"severity"`
	Message  string `gorm:"type:text;not null" json:"message"`

	CurrentValue   *float64 `gorm:"" json:"current_value"`
	ThresholdValue *float64 `gorm:"" json:"threshold_value"`
	PreviousValue  *float64 `gorm:"" json:"previous_value"`

	IsActive   bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	ResolvedAt *time.Time `gorm:"" json:"resolved_at"`
}

// TableName sets the database table name.
func (Alert) TableName() string { return "alerts" }

// Event is a detected condition not yet persisted.
type Event struct {
	AssetID    snowflake.ID
	LocationID snowflake.ID

	Type     string
	Severity string
	Message  string

	CurrentValue   *float64
	ThresholdValue *float64
	PreviousValue  *float64
}

// PreviousState is the asset state visible before the current record was
// applied, used for edge-triggered rules.
type PreviousState struct {
	IsOnline     bool
	LevelPercent float64
}
