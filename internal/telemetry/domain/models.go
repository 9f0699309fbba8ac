// Package domain contains persistence models for tank telemetry ingestion.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Reading sources.
const (
	ReadingSourceVendor = "vendor"
	ReadingSourceManual = "manual"
)

// Location is a physical site owning one or more tank assets. Rows are
// upserted by ExternalGUID and never hard-deleted by the pipeline.
type Location struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	ExternalGUID string       `gorm:"column:external_guid;type:text;not null;uniqueIndex" json:"external_guid"`
	Name         string       `gorm:"type:text;not null" json:"name"`
	CustomerName string       `gorm:"type:text;not null" json:"customer_name"`
	CustomerGUID string       `gorm:"column:customer_guid;type:text;not null" json:"customer_guid"`

	Address  string `gorm:"type:text;not null" json:"address"`
	Suburb   string `gorm:"type:text;not null" json:"suburb"`
	State    string `gorm:"type:text;not null" json:"state"`
	Postcode string `gorm:"type:text;not null" json:"postcode"`
	Country  string `gorm:"type:text;not null" json:"country"`

	InstallationStatus string `gorm:"type:text;not null" json:"installation_status"`

	// Mirrored from the primary asset on every telemetry event.
	CurrentLevelLitres  float64 `gorm:"not null" json:"current_level_litres"`
	CurrentLevelPercent float64 `gorm:"not null" json:"current_level_percent"`

	LastTelemetryAt    *time.Time `gorm:"" json:"last_telemetry_at"`
	LastTelemetryEpoch *int64     `gorm:"" json:"last_telemetry_epoch"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (Location) TableName() string { return "locations" }

// Asset is one tank/sensor unit. It belongs to exactly one Location and is
// upserted by ExternalGUID.
type Asset struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	LocationID   snowflake.ID `gorm:"not null;index" json:"location_id"`
	ExternalGUID string       `gorm:"column:external_guid;type:text;not null;uniqueIndex" json:"external_guid"`

	SerialNumber       string `gorm:"type:text;not null" json:"serial_number"`
	DeviceSerialNumber string `gorm:"type:text;not null" json:"device_serial_number"`
	ProfileName        string `gorm:"type:text;not null" json:"profile_name"`
	Commodity          string `gorm:"type:text;not null" json:"commodity"`

	CapacityLitres float64 `gorm:"not null" json:"capacity_litres"`
	MaxDepth       float64 `gorm:"not null" json:"max_depth"`
	MaxPressure    float64 `gorm:"not null" json:"max_pressure"`

	CurrentLevelLitres float64 `gorm:"not null" json:"current_level_litres"`
	// CurrentLevelPercent is always within [0,100].
	CurrentLevelPercent float64 `gorm:"not null" json:"current_level_percent"`
	RawFillPercent      float64 `gorm:"not null" json:"raw_fill_percent"`
	Depth               float64 `gorm:"not null" json:"depth"`
	Pressure            float64 `gorm:"not null" json:"pressure"`
	UllageLitres        float64 `gorm:"not null" json:"ullage_litres"`

	// Consumption analytics; vendor-supplied values are overwritten by the
	// estimator when it has enough signal.
	DailyConsumptionLitres *float64 `gorm:"" json:"daily_consumption_litres"`
	DaysRemaining          *float64 `gorm:"" json:"days_remaining"`

	IsOnline       bool     `gorm:"not null" json:"is_online"`
	BatteryVoltage *float64 `gorm:"" json:"battery_voltage"`
	TemperatureC   *float64 `gorm:"column:temperature_c" json:"temperature_c"`
	DeviceState    string   `gorm:"type:text;not null" json:"device_state"`

	ActivatedAt           *time.Time `gorm:"" json:"activated_at"`
	ActivationEpoch       *int64     `gorm:"" json:"activation_epoch"`
	LastTelemetryAt       *time.Time `gorm:"" json:"last_telemetry_at"`
	LastTelemetryEpoch    *int64     `gorm:"" json:"last_telemetry_epoch"`
	LastRawTelemetryAt    *time.Time `gorm:"" json:"last_raw_telemetry_at"`
	LastRawTelemetryEpoch *int64     `gorm:"" json:"last_raw_telemetry_epoch"`
	LastCalibratedAt      *time.Time `gorm:"" json:"last_calibrated_at"`
	LastCalibratedEpoch   *int64     `gorm:"" json:"last_calibrated_epoch"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (Asset) TableName() string { return "assets" }

// Reading is an immutable snapshot of one asset at one instant. Rows are
// append-only and feed the consumption estimator.
type Reading struct {
	ID      snowflake.ID `gorm:"primaryKey" json:"id"`
	AssetID snowflake.ID `gorm:"not null;index" json:"asset_id"`
	Source  string       `gorm:"type:text;not null;default:vendor" json:"source"`

	LevelLitres    float64 `gorm:"not null" json:"level_litres"`
	LevelPercent   float64 `gorm:"not null" json:"level_percent"`
	RawFillPercent float64 `gorm:"not null" json:"raw_fill_percent"`
	Depth          float64 `gorm:"not null" json:"depth"`
	Pressure       float64 `gorm:"not null" json:"pressure"`
	UllageLitres   float64 `gorm:"not null" json:"ullage_litres"`

	BatteryVoltage *float64 `gorm:"" json:"battery_voltage"`
	TemperatureC   *float64 `gorm:"column:temperature_c" json:"temperature_c"`
	IsOnline       bool     `gorm:"not null" json:"is_online"`
	DeviceState    string   `gorm:"type:text;not null" json:"device_state"`

	DailyConsumptionLitres *float64 `gorm:"" json:"daily_consumption_litres"`
	DaysRemaining          *float64 `gorm:"" json:"days_remaining"`

	RecordedAt time.Time `gorm:"not null" json:"recorded_at"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (Reading) TableName() string { return "readings" }
