// Package transform maps vendor payloads onto the canonical location,
// asset and reading shapes.
package transform

import (
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fuelgrid/tanksync/internal/clock"
	"github.com/fuelgrid/tanksync/internal/telemetry/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Transformer converts vendor records into persistence inputs. All
// derivation policy for missing vendor fields lives here so downstream
// components always see fully-populated structures.
type Transformer struct {
	log   *zap.Logger
	clock clock.Clock
}

// Params are the Transformer dependencies.
type Params struct {
	fx.In

	Log   *zap.Logger
	Clock clock.Clock
}

// New constructs a Transformer.
func New(p Params) *Transformer {
	return &Transformer{
		log:   p.Log.Named("telemetry.transform"),
		clock: p.Clock,
	}
}

// ToLocation maps a vendor record onto a Location upsert input.
func (t *Transformer) ToLocation(rec domain.VendorRecord) (domain.Location, error) {
	guid := strings.TrimSpace(rec.LocationGUID)
	name := strings.TrimSpace(rec.LocationID)
	if guid == "" {
		if name == "" {
			return domain.Location{}, domain.ErrMissingIdentifier
		}
		guid = DeriveGUID("location", name)
	}
	if name == "" {
		name = guid
	}

	address, state, postcode := SplitAddress(rec.LocationAddress)
	lastTelemetry := t.NormalizeTimestamp(rec.DeviceLastTelemetryTimestamp.Raw(), "DeviceLastTelemetryTimestamp")

	loc := domain.Location{
		ExternalGUID:        guid,
		Name:                name,
		CustomerName:        strings.TrimSpace(rec.TenancyName),
		CustomerGUID:        strings.TrimSpace(rec.TenancyGUID),
		Address:             address,
		State:               state,
		Postcode:            postcode,
		InstallationStatus:  strings.TrimSpace(rec.LocationInstallationStatus),
		CurrentLevelLitres:  rec.AssetReportedLitres.Or(0),
		CurrentLevelPercent: t.levelPercent(rec),
		LastTelemetryAt:     &lastTelemetry,
		LastTelemetryEpoch:  telemetryEpoch(rec.DeviceLastTelemetryEpoch, lastTelemetry),
	}
	return loc, nil
}

// ToAsset maps a vendor record onto an Asset upsert input belonging to the
// given location.
func (t *Transformer) ToAsset(rec domain.VendorRecord, locationID snowflake.ID) (domain.Asset, error) {
	guid := strings.TrimSpace(rec.AssetGUID)
	serial := strings.TrimSpace(rec.AssetSerialNumber)
	if serial == "" {
		serial = strings.TrimSpace(rec.DeviceSerialNumber)
	}
	if guid == "" {
		if serial == "" {
			return domain.Asset{}, domain.ErrMissingIdentifier
		}
		guid = DeriveGUID("asset", serial)
	}

	levelPercent := t.levelPercent(rec)
	lastTelemetry := t.NormalizeTimestamp(rec.DeviceLastTelemetryTimestamp.Raw(), "DeviceLastTelemetryTimestamp")
	lastRaw := t.NormalizeTimestamp(rec.AssetLastRawTelemetryTimestamp.Raw(), "AssetLastRawTelemetryTimestamp")
	lastCalibrated := t.NormalizeTimestamp(rec.AssetLastCalibratedTelemetryTimestamp.Raw(), "AssetLastCalibratedTelemetryTimestamp")
	activated := t.NormalizeTimestamp(rec.DeviceActivationTimestamp.Raw(), "DeviceActivationTimestamp")

	asset := domain.Asset{
		LocationID:         locationID,
		ExternalGUID:       guid,
		SerialNumber:       strings.TrimSpace(rec.AssetSerialNumber),
		DeviceSerialNumber: strings.TrimSpace(rec.DeviceSerialNumber),
		ProfileName:        strings.TrimSpace(rec.AssetProfileName),
		Commodity:          strings.TrimSpace(rec.AssetProfileCommodity),

		CapacityLitres: rec.AssetProfileWaterCapacity.Or(0),
		MaxDepth:       rec.AssetProfileMaxDepth.Or(0),
		MaxPressure:    rec.AssetProfileMaxPressure.Or(0),

		CurrentLevelLitres:  rec.AssetReportedLitres.Or(0),
		CurrentLevelPercent: levelPercent,
		RawFillPercent:      t.rawPercent(rec, levelPercent),
		Depth:               rec.AssetDepth.Or(0),
		Pressure:            rec.AssetPressure.Or(0),
		UllageLitres:        rec.AssetUllage.Or(0),

		DailyConsumptionLitres: rec.AssetDailyConsumption.Float(),
		DaysRemaining:          rec.AssetDaysRemaining.Float(),

		IsOnline:       rec.DeviceOnline.Or(false),
		BatteryVoltage: rec.DeviceBatteryVoltage.Float(),
		TemperatureC:   rec.DeviceTemperature.Float(),
		DeviceState:    strings.TrimSpace(rec.DeviceState),

		ActivatedAt:           &activated,
		ActivationEpoch:       telemetryEpoch(rec.DeviceActivationEpoch, activated),
		LastTelemetryAt:       &lastTelemetry,
		LastTelemetryEpoch:    telemetryEpoch(rec.DeviceLastTelemetryEpoch, lastTelemetry),
		LastRawTelemetryAt:    &lastRaw,
		LastRawTelemetryEpoch: telemetryEpoch(rec.AssetLastRawTelemetryEpoch, lastRaw),
		LastCalibratedAt:      &lastCalibrated,
		LastCalibratedEpoch:   telemetryEpoch(rec.AssetLastCalibratedTelemetryEpoch, lastCalibrated),
	}
	return asset, nil
}

// ToReading maps a vendor record onto an append-only Reading for the given
// asset.
func (t *Transformer) ToReading(rec domain.VendorRecord, assetID snowflake.ID) domain.Reading {
	levelPercent := t.levelPercent(rec)
	recordedAt := t.NormalizeTimestamp(rec.AssetLastCalibratedTelemetryTimestamp.Raw(), "AssetLastCalibratedTelemetryTimestamp")

	return domain.Reading{
		AssetID: assetID,
		Source:  domain.ReadingSourceVendor,

		LevelLitres:    rec.AssetReportedLitres.Or(0),
		LevelPercent:   levelPercent,
		RawFillPercent: t.rawPercent(rec, levelPercent),
		Depth:          rec.AssetDepth.Or(0),
		Pressure:       rec.AssetPressure.Or(0),
		UllageLitres:   rec.AssetUllage.Or(0),

		BatteryVoltage: rec.DeviceBatteryVoltage.Float(),
		TemperatureC:   rec.DeviceTemperature.Float(),
		IsOnline:       rec.DeviceOnline.Or(false),
		DeviceState:    strings.TrimSpace(rec.DeviceState),

		DailyConsumptionLitres: rec.AssetDailyConsumption.Float(),
		DaysRemaining:          rec.AssetDaysRemaining.Float(),

		RecordedAt: recordedAt,
	}
}

// levelPercent applies the fill-percent precedence: the vendor-calibrated
// value wins (zero is a legitimate reading), then litres/capacity, then 0.
// The result is clamped to [0,100].
func (t *Transformer) levelPercent(rec domain.VendorRecord) float64 {
	if v := rec.AssetCalibratedFillLevel.Float(); v != nil {
		return clampPercent(*v)
	}
	litres := rec.AssetReportedLitres.Float()
	capacity := rec.AssetProfileWaterCapacity.Float()
	if litres != nil && capacity != nil && *capacity > 0 {
		return clampPercent(*litres / *capacity * 100)
	}
	return 0
}

// rawPercent prefers the vendor raw percent, then the calibrated percent,
// then the computed level percent.
func (t *Transformer) rawPercent(rec domain.VendorRecord, levelPercent float64) float64 {
	if v := rec.AssetRawFillLevel.Float(); v != nil {
		return clampPercent(*v)
	}
	if v := rec.AssetCalibratedFillLevel.Float(); v != nil {
		return clampPercent(*v)
	}
	return levelPercent
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// telemetryEpoch prefers the vendor epoch column, falling back to the
// normalized timestamp.
func telemetryEpoch(raw domain.FlexNumber, fallback time.Time) *int64 {
	if v := raw.Float(); v != nil {
		if millis := EpochMillis(*v); millis != nil {
			return millis
		}
	}
	millis := fallback.UnixMilli()
	return &millis
}

var nonGUIDChars = regexp.MustCompile(`[^a-z0-9-]+`)

// DeriveGUID deterministically derives a stable external GUID from a human
// identifier. The same input must always yield the same GUID or duplicate
// entities would silently accumulate.
func DeriveGUID(kind, name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Join(strings.Fields(slug), "-")
	slug = nonGUIDChars.ReplaceAllString(slug, "")
	return kind + "-" + slug
}

// SplitAddress splits a free-text address on commas, heuristically
// assigning trailing tokens to state and postcode.
func SplitAddress(raw string) (address, state, postcode string) {
	parts := strings.Split(raw, ",")
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			tokens = append(tokens, trimmed)
		}
	}
	switch len(tokens) {
	case 0:
		return "", "", ""
	case 1:
		return tokens[0], "", ""
	case 2:
		return tokens[0], tokens[1], ""
	default:
		return strings.Join(tokens[:len(tokens)-2], ", "), tokens[len(tokens)-2], tokens[len(tokens)-1]
	}
}
