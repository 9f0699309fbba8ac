package alerting

import (
	"fmt"

	"github.com/fuelgrid/tanksync/internal/telemetry/domain"
)

// Threshold constants.
const (
	BatteryWarningVolts  = 3.3
	BatteryCriticalVolts = 3.2

	DaysRemainingWarning  = 7.0
	DaysRemainingCritical = 3.0

	FillPercentWarning  = 15.0
	FillPercentCritical = 10.0
)

// Evaluate computes which alert conditions fire for the given asset
// snapshot. It is pure: persistence and deduplication happen in Persist.
// Rules are independent, so one evaluation can yield several events.
func Evaluate(asset domain.Asset, prev *PreviousState) []Event {
	var events []Event

	if e := evaluateBattery(asset); e != nil {
		events = append(events, *e)
	}
	if e := evaluateFuel(asset); e != nil {
		events = append(events, *e)
	}
	if e := evaluateOfflineEdge(asset, prev); e != nil {
		events = append(events, *e)
	}
	return events
}

func evaluateBattery(asset domain.Asset) *Event {
	v := asset.BatteryVoltage
	if v == nil || *v >= BatteryWarningVolts {
		return nil
	}

	severity := SeverityWarning
	threshold := BatteryWarningVolts
	if *v < BatteryCriticalVolts {
		severity = SeverityCritical
		threshold = BatteryCriticalVolts
	}
	return &Event{
		AssetID:        asset.ID,
		LocationID:     asset.LocationID,
		Type:           TypeLowBattery,
		Severity:       severity,
		Message:        fmt.Sprintf("battery voltage %.2fV below %.1fV", *v, threshold),
		CurrentValue:   v,
		ThresholdValue: &threshold,
	}
}

// evaluateFuel prefers the days-remaining signal; the percent branch only
// fires when days remaining is unavailable. A tank at both thresholds
// therefore only alerts on days remaining.
func evaluateFuel(asset domain.Asset) *Event {
	if dr := asset.DaysRemaining; dr != nil {
		if *dr > DaysRemainingWarning {
			return nil
		}
		severity := SeverityWarning
		threshold := DaysRemainingWarning
		if *dr <= DaysRemainingCritical {
			severity = SeverityCritical
			threshold = DaysRemainingCritical
		}
		return &Event{
			AssetID:        asset.ID,
			LocationID:     asset.LocationID,
			Type:           TypeLowFuel,
			Severity:       severity,
			Message:        fmt.Sprintf("%.1f days of fuel remaining", *dr),
			CurrentValue:   dr,
			ThresholdValue: &threshold,
		}
	}

	pct := asset.CurrentLevelPercent
	if pct > FillPercentWarning {
		return nil
	}
	severity := SeverityWarning
	threshold := FillPercentWarning
	if pct <= FillPercentCritical {
		severity = SeverityCritical
		threshold = FillPercentCritical
	}
	return &Event{
		AssetID:        asset.ID,
		LocationID:     asset.LocationID,
		Type:           TypeLowFuel,
		Severity:       severity,
		Message:        fmt.Sprintf("fill level %.1f%% below %.0f%%", pct, threshold),
		CurrentValue:   &pct,
		ThresholdValue: &threshold,
	}
}

// evaluateOfflineEdge fires only on the online-to-offline transition, not
// on a sustained offline state, so a dead device does not re-alert every
// ingestion cycle.
func evaluateOfflineEdge(asset domain.Asset, prev *PreviousState) *Event {
	if prev == nil || !prev.IsOnline || asset.IsOnline {
		return nil
	}
	previous := 1.0
	current := 0.0
	return &Event{
		AssetID:       asset.ID,
		LocationID:    asset.LocationID,
		Type:          TypeDeviceOffline,
		Severity:      SeverityCritical,
		Message:       "device went offline",
		CurrentValue:  &current,
		PreviousValue: &previous,
	}
}
