package alerting

import (
	"testing"

	"github.com/fuelgrid/tanksync/internal/telemetry/domain"
)

func f(v float64) *float64 { return &v }

func findEvent(events []Event, alertType string) *Event {
	for i := range events {
		if events[i].Type == alertType {
			return &events[i]
		}
	}
	return nil
}

func TestEvaluateBatteryTiers(t *testing.T) {
	cases := []struct {
		volts    *float64
		severity string
	}{
		{f(3.5), ""},
		{f(3.3), ""},
		{f(3.25), SeverityWarning},
		{f(3.1), SeverityCritical},
		{nil, ""},
	}
	for _, tc := range cases {
		asset := domain.Asset{ID: 1, BatteryVoltage: tc.volts, DaysRemaining: f(30)}
		evt := findEvent(Evaluate(asset, nil), TypeLowBattery)
		if tc.severity == "" {
			if evt != nil {
				t.Fatalf("voltage %v: expected no battery alert, got %+v", tc.volts, evt)
			}
			continue
		}
		if evt == nil {
			t.Fatalf("voltage %v: expected battery alert", *tc.volts)
		}
		if evt.Severity != tc.severity {
			t.Fatalf("voltage %v: expected %s, got %s", *tc.volts, tc.severity, evt.Severity)
		}
	}
}

func TestEvaluateFuelDaysRemaining(t *testing.T) {
	asset := domain.Asset{ID: 1, DaysRemaining: f(5), CurrentLevelPercent: 50}
	evt := findEvent(Evaluate(asset, nil), TypeLowFuel)
	if evt == nil || evt.Severity != SeverityWarning {
		t.Fatalf("expected low_fuel warning at 5 days, got %+v", evt)
	}

	asset.DaysRemaining = f(2)
	evt = findEvent(Evaluate(asset, nil), TypeLowFuel)
	if evt == nil || evt.Severity != SeverityCritical {
		t.Fatalf("expected low_fuel critical at 2 days, got %+v", evt)
	}

	asset.DaysRemaining = f(14)
	if evt := findEvent(Evaluate(asset, nil), TypeLowFuel); evt != nil {
		t.Fatalf("expected no low_fuel at 14 days, got %+v", evt)
	}
}

func TestEvaluateFuelPercentFallback(t *testing.T) {
	asset := domain.Asset{ID: 1, CurrentLevelPercent: 12}
	evt := findEvent(Evaluate(asset, nil), TypeLowFuel)
	if evt == nil || evt.Severity != SeverityWarning {
		t.Fatalf("expected percent warning at 12%%, got %+v", evt)
	}

	asset.CurrentLevelPercent = 8
	evt = findEvent(Evaluate(asset, nil), TypeLowFuel)
	if evt == nil || evt.Severity != SeverityCritical {
		t.Fatalf("expected percent critical at 8%%, got %+v", evt)
	}

	asset.CurrentLevelPercent = 40
	if evt := findEvent(Evaluate(asset, nil), TypeLowFuel); evt != nil {
		t.Fatalf("expected no low_fuel at 40%%, got %+v", evt)
	}
}

func TestEvaluateFuelDaysRemainingMasksPercent(t *testing.T) {
	// Both signals are below threshold; only the days-remaining variant may
	// fire.
	asset := domain.Asset{ID: 1, DaysRemaining: f(5), CurrentLevelPercent: 8}
	events := Evaluate(asset, nil)

	fuelEvents := 0
	for _, evt := range events {
		if evt.Type == TypeLowFuel {
			fuelEvents++
			if evt.CurrentValue == nil || *evt.CurrentValue != 5 {
				t.Fatalf("expected days-remaining value 5, got %+v", evt.CurrentValue)
			}
		}
	}
	if fuelEvents != 1 {
		t.Fatalf("expected exactly one low_fuel event, got %d", fuelEvents)
	}
}

func TestEvaluateOfflineEdge(t *testing.T) {
	asset := domain.Asset{ID: 1, IsOnline: false, DaysRemaining: f(30)}

	evt := findEvent(Evaluate(asset, &PreviousState{IsOnline: true}), TypeDeviceOffline)
	if evt == nil {
		t.Fatalf("expected device_offline on online-to-offline edge")
	}

	if evt := findEvent(Evaluate(asset, &PreviousState{IsOnline: false}), TypeDeviceOffline); evt != nil {
		t.Fatalf("expected no alert for sustained offline state, got %+v", evt)
	}

	if evt := findEvent(Evaluate(asset, nil), TypeDeviceOffline); evt != nil {
		t.Fatalf("expected no alert without previous state, got %+v", evt)
	}

	asset.IsOnline = true
	if evt := findEvent(Evaluate(asset, &PreviousState{IsOnline: true}), TypeDeviceOffline); evt != nil {
		t.Fatalf("expected no alert while online, got %+v", evt)
	}
}

func TestEvaluateMultipleConditions(t *testing.T) {
	asset := domain.Asset{
		ID:             1,
		BatteryVoltage: f(3.0),
		DaysRemaining:  f(2),
		IsOnline:       false,
	}
	events := Evaluate(asset, &PreviousState{IsOnline: true})
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(events), events)
	}
}
