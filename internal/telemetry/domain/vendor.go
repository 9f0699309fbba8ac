package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexNumber is a JSON number that tolerates vendor quirks: numbers,
// numeric strings, null and garbage all decode without error. Garbage
// decodes to nil so one bad attribute never fails the whole record.
type FlexNumber struct {
	value *float64
}

// NewFlexNumber builds a FlexNumber holding the given value, for tests.
func NewFlexNumber(v float64) FlexNumber {
	return FlexNumber{value: &v}
}

// UnmarshalJSON never returns an error.
func (n *FlexNumber) UnmarshalJSON(data []byte) error {
	n.value = nil

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		n.value = &f
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			n.value = &f
		}
	}
	return nil
}

// MarshalJSON emits the number or null.
func (n FlexNumber) MarshalJSON() ([]byte, error) {
	if n.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.value)
}

// Float returns the parsed value, or nil when absent/unparseable.
func (n FlexNumber) Float() *float64 { return n.value }

// Or returns the parsed value or the given default.
func (n FlexNumber) Or(def float64) float64 {
	if n.value == nil {
		return def
	}
	return *n.value
}

// FlexBool tolerates true/false, "true"/"false", and 0/1.
type FlexBool struct {
	value *bool
}

// NewFlexBool builds a FlexBool holding the given value, for tests.
func NewFlexBool(v bool) FlexBool {
	return FlexBool{value: &v}
}

// UnmarshalJSON never returns an error.
func (b *FlexBool) UnmarshalJSON(data []byte) error {
	b.value = nil

	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		b.value = &v
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		v := f != 0
		b.value = &v
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			b.value = &parsed
		}
	}
	return nil
}

// MarshalJSON emits the bool or null.
func (b FlexBool) MarshalJSON() ([]byte, error) {
	if b.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*b.value)
}

// Bool returns the parsed value, or nil when absent/unparseable.
func (b FlexBool) Bool() *bool { return b.value }

// Or returns the parsed value or the given default.
func (b FlexBool) Or(def bool) bool {
	if b.value == nil {
		return def
	}
	return *b.value
}

// FlexTime captures a timestamp of unknown shape (ISO string, epoch seconds
// or epoch milliseconds). Interpretation is deferred to the timestamp
// normalizer.
type FlexTime struct {
	raw any
}

// NewFlexTime builds a FlexTime holding the given raw value, for tests.
func NewFlexTime(raw any) FlexTime {
	return FlexTime{raw: raw}
}

// UnmarshalJSON never returns an error.
func (t *FlexTime) UnmarshalJSON(data []byte) error {
	t.raw = nil
	var v any
	if err := json.Unmarshal(data, &v); err == nil {
		t.raw = v
	}
	return nil
}

// MarshalJSON emits the raw value or null.
func (t FlexTime) MarshalJSON() ([]byte, error) {
	if t.raw == nil {
		return []byte("null"), nil
	}
	return json.Marshal(t.raw)
}

// Raw returns the decoded JSON value (string, float64 or nil).
func (t FlexTime) Raw() any { return t.raw }

// VendorRecord is the explicit optional-field schema for one vendor
// telemetry push. All numeric and timestamp fields are lenient; missing or
// malformed attributes degrade to nil rather than failing the record.
type VendorRecord struct {
	LocationGUID               string `json:"LocationGuid"`
	LocationID                 string `json:"LocationId"`
	LocationAddress            string `json:"LocationAddress"`
	LocationCategory           string `json:"LocationCategory"`
	LocationInstallationStatus string `json:"LocationInstallationStatus"`
	TenancyName                string `json:"TenancyName"`
	TenancyGUID                string `json:"TenancyGuid"`

	AssetGUID                 string     `json:"AssetGuid"`
	AssetSerialNumber         string     `json:"AssetSerialNumber"`
	AssetProfileName          string     `json:"AssetProfileName"`
	AssetProfileCommodity     string     `json:"AssetProfileCommodity"`
	AssetProfileWaterCapacity FlexNumber `json:"AssetProfileWaterCapacity"`
	AssetProfileMaxDepth      FlexNumber `json:"AssetProfileMaxDepth"`
	AssetProfileMaxPressure   FlexNumber `json:"AssetProfileMaxDisplayPressure"`

	AssetCalibratedFillLevel FlexNumber `json:"AssetCalibratedFillLevel"`
	AssetRawFillLevel        FlexNumber `json:"AssetRawFillLevel"`
	AssetReportedLitres      FlexNumber `json:"AssetReportedLitres"`
	AssetDepth               FlexNumber `json:"AssetDepth"`
	AssetPressure            FlexNumber `json:"AssetPressure"`
	AssetUllage              FlexNumber `json:"AssetUllage"`
	AssetDailyConsumption    FlexNumber `json:"AssetDailyConsumption"`
	AssetDaysRemaining       FlexNumber `json:"AssetDaysRemaining"`

	AssetLastCalibratedTelemetryTimestamp FlexTime   `json:"AssetLastCalibratedTelemetryTimestamp"`
	AssetLastCalibratedTelemetryEpoch     FlexNumber `json:"AssetLastCalibratedTelemetryEpoch"`
	AssetLastRawTelemetryTimestamp        FlexTime   `json:"AssetLastRawTelemetryTimestamp"`
	AssetLastRawTelemetryEpoch            FlexNumber `json:"AssetLastRawTelemetryEpoch"`

	DeviceSerialNumber           string     `json:"DeviceSerialNumber"`
	DeviceOnline                 FlexBool   `json:"DeviceOnline"`
	DeviceBatteryVoltage         FlexNumber `json:"DeviceBatteryVoltage"`
	DeviceTemperature            FlexNumber `json:"DeviceTemperature"`
	DeviceState                  string     `json:"DeviceState"`
	DeviceActivationTimestamp    FlexTime   `json:"DeviceActivationTimestamp"`
	DeviceActivationEpoch        FlexNumber `json:"DeviceActivationEpoch"`
	DeviceLastTelemetryTimestamp FlexTime   `json:"DeviceLastTelemetryTimestamp"`
	DeviceLastTelemetryEpoch     FlexNumber `json:"DeviceLastTelemetryEpoch"`
}
