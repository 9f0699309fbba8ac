// Package events stores alert events for the external notification sink.
package events

import "github.com/bwmarrin/snowflake"

// Alert event types drained by the notification sink.
const (
	EventAlertRaised = "alert.raised"
)

// AlertRaisedPayload captures the minimal data the sink needs to notify on
// a new alert.
type AlertRaisedPayload struct {
	AlertID    string   `json:"alert_id"`
	AssetID    string   `json:"asset_id"`
	LocationID string   `json:"location_id,omitempty"`
	AlertType  string   `json:"alert_type"`
	Severity   string   `json:"severity"`
	Message    string   `json:"message,omitempty"`
	Value      *float64 `json:"value,omitempty"`
}

// ToMap converts the payload into an outbox-friendly map.
func (p AlertRaisedPayload) ToMap() map[string]any {
	payload := map[string]any{
		"alert_id":   p.AlertID,
		"asset_id":   p.AssetID,
		"alert_type": p.AlertType,
		"severity":   p.Severity,
	}
	if p.LocationID != "" {
		payload["location_id"] = p.LocationID
	}
	if p.Message != "" {
		payload["message"] = p.Message
	}
	if p.Value != nil {
		payload["value"] = *p.Value
	}
	return payload
}

// Event describes an alert event to store in the outbox.
type Event struct {
	AlertID   snowflake.ID
	Type      string
	Payload   map[string]any
	DedupeKey string
}
