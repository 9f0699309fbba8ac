package transform

import (
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Epoch values above this are interpreted as milliseconds, below as seconds.
const epochMillisCutoff = 1e12

var stringLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

// NormalizeTimestamp converts a raw vendor timestamp (absent, epoch number
// or date string) to UTC. It never fails: unparseable input logs a
// data-quality warning and falls back to now, so a bad vendor clock can
// never block ingestion. Suspicious but parseable values are logged and
// kept.
func (t *Transformer) NormalizeTimestamp(raw any, field string) time.Time {
	now := t.clock.Now()

	parsed, ok := parseTimestamp(raw, now)
	if !ok {
		t.log.Warn("unparseable vendor timestamp, falling back to now",
			zap.String("field", field),
			zap.Any("value", raw),
		)
		return now
	}

	t.flagSuspicious(parsed, now, field)
	return parsed
}

func parseTimestamp(raw any, now time.Time) (time.Time, bool) {
	switch v := raw.(type) {
	case nil:
		return now, false
	case float64:
		return epochToTime(v), true
	case int64:
		return epochToTime(float64(v)), true
	case int:
		return epochToTime(float64(v)), true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return now, false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return epochToTime(f), true
		}
		for _, layout := range stringLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), true
			}
		}
		return now, false
	case time.Time:
		return v.UTC(), true
	default:
		return now, false
	}
}

func epochToTime(v float64) time.Time {
	if v >= epochMillisCutoff {
		return time.UnixMilli(int64(v)).UTC()
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
}

func (t *Transformer) flagSuspicious(ts, now time.Time, field string) {
	switch {
	case ts.Year() < 2020:
		t.log.Warn("vendor timestamp before 2020",
			zap.String("field", field), zap.Time("value", ts))
	case ts.After(now.AddDate(1, 0, 0)):
		t.log.Warn("vendor timestamp more than a year in the future",
			zap.String("field", field), zap.Time("value", ts))
	case ts.After(now.Add(60 * time.Minute)):
		t.log.Warn("vendor timestamp in the future",
			zap.String("field", field), zap.Time("value", ts))
	case ts.Before(now.Add(-7 * 24 * time.Hour)):
		t.log.Warn("vendor timestamp more than 7 days old",
			zap.String("field", field), zap.Time("value", ts))
	}
}

// EpochMillis floors a possibly-fractional epoch value to integer
// milliseconds for big-integer storage columns. Returns nil when the value
// is absent or not numeric.
func EpochMillis(raw any) *int64 {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case int64:
		f = float64(v)
	case int:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	if f < epochMillisCutoff {
		f *= 1000
	}
	millis := int64(math.Floor(f))
	return &millis
}
