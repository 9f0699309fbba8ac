package domain

import "time"

// IngestSummary aggregates the outcome of one batch execution.
type IngestSummary struct {
	TotalRecords     int
	ProcessedRecords int
	LocationCount    int
	AssetCount       int
	ReadingCount     int
	AlertCount       int
	Errors           []string
	Duration         time.Duration
}

// ErrorCount returns the number of failed records.
func (s IngestSummary) ErrorCount() int { return len(s.Errors) }

// Status maps the summary onto a sync-log status.
func (s IngestSummary) Status() string {
	switch {
	case len(s.Errors) == 0:
		return "success"
	case s.ProcessedRecords > 0:
		return "partial"
	default:
		return "error"
	}
}
