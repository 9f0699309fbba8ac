package domain

import "context"

// Service ingests batches of vendor telemetry records.
type Service interface {
	Ingest(ctx context.Context, records []VendorRecord, source string) (IngestSummary, error)
}
