package domain

import "errors"

var (
	// ErrMissingIdentifier fires when a record carries neither a location
	// identifier nor an asset identifier to key the upserts on.
	ErrMissingIdentifier = errors.New("missing_identifier")

	// ErrEmptyBatch fires when a webhook body decodes to zero records.
	ErrEmptyBatch = errors.New("empty_batch")

	// ErrBatchTooLarge fires when a batch exceeds the configured maximum.
	ErrBatchTooLarge = errors.New("batch_too_large")
)
