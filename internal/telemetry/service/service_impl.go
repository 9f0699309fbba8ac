// Package service implements the telemetry upsert orchestrator.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fuelgrid/tanksync/internal/alerting"
	"github.com/fuelgrid/tanksync/internal/clock"
	"github.com/fuelgrid/tanksync/internal/config"
	"github.com/fuelgrid/tanksync/internal/consumption"
	"github.com/fuelgrid/tanksync/internal/observability/metrics"
	"github.com/fuelgrid/tanksync/internal/synclog"
	"github.com/fuelgrid/tanksync/internal/telemetry/domain"
	"github.com/fuelgrid/tanksync/internal/telemetry/transform"
	"github.com/fuelgrid/tanksync/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var locationUpdateColumns = []string{
	"name", "customer_name", "customer_guid",
	"address", "suburb", "state", "postcode", "country",
	"installation_status",
	"current_level_litres", "current_level_percent",
	"last_telemetry_at", "last_telemetry_epoch",
	"updated_at",
}

var assetUpdateColumns = []string{
	"location_id",
	"serial_number", "device_serial_number", "profile_name", "commodity",
	"capacity_litres", "max_depth", "max_pressure",
	"current_level_litres", "current_level_percent", "raw_fill_percent",
	"depth", "pressure", "ullage_litres",
	"daily_consumption_litres", "days_remaining",
	"is_online", "battery_voltage", "temperature_c", "device_state",
	"activated_at", "activation_epoch",
	"last_telemetry_at", "last_telemetry_epoch",
	"last_raw_telemetry_at", "last_raw_telemetry_epoch",
	"last_calibrated_at", "last_calibrated_epoch",
	"updated_at",
}

// Params are the orchestrator dependencies.
type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Cfg         config.Config
	Transformer *transform.Transformer
	Estimator   *consumption.Estimator
	Alerts      *alerting.Service
	SyncLogs    *synclog.Recorder
	Metrics     *metrics.PipelineMetrics `optional:"true"`
}

// Service drives the per-record pipeline: transform, upsert location and
// asset, evaluate alerts, estimate consumption, append the reading.
type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	transformer *transform.Transformer
	estimator   *consumption.Estimator
	alerts      *alerting.Service
	syncLogs    *synclog.Recorder
	metrics     *metrics.PipelineMetrics

	locations repository.Repository[domain.Location]
	assets    repository.Repository[domain.Asset]
	readings  repository.Repository[domain.Reading]

	recordTimeout time.Duration
	maxBatchSize  int
}

// NewService constructs the orchestrator.
func NewService(p Params) domain.Service {
	recordTimeout := p.Cfg.Ingest.RecordTimeout
	if recordTimeout <= 0 {
		recordTimeout = 10 * time.Second
	}
	maxBatchSize := p.Cfg.Ingest.MaxBatchSize
	if maxBatchSize <= 0 {
		maxBatchSize = 500
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("telemetry.service"),
		genID: p.GenID,
		clock: p.Clock,

		transformer: p.Transformer,
		estimator:   p.Estimator,
		alerts:      p.Alerts,
		syncLogs:    p.SyncLogs,
		metrics:     p.Metrics,

		locations: repository.ProvideStore[domain.Location](p.DB),
		assets:    repository.ProvideStore[domain.Asset](p.DB),
		readings:  repository.ProvideStore[domain.Reading](p.DB),

		recordTimeout: recordTimeout,
		maxBatchSize:  maxBatchSize,
	}
}

// Ingest processes a batch sequentially. Records are interdependent only
// through persisted state, but ordering decides which previous state each
// alert evaluation sees, so no fan-out. A failing record is captured and
// skipped; the batch continues. Exactly one sync log row is written.
func (s *Service) Ingest(ctx context.Context, records []domain.VendorRecord, source string) (domain.IngestSummary, error) {
	startedAt := s.clock.Now()
	summary := domain.IngestSummary{TotalRecords: len(records)}

	var batchErr error
	switch {
	case len(records) == 0:
		batchErr = domain.ErrEmptyBatch
	case len(records) > s.maxBatchSize:
		batchErr = fmt.Errorf("%w: %d records (max %d)", domain.ErrBatchTooLarge, len(records), s.maxBatchSize)
	}

	if batchErr == nil {
		for i, rec := range records {
			if err := s.processRecord(ctx, rec, &summary); err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("record %d (%s): %v", i, recordLabel(rec), err))
				s.metrics.IncFailed(source)
				continue
			}
			summary.ProcessedRecords++
			s.metrics.IncProcessed(source)
		}
	} else {
		summary.Errors = append(summary.Errors, batchErr.Error())
	}

	finishedAt := s.clock.Now()
	summary.Duration = finishedAt.Sub(startedAt)
	s.metrics.ObserveBatch(summary.Duration.Seconds())

	s.syncLogs.Record(ctx, synclog.Entry{
		SyncType:           synclog.TypeVendorWebhook,
		Source:             source,
		Status:             summary.Status(),
		LocationsProcessed: summary.LocationCount,
		AssetsProcessed:    summary.AssetCount,
		ReadingsProcessed:  summary.ReadingCount,
		Errors:             summary.Errors,
		StartedAt:          startedAt,
		FinishedAt:         finishedAt,
	})

	s.log.Info("batch ingested",
		zap.String("source", source),
		zap.String("status", summary.Status()),
		zap.Int("total", summary.TotalRecords),
		zap.Int("processed", summary.ProcessedRecords),
		zap.Int("errors", summary.ErrorCount()),
		zap.Duration("duration", summary.Duration),
	)

	return summary, batchErr
}

// processRecord runs one record through the pipeline under a bounded
// deadline so a slow persistence call cannot stall the whole delivery.
// Alerting and consumption failures are logged and swallowed; persistence
// of the raw observation is not best-effort.
func (s *Service) processRecord(parent context.Context, rec domain.VendorRecord, summary *domain.IngestSummary) error {
	ctx, cancel := context.WithTimeout(parent, s.recordTimeout)
	defer cancel()

	loc, err := s.transformer.ToLocation(rec)
	if err != nil {
		return fmt.Errorf("transform location: %w", err)
	}
	locationID, err := s.upsertLocation(ctx, &loc)
	if err != nil {
		return fmt.Errorf("upsert location: %w", err)
	}
	summary.LocationCount++

	asset, err := s.transformer.ToAsset(rec, locationID)
	if err != nil {
		return fmt.Errorf("transform asset: %w", err)
	}

	prev, err := s.assets.FindOne(ctx, &domain.Asset{ExternalGUID: asset.ExternalGUID})
	if err != nil {
		return fmt.Errorf("fetch previous asset state: %w", err)
	}

	assetID, err := s.upsertAsset(ctx, &asset, prev)
	if err != nil {
		return fmt.Errorf("upsert asset: %w", err)
	}
	summary.AssetCount++
	asset.ID = assetID

	s.evaluateAlerts(ctx, asset, prev, summary)
	estimate := s.estimateConsumption(ctx, &asset)

	reading := s.transformer.ToReading(rec, assetID)
	reading.ID = s.genID.Generate()
	if estimate != nil && estimate.Sufficient() {
		reading.DailyConsumptionLitres = &estimate.DailyConsumptionLitres
		reading.DaysRemaining = estimate.DaysRemaining
	}
	if err := s.readings.Create(ctx, &reading); err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	summary.ReadingCount++

	return nil
}

// upsertLocation inserts or updates by external GUID; the latest payload
// always overwrites current-state fields. The stored row keeps its original
// ID on conflict, so the persisted ID is read back after the upsert: a
// concurrent first-sight delivery can win the insert, and the asset FK must
// reference the row that actually exists.
func (s *Service) upsertLocation(ctx context.Context, loc *domain.Location) (snowflake.ID, error) {
	loc.ID = s.genID.Generate()
	if err := s.locations.Upsert(ctx, loc, []string{"external_guid"}, locationUpdateColumns); err != nil {
		return 0, err
	}

	persisted, err := s.locations.FindOne(ctx, &domain.Location{ExternalGUID: loc.ExternalGUID})
	if err != nil {
		return 0, err
	}
	if persisted == nil {
		return 0, fmt.Errorf("location %s missing after upsert", loc.ExternalGUID)
	}
	loc.ID = persisted.ID
	return persisted.ID, nil
}

func (s *Service) upsertAsset(ctx context.Context, asset *domain.Asset, prev *domain.Asset) (snowflake.ID, error) {
	if prev != nil {
		asset.ID = prev.ID
	} else {
		asset.ID = s.genID.Generate()
	}

	if err := s.assets.Upsert(ctx, asset, []string{"external_guid"}, assetUpdateColumns); err != nil {
		return 0, err
	}
	if prev != nil {
		return prev.ID, nil
	}

	// First sight of this asset: the insert may have lost a concurrent race,
	// leaving a row with someone else's ID.
	persisted, err := s.assets.FindOne(ctx, &domain.Asset{ExternalGUID: asset.ExternalGUID})
	if err != nil {
		return 0, err
	}
	if persisted == nil {
		return 0, fmt.Errorf("asset %s missing after upsert", asset.ExternalGUID)
	}
	return persisted.ID, nil
}

// evaluateAlerts is best-effort: a failure is logged, never surfaced.
func (s *Service) evaluateAlerts(ctx context.Context, asset domain.Asset, prev *domain.Asset, summary *domain.IngestSummary) {
	var prevState *alerting.PreviousState
	if prev != nil {
		prevState = &alerting.PreviousState{
			IsOnline:     prev.IsOnline,
			LevelPercent: prev.CurrentLevelPercent,
		}
	}

	events := alerting.Evaluate(asset, prevState)
	if len(events) == 0 {
		return
	}
	inserted, err := s.alerts.Persist(ctx, events)
	if err != nil {
		s.log.Warn("alert persistence failed",
			zap.String("asset_guid", asset.ExternalGUID),
			zap.Error(err),
		)
		return
	}
	summary.AlertCount += inserted
}

// estimateConsumption is best-effort. An insufficient estimate must not
// override vendor-supplied consumption fields.
func (s *Service) estimateConsumption(ctx context.Context, asset *domain.Asset) *consumption.Estimate {
	estimate, err := s.estimator.Estimate(ctx, asset.ID, asset.CurrentLevelPercent, asset.CapacityLitres)
	if err != nil {
		s.log.Warn("consumption estimate failed",
			zap.String("asset_guid", asset.ExternalGUID),
			zap.Error(err),
		)
		return nil
	}
	if !estimate.Sufficient() {
		return &estimate
	}

	updates := map[string]any{
		"daily_consumption_litres": estimate.DailyConsumptionLitres,
		"days_remaining":           estimate.DaysRemaining,
	}
	if err := s.db.WithContext(ctx).Model(&domain.Asset{}).
		Where("id = ?", asset.ID).
		Updates(updates).Error; err != nil {
		s.log.Warn("consumption override failed",
			zap.String("asset_guid", asset.ExternalGUID),
			zap.Error(err),
		)
		return &estimate
	}
	asset.DailyConsumptionLitres = &estimate.DailyConsumptionLitres
	asset.DaysRemaining = estimate.DaysRemaining
	return &estimate
}

func recordLabel(rec domain.VendorRecord) string {
	for _, candidate := range []string{
		rec.AssetSerialNumber,
		rec.AssetGUID,
		rec.DeviceSerialNumber,
		rec.LocationID,
		rec.LocationGUID,
	} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return "unidentified"
}
