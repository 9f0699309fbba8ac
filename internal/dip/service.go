package dip

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fuelgrid/tanksync/internal/alerting"
	"github.com/fuelgrid/tanksync/internal/clock"
	"github.com/fuelgrid/tanksync/internal/observability/metrics"
	"github.com/fuelgrid/tanksync/internal/synclog"
	"github.com/fuelgrid/tanksync/internal/telemetry/domain"
	"github.com/fuelgrid/tanksync/internal/telemetry/transform"
	"github.com/fuelgrid/tanksync/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrOutOfBounds is returned when a dip value falls outside the tank.
var ErrOutOfBounds = errors.New("dip value out of tank bounds")

// Manual dip alert thresholds, in fill percent.
const (
	LowPercent      = 20.0
	CriticalPercent = 10.0
)

// Entry is one manually entered dip reading.
type Entry struct {
	TankName string  `json:"tank_name"`
	DipValue float64 `json:"dip_value"`
	DipDate  string  `json:"dip_date"`
}

// Result is the per-entry outcome.
type Result struct {
	TankName   string `json:"tank_name"`
	Success    bool   `json:"success"`
	AlertCount int    `json:"alert_count"`
	Error      string `json:"error,omitempty"`
}

// Summary aggregates one dip batch.
type Summary struct {
	TotalEntries     int
	ProcessedEntries int
	AlertCount       int
	Results          []Result
	Errors           []string
	Duration         time.Duration
}

// Status maps the summary onto a sync log status.
func (s Summary) Status() string {
	switch {
	case len(s.Errors) == 0:
		return synclog.StatusSuccess
	case s.ProcessedEntries > 0:
		return synclog.StatusPartial
	default:
		return synclog.StatusError
	}
}

// Params are the Service dependencies.
type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Transformer *transform.Transformer
	Alerts      *alerting.Service
	SyncLogs    *synclog.Recorder
	Metrics     *metrics.PipelineMetrics `optional:"true"`
}

// Service records manual dips: bounds check, append-only reading, asset
// snapshot update, two-tier alert evaluation.
type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	transformer *transform.Transformer
	alerts      *alerting.Service
	syncLogs    *synclog.Recorder
	metrics     *metrics.PipelineMetrics

	resolver *Resolver
	readings repository.Repository[domain.Reading]
}

// NewService constructs the dip service.
func NewService(p Params) *Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("dip.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		transformer: p.Transformer,
		alerts:      p.Alerts,
		syncLogs:    p.SyncLogs,
		metrics:     p.Metrics,
		resolver:    NewResolver(p.DB),
		readings:    repository.ProvideStore[domain.Reading](p.DB),
	}
}

// RecordDips processes a batch of manual dips. Entries fail independently;
// one sync log row is written per execution.
func (s *Service) RecordDips(ctx context.Context, entries []Entry, source string) Summary {
	startedAt := s.clock.Now()
	summary := Summary{TotalEntries: len(entries)}

	if len(entries) == 0 {
		summary.Errors = append(summary.Errors, domain.ErrEmptyBatch.Error())
	}

	for i, entry := range entries {
		result := Result{TankName: strings.TrimSpace(entry.TankName)}
		alertCount, err := s.recordOne(ctx, entry)
		if err != nil {
			result.Error = err.Error()
			summary.Errors = append(summary.Errors, fmt.Sprintf("dip %d (%s): %v", i, result.TankName, err))
			s.metrics.IncFailed(source)
		} else {
			result.Success = true
			result.AlertCount = alertCount
			summary.ProcessedEntries++
			summary.AlertCount += alertCount
			s.metrics.IncProcessed(source)
		}
		summary.Results = append(summary.Results, result)
	}

	finishedAt := s.clock.Now()
	summary.Duration = finishedAt.Sub(startedAt)

	s.syncLogs.Record(ctx, synclog.Entry{
		SyncType:          synclog.TypeManualDip,
		Source:            source,
		Status:            summary.Status(),
		ReadingsProcessed: summary.ProcessedEntries,
		Errors:            summary.Errors,
		StartedAt:         startedAt,
		FinishedAt:        finishedAt,
	})

	s.log.Info("dip batch recorded",
		zap.String("source", source),
		zap.String("status", summary.Status()),
		zap.Int("total", summary.TotalEntries),
		zap.Int("processed", summary.ProcessedEntries),
		zap.Int("alerts", summary.AlertCount),
	)

	return summary
}

func (s *Service) recordOne(ctx context.Context, entry Entry) (int, error) {
	asset, err := s.resolver.Resolve(ctx, entry.TankName)
	if err != nil {
		return 0, err
	}

	if entry.DipValue < 0 {
		return 0, fmt.Errorf("%w: %.1f litres is negative", ErrOutOfBounds, entry.DipValue)
	}
	if asset.CapacityLitres > 0 && entry.DipValue > asset.CapacityLitres {
		return 0, fmt.Errorf("%w: %.1f litres exceeds capacity %.1f",
			ErrOutOfBounds, entry.DipValue, asset.CapacityLitres)
	}

	percent := 0.0
	if asset.CapacityLitres > 0 {
		percent = entry.DipValue / asset.CapacityLitres * 100
	}

	recordedAt := s.transformer.NormalizeTimestamp(entry.DipDate, "dip_date")

	reading := domain.Reading{
		ID:             s.genID.Generate(),
		AssetID:        asset.ID,
		Source:         domain.ReadingSourceManual,
		LevelLitres:    entry.DipValue,
		LevelPercent:   percent,
		RawFillPercent: percent,
		IsOnline:       asset.IsOnline,
		DeviceState:    asset.DeviceState,
		RecordedAt:     recordedAt,
	}
	if err := s.readings.Create(ctx, &reading); err != nil {
		return 0, fmt.Errorf("insert dip reading: %w", err)
	}

	err = s.db.WithContext(ctx).Model(&domain.Asset{}).
		Where("id = ?", asset.ID).
		Updates(map[string]any{
			"current_level_litres":  entry.DipValue,
			"current_level_percent": percent,
		}).Error
	if err != nil {
		return 0, fmt.Errorf("update asset snapshot: %w", err)
	}

	// Without a capacity the fill percent is unknown, not zero; thresholds
	// cannot be judged.
	if asset.CapacityLitres <= 0 {
		return 0, nil
	}

	return s.evaluateDipAlerts(ctx, asset, percent, entry.DipValue)
}

// evaluateDipAlerts raises at most one manual-dip alert per entry; the
// critical tier masks the low tier. Persistence failures are logged and
// swallowed, matching the vendor pipeline.
func (s *Service) evaluateDipAlerts(ctx context.Context, asset *domain.Asset, percent, litres float64) (int, error) {
	var evt *alerting.Event
	switch {
	case percent <= CriticalPercent:
		evt = &alerting.Event{
			AssetID:        asset.ID,
			LocationID:     asset.LocationID,
			Type:           alerting.TypeManualDipCritical,
			Severity:       alerting.SeverityCritical,
			Message:        fmt.Sprintf("Manual dip critically low: %.1f%% (%.0f L)", percent, litres),
			CurrentValue:   &percent,
			ThresholdValue: ptr(CriticalPercent),
		}
	case percent <= LowPercent:
		evt = &alerting.Event{
			AssetID:        asset.ID,
			LocationID:     asset.LocationID,
			Type:           alerting.TypeManualDipLow,
			Severity:       alerting.SeverityWarning,
			Message:        fmt.Sprintf("Manual dip low: %.1f%% (%.0f L)", percent, litres),
			CurrentValue:   &percent,
			ThresholdValue: ptr(LowPercent),
		}
	default:
		return 0, nil
	}

	inserted, err := s.alerts.Persist(ctx, []alerting.Event{*evt})
	if err != nil {
		s.log.Warn("dip alert persistence failed",
			zap.String("asset_guid", asset.ExternalGUID),
			zap.Error(err),
		)
		return 0, nil
	}
	return inserted, nil
}

func ptr(v float64) *float64 { return &v }
