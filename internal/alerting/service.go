package alerting

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/fuelgrid/tanksync/internal/events"
	"github.com/fuelgrid/tanksync/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service persists alert events with active-alert deduplication.
type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	outbox  *events.Outbox
	metrics *metrics.PipelineMetrics
}

// Params are the Service dependencies.
type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Outbox  *events.Outbox
	Metrics *metrics.PipelineMetrics `optional:"true"`
}

// NewService constructs the alert persistence service.
func NewService(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("alerting.service"),
		genID:   p.GenID,
		outbox:  p.Outbox,
		metrics: p.Metrics,
	}
}

// Persist inserts the given events, skipping any whose (asset, type) pair
// already carries an active alert. The read keeps repeated firing cheap;
// the partial unique index closes the race when two deliveries pass the
// read concurrently, in which case the conflicting insert no-ops.
// Returns the number of alerts actually inserted.
func (s *Service) Persist(ctx context.Context, evts []Event) (int, error) {
	inserted := 0
	for _, evt := range evts {
		ok, err := s.persistOne(ctx, evt)
		if err != nil {
			return inserted, err
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

func (s *Service) persistOne(ctx context.Context, evt Event) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Alert{}).
		Where("asset_id = ? AND alert_type = ? AND is_active", evt.AssetID, evt.Type).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	alert := Alert{
		ID:             s.genID.Generate(),
		AssetID:        evt.AssetID,
		LocationID:     evt.LocationID,
		Type:           evt.Type,
		Severity:       evt.Severity,
		Message:        evt.Message,
		CurrentValue:   evt.CurrentValue,
		ThresholdValue: evt.ThresholdValue,
		PreviousValue:  evt.PreviousValue,
		IsActive:       true,
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:     []clause.Column{{Name: "asset_id"}, {Name: "alert_type"}},
		TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "is_active"}}},
		DoNothing:   true,
	}).Create(&alert)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		// Lost the race to a concurrent delivery: already active.
		return false, nil
	}

	s.metrics.IncAlert(evt.Type)

	payload := events.AlertRaisedPayload{
		AlertID:   alert.ID.String(),
		AssetID:   alert.AssetID.String(),
		AlertType: alert.Type,
		Severity:  alert.Severity,
		Message:   alert.Message,
		Value:     alert.CurrentValue,
	}
	if alert.LocationID != 0 {
		payload.LocationID = alert.LocationID.String()
	}
	if err := s.outbox.Publish(ctx, events.Event{
		AlertID:   alert.ID,
		Type:      events.EventAlertRaised,
		Payload:   payload.ToMap(),
		DedupeKey: alert.ID.String(),
	}); err != nil {
		// The alert row is the source of truth; a failed outbox write only
		// delays notification.
		s.log.Warn("alert event publish failed",
			zap.String("alert_id", alert.ID.String()),
			zap.Error(err),
		)
	}
	return true, nil
}
