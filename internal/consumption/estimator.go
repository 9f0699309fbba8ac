// Package consumption derives daily consumption rates and days-remaining
// projections from an asset's reading history.
package consumption

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fuelgrid/tanksync/internal/clock"
	"github.com/fuelgrid/tanksync/internal/config"
	"github.com/fuelgrid/tanksync/internal/telemetry/domain"
	"github.com/fuelgrid/tanksync/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MinDataPoints is the minimum reading count required to estimate at all.
const MinDataPoints = 3

// Confidence grades for an estimate.
const (
	ConfidenceInsufficient = "insufficient"
	ConfidenceLow          = "low"
	ConfidenceMedium       = "medium"
	ConfidenceHigh         = "high"
)

// Estimate is the result of one consumption calculation. When Confidence is
// ConfidenceInsufficient the caller must not persist it as an override of
// vendor-supplied consumption fields.
type Estimate struct {
	DailyConsumptionLitres float64
	DaysRemaining          *float64
	Confidence             string
	DataPoints             int
}

// Sufficient reports whether the estimate carries enough signal to persist.
func (e Estimate) Sufficient() bool { return e.Confidence != ConfidenceInsufficient }

// Estimator computes consumption analytics from stored readings.
type Estimator struct {
	log      *zap.Logger
	clock    clock.Clock
	readings repository.Repository[domain.Reading]

	lookback    time.Duration
	maxReadings int
}

// Params are the Estimator dependencies.
type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Cfg   config.Config
}

// New constructs an Estimator.
func New(p Params) *Estimator {
	lookbackDays := p.Cfg.Consumption.LookbackDays
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	maxReadings := p.Cfg.Consumption.MaxReadings
	if maxReadings <= 0 {
		maxReadings = 200
	}
	return &Estimator{
		log:         p.Log.Named("consumption.estimator"),
		clock:       p.Clock,
		readings:    repository.ProvideStore[domain.Reading](p.DB),
		lookback:    time.Duration(lookbackDays) * 24 * time.Hour,
		maxReadings: maxReadings,
	}
}

// Estimate computes a daily consumption rate and days-remaining projection
// for one asset from its recent reading history.
func (e *Estimator) Estimate(ctx context.Context, assetID snowflake.ID, currentLevelPercent, capacityLitres float64) (Estimate, error) {
	since := e.clock.Now().Add(-e.lookback)

	rows, err := e.readings.Find(ctx,
		&domain.Reading{AssetID: assetID},
		repository.WithWhere("recorded_at >= ?", since),
		repository.WithOrder("recorded_at ASC"),
		repository.WithLimit(e.maxReadings),
	)
	if err != nil {
		return Estimate{}, err
	}

	return e.estimateFromSeries(rows, currentLevelPercent, capacityLitres), nil
}

// estimateFromSeries derives the rate from a time-ordered reading window.
// Pairs showing a level increase indicate refills and are excluded, or the
// refill volume would cancel real consumption out of the rate.
func (e *Estimator) estimateFromSeries(rows []*domain.Reading, currentLevelPercent, capacityLitres float64) Estimate {
	if len(rows) < MinDataPoints {
		return Estimate{Confidence: ConfidenceInsufficient, DataPoints: len(rows)}
	}

	var consumedLitres float64
	var consumedSpan time.Duration
	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1], rows[i]
		delta := prev.LevelLitres - cur.LevelLitres
		if delta <= 0 {
			// Level increase: refill event, not consumption.
			continue
		}
		consumedLitres += delta
		consumedSpan += cur.RecordedAt.Sub(prev.RecordedAt)
	}

	if consumedLitres <= 0 || consumedSpan <= 0 {
		return Estimate{
			DailyConsumptionLitres: 0,
			Confidence:             e.grade(rows),
			DataPoints:             len(rows),
		}
	}

	days := consumedSpan.Hours() / 24
	rate := consumedLitres / days

	est := Estimate{
		DailyConsumptionLitres: rate,
		Confidence:             e.grade(rows),
		DataPoints:             len(rows),
	}
	if rate > 0 && capacityLitres > 0 {
		currentLitres := currentLevelPercent / 100 * capacityLitres
		remaining := currentLitres / rate
		est.DaysRemaining = &remaining
	}
	return est
}

// grade maps sample count and time-span coverage onto a confidence grade.
func (e *Estimator) grade(rows []*domain.Reading) string {
	span := rows[len(rows)-1].RecordedAt.Sub(rows[0].RecordedAt)
	switch {
	case len(rows) >= 7 && span >= 5*24*time.Hour:
		return ConfidenceHigh
	case len(rows) >= 5 && span >= 3*24*time.Hour:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
