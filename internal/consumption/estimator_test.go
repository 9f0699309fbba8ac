package consumption

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fuelgrid/tanksync/internal/clock"
	"github.com/fuelgrid/tanksync/internal/telemetry/domain"
	"github.com/fuelgrid/tanksync/pkg/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var estimatorNow = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func setupEstimator(t *testing.T) (*Estimator, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Reading{}); err != nil {
		t.Fatalf("migrate readings: %v", err)
	}
	est := &Estimator{
		log:         zap.NewNop(),
		clock:       clock.Fixed{At: estimatorNow},
		readings:    repository.ProvideStore[domain.Reading](db),
		lookback:    30 * 24 * time.Hour,
		maxReadings: 200,
	}
	return est, db
}

func seedReading(t *testing.T, db *gorm.DB, id int64, litres float64, at time.Time) {
	t.Helper()
	r := domain.Reading{
		ID:          snowflake.ID(1000 + id),
		AssetID:     7,
		Source:      domain.ReadingSourceVendor,
		LevelLitres: litres,
		RecordedAt:  at,
	}
	if err := db.Create(&r).Error; err != nil {
		t.Fatalf("seed reading: %v", err)
	}
}

func TestEstimateInsufficientData(t *testing.T) {
	est, db := setupEstimator(t)
	seedReading(t, db, 1, 9000, estimatorNow.Add(-48*time.Hour))
	seedReading(t, db, 2, 8500, estimatorNow.Add(-24*time.Hour))

	got, err := est.Estimate(context.Background(), 7, 85, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Sufficient() {
		t.Fatalf("expected insufficient estimate, got %+v", got)
	}
	if got.Confidence != ConfidenceInsufficient {
		t.Fatalf("expected insufficient confidence, got %q", got.Confidence)
	}
	if got.DataPoints != 2 {
		t.Fatalf("expected 2 data points, got %d", got.DataPoints)
	}
}

func TestEstimateSteadyConsumption(t *testing.T) {
	est, db := setupEstimator(t)
	// 500 litres/day over 4 days.
	for i := int64(0); i < 5; i++ {
		seedReading(t, db, i, 10000-float64(i)*500, estimatorNow.Add(time.Duration(i-4)*24*time.Hour))
	}

	got, err := est.Estimate(context.Background(), 7, 80, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.DailyConsumptionLitres < 499 || got.DailyConsumptionLitres > 501 {
		t.Fatalf("expected ~500 L/day, got %v", got.DailyConsumptionLitres)
	}
	if got.DaysRemaining == nil {
		t.Fatalf("expected days remaining")
	}
	// 80% of 10000 L at 500 L/day = 16 days.
	if *got.DaysRemaining < 15.9 || *got.DaysRemaining > 16.1 {
		t.Fatalf("expected ~16 days remaining, got %v", *got.DaysRemaining)
	}
	if got.Confidence != ConfidenceMedium {
		t.Fatalf("expected medium confidence, got %q", got.Confidence)
	}
}

func TestEstimateExcludesRefills(t *testing.T) {
	est, db := setupEstimator(t)
	// Two days of 500 L/day consumption, a refill back to 10000, then one
	// more day of consumption. The refill jump must not dilute the rate.
	seedReading(t, db, 0, 6000, estimatorNow.Add(-4*24*time.Hour))
	seedReading(t, db, 1, 5500, estimatorNow.Add(-3*24*time.Hour))
	seedReading(t, db, 2, 5000, estimatorNow.Add(-2*24*time.Hour))
	seedReading(t, db, 3, 10000, estimatorNow.Add(-36*time.Hour)) // refill
	seedReading(t, db, 4, 9500, estimatorNow.Add(-12*time.Hour))

	got, err := est.Estimate(context.Background(), 7, 95, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 1500 litres consumed over 3 days of consuming segments.
	if got.DailyConsumptionLitres < 499 || got.DailyConsumptionLitres > 501 {
		t.Fatalf("expected refill excluded (~500 L/day), got %v", got.DailyConsumptionLitres)
	}
}

func TestEstimateNoConsumption(t *testing.T) {
	est, db := setupEstimator(t)
	for i := int64(0); i < 4; i++ {
		seedReading(t, db, i, 8000, estimatorNow.Add(time.Duration(i-3)*24*time.Hour))
	}

	got, err := est.Estimate(context.Background(), 7, 80, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.DailyConsumptionLitres != 0 {
		t.Fatalf("expected zero rate, got %v", got.DailyConsumptionLitres)
	}
	if got.DaysRemaining != nil {
		t.Fatalf("expected nil days remaining at zero rate, got %v", *got.DaysRemaining)
	}
	if !got.Sufficient() {
		t.Fatalf("expected sufficient estimate with 4 points")
	}
}

func TestEstimateHighConfidence(t *testing.T) {
	est, db := setupEstimator(t)
	for i := int64(0); i < 8; i++ {
		seedReading(t, db, i, 10000-float64(i)*300, estimatorNow.Add(time.Duration(i-7)*24*time.Hour))
	}

	got, err := est.Estimate(context.Background(), 7, 79, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Confidence != ConfidenceHigh {
		t.Fatalf("expected high confidence with 8 points over 7 days, got %q", got.Confidence)
	}
}
