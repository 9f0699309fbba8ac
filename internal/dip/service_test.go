package dip

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fuelgrid/tanksync/internal/alerting"
	"github.com/fuelgrid/tanksync/internal/clock"
	"github.com/fuelgrid/tanksync/internal/events"
	"github.com/fuelgrid/tanksync/internal/synclog"
	"github.com/fuelgrid/tanksync/internal/telemetry/domain"
	"github.com/fuelgrid/tanksync/internal/telemetry/transform"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func setupDipService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.Asset{}, &domain.Reading{},
		&alerting.Alert{}, &synclog.SyncLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Exec(`CREATE UNIQUE INDEX uq_alerts_active ON alerts (asset_id, alert_type) WHERE is_active`).Error; err != nil {
		t.Fatalf("create alert index: %v", err)
	}
	if err := db.Exec(`CREATE TABLE alert_events (
		id INTEGER PRIMARY KEY,
		alert_id INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT,
		dedupe_key TEXT UNIQUE,
		published BOOLEAN NOT NULL DEFAULT false,
		created_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create alert_events: %v", err)
	}

	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	log := zap.NewNop()
	clk := clock.Fixed{At: testNow}

	svc := NewService(Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       clk,
		Transformer: transform.New(transform.Params{Log: log, Clock: clk}),
		Alerts: alerting.NewService(alerting.Params{
			DB:     db,
			Log:    log,
			GenID:  node,
			Outbox: events.NewOutbox(db, node),
		}),
		SyncLogs: synclog.NewRecorder(synclog.Params{DB: db, Log: log, GenID: node}),
	})
	return svc, db
}

func seedAsset(t *testing.T, db *gorm.DB, serial string, capacity float64) domain.Asset {
	t.Helper()
	asset := domain.Asset{
		ID:             snowflake.ID(500 + len(serial)),
		LocationID:     1,
		ExternalGUID:   "asset-" + strings.ToLower(serial),
		SerialNumber:   serial,
		CapacityLitres: capacity,
		IsOnline:       true,
	}
	if err := db.Create(&asset).Error; err != nil {
		t.Fatalf("seed asset: %v", err)
	}
	return asset
}

func TestRecordDipAppendsReadingAndUpdatesSnapshot(t *testing.T) {
	svc, db := setupDipService(t)
	asset := seedAsset(t, db, "TNK-001", 10000)

	summary := svc.RecordDips(context.Background(), []Entry{
		{TankName: "tnk-001", DipValue: 6500, DipDate: "2026-03-09"},
	}, "dashboard")

	if summary.ProcessedEntries != 1 || len(summary.Errors) != 0 {
		t.Fatalf("summary = %+v, want 1 processed", summary)
	}

	var reading domain.Reading
	if err := db.Where("asset_id = ?", asset.ID).First(&reading).Error; err != nil {
		t.Fatalf("read reading: %v", err)
	}
	if reading.Source != domain.ReadingSourceManual {
		t.Fatalf("source = %q, want manual", reading.Source)
	}
	if reading.LevelPercent != 65 {
		t.Fatalf("percent = %.1f, want 65", reading.LevelPercent)
	}
	if reading.RecordedAt.UTC() != time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("recorded at = %v", reading.RecordedAt)
	}

	var reloaded domain.Asset
	if err := db.First(&reloaded, asset.ID).Error; err != nil {
		t.Fatalf("reload asset: %v", err)
	}
	if reloaded.CurrentLevelLitres != 6500 || reloaded.CurrentLevelPercent != 65 {
		t.Fatalf("snapshot = %.0f L / %.0f%%, want 6500/65",
			reloaded.CurrentLevelLitres, reloaded.CurrentLevelPercent)
	}
}

func TestRecordDipRejectsOutOfBoundsValues(t *testing.T) {
	svc, db := setupDipService(t)
	seedAsset(t, db, "TNK-001", 10000)

	summary := svc.RecordDips(context.Background(), []Entry{
		{TankName: "TNK-001", DipValue: -5},
		{TankName: "TNK-001", DipValue: 10001},
		{TankName: "TNK-001", DipValue: 10000},
	}, "dashboard")

	if summary.ProcessedEntries != 1 {
		t.Fatalf("processed = %d, want 1 (only the in-bounds entry)", summary.ProcessedEntries)
	}
	if len(summary.Errors) != 2 {
		t.Fatalf("errors = %v, want 2", summary.Errors)
	}
	if summary.Status() != synclog.StatusPartial {
		t.Fatalf("status = %q, want partial", summary.Status())
	}

	var readings int64
	db.Model(&domain.Reading{}).Count(&readings)
	if readings != 1 {
		t.Fatalf("readings = %d, want 1", readings)
	}
}

func TestRecordDipUnknownTank(t *testing.T) {
	svc, db := setupDipService(t)

	summary := svc.RecordDips(context.Background(), []Entry{
		{TankName: "nope", DipValue: 100},
	}, "dashboard")

	if summary.ProcessedEntries != 0 {
		t.Fatalf("processed = %d, want 0", summary.ProcessedEntries)
	}
	if summary.Status() != synclog.StatusError {
		t.Fatalf("status = %q, want error", summary.Status())
	}
	if summary.Results[0].Success || summary.Results[0].Error == "" {
		t.Fatalf("result = %+v, want failure with message", summary.Results[0])
	}

	var row synclog.SyncLog
	if err := db.First(&row).Error; err != nil {
		t.Fatalf("read sync log: %v", err)
	}
	if row.SyncType != synclog.TypeManualDip || row.Status != synclog.StatusError {
		t.Fatalf("sync log = %q/%q", row.SyncType, row.Status)
	}
}

func TestRecordDipUnknownCapacitySkipsAlerts(t *testing.T) {
	svc, db := setupDipService(t)
	asset := seedAsset(t, db, "TNK-001", 0)

	summary := svc.RecordDips(context.Background(), []Entry{
		{TankName: "TNK-001", DipValue: 9500},
	}, "dashboard")

	if summary.ProcessedEntries != 1 || len(summary.Errors) != 0 {
		t.Fatalf("summary = %+v, want 1 processed", summary)
	}
	if summary.AlertCount != 0 {
		t.Fatalf("alert count = %d, want 0 (capacity unknown)", summary.AlertCount)
	}

	var alerts int64
	db.Model(&alerting.Alert{}).Count(&alerts)
	if alerts != 0 {
		t.Fatalf("alerts = %d, want none without a capacity to judge against", alerts)
	}

	var reloaded domain.Asset
	if err := db.First(&reloaded, asset.ID).Error; err != nil {
		t.Fatalf("reload asset: %v", err)
	}
	if reloaded.CurrentLevelLitres != 9500 || reloaded.CurrentLevelPercent != 0 {
		t.Fatalf("snapshot = %.0f L / %.0f%%, want 9500/0",
			reloaded.CurrentLevelLitres, reloaded.CurrentLevelPercent)
	}
}

func TestRecordDipAlertTiers(t *testing.T) {
	svc, db := setupDipService(t)
	seedAsset(t, db, "TNK-001", 10000)
	seedAsset(t, db, "TNK-0200", 10000)

	summary := svc.RecordDips(context.Background(), []Entry{
		{TankName: "TNK-001", DipValue: 800},   // 8%: critical
		{TankName: "TNK-0200", DipValue: 1800}, // 18%: low
	}, "dashboard")

	if summary.AlertCount != 2 {
		t.Fatalf("alert count = %d, want 2", summary.AlertCount)
	}

	var critical, low int64
	db.Model(&alerting.Alert{}).Where("alert_type = ?", alerting.TypeManualDipCritical).Count(&critical)
	db.Model(&alerting.Alert{}).Where("alert_type = ?", alerting.TypeManualDipLow).Count(&low)
	if critical != 1 || low != 1 {
		t.Fatalf("critical = %d, low = %d, want 1 each", critical, low)
	}

	// Repeat dip while the alert is still active: deduplicated.
	again := svc.RecordDips(context.Background(), []Entry{
		{TankName: "TNK-001", DipValue: 750},
	}, "dashboard")
	if again.AlertCount != 0 {
		t.Fatalf("alert count on repeat = %d, want 0", again.AlertCount)
	}
}
