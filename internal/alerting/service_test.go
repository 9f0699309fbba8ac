package alerting

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/fuelgrid/tanksync/internal/events"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupAlertDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Alert{}); err != nil {
		t.Fatalf("migrate alerts: %v", err)
	}
	if err := db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_alerts_active ON alerts (asset_id, alert_type) WHERE is_active`,
	).Error; err != nil {
		t.Fatalf("create partial index: %v", err)
	}
	if err := db.Exec(
		`CREATE TABLE IF NOT EXISTS alert_events (
			id BIGINT PRIMARY KEY,
			alert_id BIGINT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT,
			dedupe_key TEXT UNIQUE,
			published BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP
		)`,
	).Error; err != nil {
		t.Fatalf("create alert_events: %v", err)
	}
	return db
}

func newAlertService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new snowflake node: %v", err)
	}
	return &Service{
		db:     db,
		log:    zap.NewNop(),
		genID:  node,
		outbox: events.NewOutbox(db, node),
	}
}

func TestPersistInsertsAlert(t *testing.T) {
	db := setupAlertDB(t)
	svc := newAlertService(t, db)

	inserted, err := svc.Persist(context.Background(), []Event{{
		AssetID:  7,
		Type:     TypeLowBattery,
		Severity: SeverityWarning,
		Message:  "battery low",
	}})
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if inserted != 1 {
		t.Fatalf("expected 1 insert, got %d", inserted)
	}

	var count int64
	if err := db.Model(&Alert{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 alert row, got %d", count)
	}

	var eventCount int64
	if err := db.Table("alert_events").Count(&eventCount).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if eventCount != 1 {
		t.Fatalf("expected 1 outbox row, got %d", eventCount)
	}
}

func TestPersistDeduplicatesActiveAlert(t *testing.T) {
	db := setupAlertDB(t)
	svc := newAlertService(t, db)

	evt := Event{AssetID: 7, Type: TypeLowBattery, Severity: SeverityWarning}
	if _, err := svc.Persist(context.Background(), []Event{evt}); err != nil {
		t.Fatalf("first persist: %v", err)
	}
	inserted, err := svc.Persist(context.Background(), []Event{evt})
	if err != nil {
		t.Fatalf("second persist: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("expected duplicate to no-op, got %d inserts", inserted)
	}

	var count int64
	if err := db.Model(&Alert{}).Where("is_active").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one active alert, got %d", count)
	}
}

func TestPersistAllowsNewAlertAfterResolve(t *testing.T) {
	db := setupAlertDB(t)
	svc := newAlertService(t, db)

	evt := Event{AssetID: 7, Type: TypeLowFuel, Severity: SeverityCritical}
	if _, err := svc.Persist(context.Background(), []Event{evt}); err != nil {
		t.Fatalf("first persist: %v", err)
	}
	if err := db.Model(&Alert{}).Where("asset_id = ?", 7).Update("is_active", false).Error; err != nil {
		t.Fatalf("resolve: %v", err)
	}

	inserted, err := svc.Persist(context.Background(), []Event{evt})
	if err != nil {
		t.Fatalf("second persist: %v", err)
	}
	if inserted != 1 {
		t.Fatalf("expected insert after resolve, got %d", inserted)
	}
}

func TestPersistDistinctTypesCoexist(t *testing.T) {
	db := setupAlertDB(t)
	svc := newAlertService(t, db)

	inserted, err := svc.Persist(context.Background(), []Event{
		{AssetID: 7, Type: TypeLowBattery, Severity: SeverityWarning},
		{AssetID: 7, Type: TypeLowFuel, Severity: SeverityWarning},
	})
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("expected 2 inserts, got %d", inserted)
	}
}
