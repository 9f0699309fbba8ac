package alerting

import (
	"github.com/bwmarrin/snowflake"
	"github.com/fuelgrid/tanksync/internal/events"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("alerting.service",
	fx.Provide(func(db *gorm.DB, genID *snowflake.Node) *events.Outbox {
		return events.NewOutbox(db, genID)
	}),
	fx.Provide(NewService),
)
