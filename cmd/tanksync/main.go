package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/fuelgrid/tanksync/internal/alerting"
	"github.com/fuelgrid/tanksync/internal/clock"
	"github.com/fuelgrid/tanksync/internal/config"
	"github.com/fuelgrid/tanksync/internal/consumption"
	"github.com/fuelgrid/tanksync/internal/dip"
	"github.com/fuelgrid/tanksync/internal/migration"
	"github.com/fuelgrid/tanksync/internal/observability"
	"github.com/fuelgrid/tanksync/internal/server"
	"github.com/fuelgrid/tanksync/internal/synclog"
	"github.com/fuelgrid/tanksync/internal/telemetry"
	"github.com/fuelgrid/tanksync/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		fx.Invoke(func(conn *gorm.DB) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return migration.Run(sqlDB)
		}),

		synclog.Module,
		alerting.Module,
		consumption.Module,
		telemetry.Module,
		dip.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
