package telemetry

import (
	"github.com/fuelgrid/tanksync/internal/telemetry/service"
	"github.com/fuelgrid/tanksync/internal/telemetry/transform"
	"go.uber.org/fx"
)

var Module = fx.Module("telemetry.service",
	fx.Provide(transform.New),
	fx.Provide(service.NewService),
)
