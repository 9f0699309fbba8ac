package dip

import "go.uber.org/fx"

var Module = fx.Module("dip.service",
	fx.Provide(NewService),
)
