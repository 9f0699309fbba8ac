package consumption

import "go.uber.org/fx"

var Module = fx.Module("consumption.estimator",
	fx.Provide(New),
)
