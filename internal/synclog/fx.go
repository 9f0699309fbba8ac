package synclog

import "go.uber.org/fx"

var Module = fx.Module("synclog.recorder",
	fx.Provide(NewRecorder),
)
