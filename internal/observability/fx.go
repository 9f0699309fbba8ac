// Package observability wires logging, tracing and metrics into one module.
package observability

import (
	"github.com/fuelgrid/tanksync/internal/observability/logger"
	"github.com/fuelgrid/tanksync/internal/observability/metrics"
	"github.com/fuelgrid/tanksync/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Options(
	logger.Module,
	fx.Invoke(func(lc fx.Lifecycle, cfg tracing.Config, log *zap.Logger) error {
		_, err := tracing.NewProvider(lc, cfg, log)
		return err
	}),
	fx.Provide(func() sdkmetric.MeterProvider {
		return otel.GetMeterProvider()
	}),
	fx.Provide(metrics.NewHTTPMetrics),
	fx.Provide(metrics.Pipeline),
)
