package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/steadfastapp/steadfast/internal/config"
	"github.com/steadfastapp/steadfast/internal/observability/logger"
	"github.com/steadfastapp/steadfast/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	fx.Provide(
		func(cfg config.Config) (*zap.Logger, error) {
			return logger.New(cfg.LogLevel)
		},
		func() prometheus.Registerer { return prometheus.DefaultRegisterer },
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	fx.Invoke(registerHooks),
)

func registerHooks(lc fx.Lifecycle, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = ctx
			_ = log.Sync()
			return nil
		},
	})
}
