package observability

import (
	"github.com/storyforge/storyforge/internal/config"
	"github.com/storyforge/storyforge/internal/observability/logger"
	"github.com/storyforge/storyforge/internal/observability/metrics"
	"go.uber.org/fx"
)

// Module wires the zap logger and process metrics.
var Module = fx.Module("observability",
	fx.Provide(
		provideLoggerConfig,
		logger.New,
		metrics.Generation,
	),
)

func provideLoggerConfig(cfg config.Config) logger.Config {
	return logger.Config{
		ServiceName: cfg.AppName,
		Environment: cfg.Environment,
		Version:     cfg.AppVersion,
		Level:       cfg.LogLevel,
	}
}
