package pipeline

import (
	"github.com/go-core-fx/logger"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module(
		"pipeline",
		logger.WithNamedLogger("pipeline"),
		fx.Provide(NewRepository, fx.Private),
		fx.Provide(NewTracker),
	)
}
