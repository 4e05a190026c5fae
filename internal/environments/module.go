package environments

import (
	"github.com/go-core-fx/logger"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module(
		"environments",
		logger.WithNamedLogger("environments"),
		fx.Provide(NewRepository, fx.Private),
		fx.Provide(NewService),
	)
}
