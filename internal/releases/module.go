package releases

import (
	"github.com/go-core-fx/logger"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module(
		"releases",
		logger.WithNamedLogger("releases"),
		fx.Provide(NewRepository, fx.Private),
		fx.Provide(NewService),
	)
}
