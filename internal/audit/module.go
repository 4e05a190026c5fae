package audit

import (
	"github.com/go-core-fx/logger"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module(
		"audit",
		logger.WithNamedLogger("audit"),
		fx.Provide(NewRepository, fx.Private),
		fx.Provide(NewService),
	)
}
