package services

import (
	"github.com/go-core-fx/logger"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module(
		"services",
		logger.WithNamedLogger("services"),
		fx.Provide(NewRepository, fx.Private),
		fx.Provide(NewRegistry),
	)
}
