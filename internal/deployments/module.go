package deployments

import (
	"github.com/go-core-fx/logger"
	"go.uber.org/fx"

	"github.com/harborcd/harborcd/internal/metrics"
	"github.com/harborcd/harborcd/internal/pipeline"
)

func Module() fx.Option {
	return fx.Module(
		"deployments",
		logger.WithNamedLogger("deployments"),
		fx.Provide(NewRepository, fx.Private),
		fx.Provide(NewApprovalRepository, fx.Private),
		fx.Provide(NewRollbackRepository, fx.Private),
		fx.Provide(
			fx.Annotate(NewApprovalGate, fx.As(new(pipeline.GateChecker))),
		),
		fx.Provide(
			fx.Annotate(NewDeploymentChecker, fx.As(new(metrics.DeploymentChecker))),
		),
		fx.Provide(NewService),
	)
}
