package internal

import (
	"context"

	"github.com/capcom6/go-infra-fx/validator"
	"github.com/go-core-fx/fiberfx"
	"github.com/go-core-fx/healthfx"
	"github.com/go-core-fx/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/harborcd/harborcd/internal/audit"
	"github.com/harborcd/harborcd/internal/config"
	"github.com/harborcd/harborcd/internal/deployments"
	"github.com/harborcd/harborcd/internal/environments"
	"github.com/harborcd/harborcd/internal/metrics"
	"github.com/harborcd/harborcd/internal/pipeline"
	"github.com/harborcd/harborcd/internal/releases"
	"github.com/harborcd/harborcd/internal/server"
	"github.com/harborcd/harborcd/internal/services"
	"github.com/harborcd/harborcd/pkg/badgerfx"
	"github.com/harborcd/harborcd/pkg/openapifx"
)

func Run() {
	fx.New(
		// CORE MODULES
		logger.Module(),
		logger.WithFxDefaultLogger(),
		badgerfx.Module(),
		healthfx.Module(),
		fiberfx.Module(),
		validator.Module,
		//
		// APP MODULES
		config.Module(),
		openapifx.Module(),
		server.Module(),
		//
		// BUSINESS MODULES
		fx.Provide(func() healthfx.Version { return healthfx.Version{Version: "0.1.0", ReleaseID: 1} }),
		services.Module(),
		environments.Module(),
		releases.Module(),
		pipeline.Module(),
		metrics.Module(),
		deployments.Module(),
		audit.Module(),
		//
		// LIFECYCLE MANAGEMENT
		fx.Invoke(func(lc fx.Lifecycle, logger *zap.Logger) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					logger.Info("🚀 HarborCD application starting up")
					return nil
				},
				OnStop: func(_ context.Context) error {
					logger.Info("🛑 HarborCD application shutting down gracefully")
					return nil
				},
			})
		}),
	).Run()
}
