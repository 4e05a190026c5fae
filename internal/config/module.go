package config

import (
	"github.com/go-core-fx/fiberfx"
	"go.uber.org/fx"

	"github.com/harborcd/harborcd/internal/deployments"
	"github.com/harborcd/harborcd/internal/pipeline"
	"github.com/harborcd/harborcd/pkg/badgerfx"
	"github.com/harborcd/harborcd/pkg/openapifx"
)

func Module() fx.Option {
	return fx.Module(
		"config",
		fx.Provide(New),
		fx.Provide(func(cfg Config) fiberfx.Config {
			return fiberfx.Config{
				Address:     cfg.HTTP.Address,
				ProxyHeader: cfg.HTTP.ProxyHeader,
				Proxies:     cfg.HTTP.Proxies,
			}
		}),
		fx.Provide(func(cfg Config) badgerfx.Config {
			return badgerfx.Config{
				Dir: cfg.Storage.DataDir,
			}
		}),
		fx.Provide(func(cfg Config) openapifx.Config {
			return openapifx.Config{
				Enabled:    cfg.HTTP.OpenAPI.Enabled,
				PublicHost: cfg.HTTP.OpenAPI.PublicHost,
				PublicPath: cfg.HTTP.OpenAPI.PublicPath,
			}
		}),
		fx.Provide(func(cfg Config) pipeline.Config {
			return pipeline.Config{
				Stages:       cfg.Pipeline.Stages,
				StageTimeout: cfg.Pipeline.StageTimeout,
			}
		}),
		fx.Provide(func(cfg Config) deployments.Config {
			return deployments.Config{
				GatedStage: cfg.Pipeline.GatedStage,
			}
		}),
	)
}
