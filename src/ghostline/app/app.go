package app

import (
	"context"
	"time"

	"github.com/ghostline-dev/ghostline/src/ghostline/gateway"
	"github.com/ghostline-dev/ghostline/src/ghostline/handler"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/clock"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/core"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/executor"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/fs"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/jsonrpcfx"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/logfilewriter"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/serverinfofile"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/telemetry"
	workspaceutils "github.com/ghostline-dev/ghostline/src/ghostline/internal/workspace-utils"
	tally "github.com/uber-go/tally/v4"
	"go.uber.org/fx"
)

// Module defines the ghostline-daemon application module.
var Module = fx.Options(
	gateway.Module, // outbounds
	handler.Module, // inbounds
	jsonrpcfx.Module,
	fs.Module,
	executor.Module,
	serverinfofile.Module,
	workspaceutils.Module,
	telemetry.Module,
	logfilewriter.Module,
	core.ConfigModule,
	core.LoggerModule,
	fx.Provide(clock.New),
	fx.Provide(newRootScope),
	fx.Decorate(decorateEnvContext),
	fx.Decorate(decorateConfigProvider),
	fx.Provide(func() Context {
		return Context{
			Environment:        EnvLocal,
			RuntimeEnvironment: EnvLocal,
		}
	}),
)

func newRootScope(lc fx.Lifecycle) tally.Scope {
	rs, closer := tally.NewRootScope(tally.ScopeOptions{
		Tags: map[string]string{
			"service": "ghostline-daemon",
		},
	}, 1*time.Second)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return closer.Close()
		},
	})

	return rs
}
