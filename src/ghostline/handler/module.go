package handler

import (
	controller "github.com/ghostline-dev/ghostline/src/ghostline/controller"
	ghostlinedaemon "github.com/ghostline-dev/ghostline/src/ghostline/controller/ghostline-daemon"
	handler "github.com/ghostline-dev/ghostline/src/ghostline/handler/ghostline-daemon"
	chatrepository "github.com/ghostline-dev/ghostline/src/ghostline/repository/chat"
	"github.com/ghostline-dev/ghostline/src/ghostline/repository/secret"
	"github.com/ghostline-dev/ghostline/src/ghostline/repository/session"
	"go.uber.org/fx"
)

// Module provides the ghostline-daemon server into an Fx application.
var Module = fx.Options(
	controller.Module,
	fx.Provide(session.New),
	fx.Provide(chatrepository.New),
	fx.Provide(secret.New),
	fx.Provide(handler.New),
	fx.Invoke(outputServiceInfo),
	fx.Invoke(func(m handler.Handler) {}),
	fx.Invoke(func(m ghostlinedaemon.Controller) {}),
)
