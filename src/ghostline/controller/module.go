package controller

import (
	aiactions "github.com/ghostline-dev/ghostline/src/ghostline/controller/ai-actions"
	"github.com/ghostline-dev/ghostline/src/ghostline/controller/chat"
	docsync "github.com/ghostline-dev/ghostline/src/ghostline/controller/doc-sync"
	ghostlinedaemon "github.com/ghostline-dev/ghostline/src/ghostline/controller/ghostline-daemon"
	inlinecompletion "github.com/ghostline-dev/ghostline/src/ghostline/controller/inline-completion"
	"github.com/ghostline-dev/ghostline/src/ghostline/controller/settings"
	userguidance "github.com/ghostline-dev/ghostline/src/ghostline/controller/user-guidance"
	workspacecontext "github.com/ghostline-dev/ghostline/src/ghostline/controller/workspace-context"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(ghostlinedaemon.New),
	fx.Provide(docsync.New),
	fx.Provide(settings.New),
	fx.Provide(workspacecontext.New),
	fx.Provide(inlinecompletion.New),
	fx.Provide(chat.New),
	fx.Provide(aiactions.New),
	fx.Provide(userguidance.New),
)
