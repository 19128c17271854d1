package gateway

import (
	ideclient "github.com/ghostline-dev/ghostline/src/ghostline/gateway/ide-client"
	"github.com/ghostline-dev/ghostline/src/ghostline/gateway/llm"
	"go.uber.org/fx"
)

// Module provides the outbound gateways: the IDE client and the LLM providers.
var Module = fx.Options(
	fx.Provide(ideclient.New),
	fx.Provide(llm.New),
)
