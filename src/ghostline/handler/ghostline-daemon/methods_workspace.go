package ghostlinedaemon

import (
	"context"

	"github.com/ghostline-dev/ghostline/src/ghostline/mapper"
	"go.lsp.dev/jsonrpc2"
)

func (r *jsonRPCRouter) ExecuteCommand(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	params, err := mapper.RequestToExecuteCommandParams(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	result, err := r.ghostlinedaemon.ExecuteCommand(ctx, params)
	return reply(ctx, result, err)
}

func (r *jsonRPCRouter) DidChangeConfiguration(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	params, err := mapper.RequestToDidChangeConfigurationParams(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	err = r.ghostlinedaemon.DidChangeConfiguration(ctx, params)
	return reply(ctx, nil, err)
}
