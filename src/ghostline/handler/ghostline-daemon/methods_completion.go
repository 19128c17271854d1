package ghostlinedaemon

import (
	"context"

	"github.com/ghostline-dev/ghostline/src/ghostline/mapper"
	"go.lsp.dev/jsonrpc2"
)

func (r *jsonRPCRouter) CodeAction(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	params, err := mapper.RequestToCodeActionParams(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	result, err := r.ghostlinedaemon.CodeAction(ctx, params)
	return reply(ctx, result, err)
}

func (r *jsonRPCRouter) InlineCompletion(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	params, err := mapper.RequestToInlineCompletionParams(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	result, err := r.ghostlinedaemon.InlineCompletion(ctx, params)
	return reply(ctx, result, err)
}
