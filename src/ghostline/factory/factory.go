package factory

import (
	"context"
	"fmt"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	ghostlineplugin "github.com/ghostline-dev/ghostline/src/ghostline/entity/ghostline-plugin"
	"github.com/gofrs/uuid"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

// UUID is a user-defined factory for a random uuid.UUID.
func UUID() uuid.UUID {
	return uuid.Must(uuid.NewV4())
}

// JSONRPCRequest is a user-defined factory for a JSON-RPC request containing the specified method and parameters.
func JSONRPCRequest(method string, params interface{}) jsonrpc2.Request {
	req, _ := jsonrpc2.NewCall(jsonrpc2.NewNumberID(5), method, params)
	return req
}

// PluginInfoValid is a factory for PluginInfo that passes validation.
func PluginInfoValid(id int) ghostlineplugin.PluginInfo {
	sampleDidOpenFunc := func(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
		return nil
	}
	return ghostlineplugin.PluginInfo{
		Priorities: map[string]ghostlineplugin.Priority{
			protocol.MethodTextDocumentDidOpen: ghostlineplugin.PriorityHigh,
		},
		Methods: &ghostlineplugin.Methods{
			PluginNameKey: fmt.Sprintf("test-plugin-%v", id),

			DidOpen: sampleDidOpenFunc,
		},
		NameKey: fmt.Sprintf("test-plugin-%v", id),
	}
}

// PluginInfoInvalid is a factory for PluginInfo that fails validation.
func PluginInfoInvalid(id int) ghostlineplugin.PluginInfo {
	return ghostlineplugin.PluginInfo{
		Priorities: map[string]ghostlineplugin.Priority{
			protocol.MethodTextDocumentDidOpen: ghostlineplugin.PriorityHigh,
		},
		Methods: &ghostlineplugin.Methods{},
		NameKey: fmt.Sprintf("test-plugin-%v", id),
	}
}

// Session returns a session with a random UUID and the given workspace root.
func Session(root string) *entity.Session {
	return &entity.Session{
		UUID:          UUID(),
		WorkspaceRoot: root,
		InitializeParams: &protocol.InitializeParams{
			ClientInfo: &protocol.ClientInfo{Name: string(entity.ClientNameVSCode)},
		},
	}
}

// TextDocumentItem returns an open document for the given path and contents.
func TextDocumentItem(path string, languageID string, text string) protocol.TextDocumentItem {
	return protocol.TextDocumentItem{
		URI:        protocol.DocumentURI("file://" + path),
		LanguageID: protocol.LanguageIdentifier(languageID),
		Version:    1,
		Text:       text,
	}
}
