package mapper

import (
	"errors"
	"fmt"

	"go.lsp.dev/protocol"
)

// ExperimentalInlineCompletionProvider is the key under ServerCapabilities.Experimental that advertises inline completion support.
const ExperimentalInlineCompletionProvider = "inlineCompletionProvider"

// InitializeResultAppendCodeActionProvider appends a CodeActionProvider into an existing InitializeResult, adding to existing values if present or initializing an entry if not yet present.
func InitializeResultAppendCodeActionProvider(initResult *protocol.InitializeResult, newOptions *protocol.CodeActionOptions) error {
	if initResult.Capabilities.CodeActionProvider == nil {
		initResult.Capabilities.CodeActionProvider = newOptions
		return nil
	}

	currentCodeActionOptions, ok := initResult.Capabilities.CodeActionProvider.(*protocol.CodeActionOptions)
	if !ok {
		return errors.New("CodeActionProvider does not match expected type of *protocol.CodeActionOptions")
	}

	if newOptions.CodeActionKinds != nil {
		if currentCodeActionOptions.CodeActionKinds == nil {
			currentCodeActionOptions.CodeActionKinds = newOptions.CodeActionKinds
		} else {
			seen := map[protocol.CodeActionKind]struct{}{}
			combined := []protocol.CodeActionKind{}
			for _, action := range currentCodeActionOptions.CodeActionKinds {
				seen[action] = struct{}{}
				combined = append(combined, action)
			}
			for _, action := range newOptions.CodeActionKinds {
				if _, ok := seen[action]; !ok {
					combined = append(combined, action)
				}
			}
			currentCodeActionOptions.CodeActionKinds = combined
		}
	}

	if newOptions.ResolveProvider {
		currentCodeActionOptions.ResolveProvider = true
	}

	initResult.Capabilities.CodeActionProvider = currentCodeActionOptions
	return nil
}

// InitializeResultAppendExecuteCommandProvider appends ExecuteCommandOptions into an existing InitializeResult.
// Commands must be unique across all plugins, and this function will fail if a duplicate is found.
func InitializeResultAppendExecuteCommandProvider(initResult *protocol.InitializeResult, newOptions *protocol.ExecuteCommandOptions) error {
	if initResult.Capabilities.ExecuteCommandProvider == nil {
		initResult.Capabilities.ExecuteCommandProvider = newOptions
		return nil
	}

	if newOptions.Commands == nil {
		return nil
	}

	if initResult.Capabilities.ExecuteCommandProvider.Commands == nil {
		initResult.Capabilities.ExecuteCommandProvider.Commands = newOptions.Commands
		return nil
	}

	seen := map[string]struct{}{}
	combined := []string{}
	for _, cmd := range initResult.Capabilities.ExecuteCommandProvider.Commands {
		seen[cmd] = struct{}{}
		combined = append(combined, cmd)
	}
	for _, cmd := range newOptions.Commands {
		if _, ok := seen[cmd]; ok {
			return fmt.Errorf("command %q in ExecuteCommandOptions already exists and cannot be duplicated", cmd)
		}
		combined = append(combined, cmd)
	}
	initResult.Capabilities.ExecuteCommandProvider.Commands = combined
	return nil
}

// InitializeResultEnsureInlineCompletionProvider advertises inline completion support.
// The protocol package predates inlineCompletionProvider, so it is carried in the experimental capabilities.
func InitializeResultEnsureInlineCompletionProvider(initResult *protocol.InitializeResult) error {
	if initResult == nil {
		return nil
	}

	switch experimental := initResult.Capabilities.Experimental.(type) {
	case nil:
		initResult.Capabilities.Experimental = map[string]interface{}{ExperimentalInlineCompletionProvider: true}
	case map[string]interface{}:
		experimental[ExperimentalInlineCompletionProvider] = true
	default:
		return fmt.Errorf("experimental capabilities of type %T cannot hold %q", experimental, ExperimentalInlineCompletionProvider)
	}
	return nil
}
