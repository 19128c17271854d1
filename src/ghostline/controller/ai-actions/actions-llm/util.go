package actionsllm

import (
	"path/filepath"

	"go.lsp.dev/protocol"
)

func hasSelection(r protocol.Range) bool {
	return r.Start != r.End
}

func fileName(uri protocol.DocumentURI) string {
	return filepath.Base(uri.Filename())
}
