package model

import (
	"github.com/gofrs/uuid"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

// Session is the repository layer model for an individual IDE session.
type Session struct {
	UUID             uuid.UUID
	InitializeParams *protocol.InitializeParams
	Conn             *jsonrpc2.Conn
	WorkspaceRoot    string
	RepoName         string
}

// ChatTurn is the repository layer model for a single chat message.
type ChatTurn struct {
	Role    string
	Content string
}

// SecretsFile is the on-disk layout of the secrets file.
type SecretsFile struct {
	Keys map[string]string `yaml:"keys"`
}
