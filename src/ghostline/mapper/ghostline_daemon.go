package mapper

import (
	"context"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/errors"
	"github.com/ghostline-dev/ghostline/src/ghostline/model"
	"github.com/gofrs/uuid"
	"go.lsp.dev/jsonrpc2"
)

// SessionToModel maps a Session entity to its model equivalent.
func SessionToModel(f *entity.Session) *model.Session {
	return &model.Session{
		UUID:             f.UUID,
		InitializeParams: f.InitializeParams,
		Conn:             f.Conn,
		WorkspaceRoot:    f.WorkspaceRoot,
		RepoName:         f.RepoName,
	}
}

// ModelToSession maps a model Session to its entity equivalent.
func ModelToSession(f *model.Session) (*entity.Session, error) {
	return &entity.Session{
		UUID:             f.UUID,
		InitializeParams: f.InitializeParams,
		Conn:             f.Conn,
		WorkspaceRoot:    f.WorkspaceRoot,
		RepoName:         f.RepoName,
	}, nil
}

// UUIDToSession initializes a new Session entity with the assigned uuid and connection.
func UUIDToSession(u uuid.UUID, c *jsonrpc2.Conn) *entity.Session {
	return &entity.Session{
		UUID: u,
		Conn: c,
	}
}

// ContextToSessionUUID extracts the UUID from a context
func ContextToSessionUUID(c context.Context) (uuid.UUID, error) {
	s, ok := c.Value(entity.SessionContextKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, &errors.NoSessionFoundError{}
	}
	return s, nil
}

// ChatMessagesToModel maps chat messages to their stored form.
func ChatMessagesToModel(msgs []entity.ChatMessage) []model.ChatTurn {
	result := make([]model.ChatTurn, 0, len(msgs))
	for _, m := range msgs {
		result = append(result, model.ChatTurn{Role: string(m.Role), Content: m.Content})
	}
	return result
}

// ModelToChatMessages maps stored chat turns back to entities.
func ModelToChatMessages(turns []model.ChatTurn) []entity.ChatMessage {
	result := make([]entity.ChatMessage, 0, len(turns))
	for _, t := range turns {
		result = append(result, entity.ChatMessage{Role: entity.Role(t.Role), Content: t.Content})
	}
	return result
}
