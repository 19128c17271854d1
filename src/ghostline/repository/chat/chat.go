package chat

import (
	"context"
	"sync"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	"github.com/ghostline-dev/ghostline/src/ghostline/mapper"
	"github.com/ghostline-dev/ghostline/src/ghostline/model"
	"github.com/gofrs/uuid"
	tally "github.com/uber-go/tally/v4"
)

//go:generate mockgen -destination repositorymock/chat_mock.go -package repositorymock . Repository

// Repository stores the chat history of each session in memory.
type Repository interface {
	// History returns a copy of the session's turns in order. A session with no turns returns an empty slice.
	History(ctx context.Context, id uuid.UUID) ([]entity.ChatMessage, error)
	Append(ctx context.Context, id uuid.UUID, msgs ...entity.ChatMessage) error
	Clear(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	mu       sync.Mutex
	memstore map[uuid.UUID][]model.ChatTurn
	stats    tally.Scope
}

// New returns an in-memory chat history repository.
func New(stats tally.Scope) Repository {
	return &repository{
		memstore: make(map[uuid.UUID][]model.ChatTurn),
		stats:    stats,
	}
}

func (r *repository) History(ctx context.Context, id uuid.UUID) ([]entity.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return mapper.ModelToChatMessages(r.memstore[id]), nil
}

func (r *repository) Append(ctx context.Context, id uuid.UUID, msgs ...entity.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.memstore[id] = append(r.memstore[id], mapper.ChatMessagesToModel(msgs)...)
	r.stats.Counter("chat_turns").Inc(int64(len(msgs)))
	return nil
}

// Clear resets the session's history to empty.
func (r *repository) Clear(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.memstore[id]; ok {
		r.memstore[id] = nil
	}
	return nil
}

// Delete drops all state for the session.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.memstore, id)
	return nil
}
