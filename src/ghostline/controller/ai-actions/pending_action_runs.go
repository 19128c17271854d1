package aiactions

import (
	"sync"

	"github.com/ghostline-dev/ghostline/src/ghostline/factory"
	"github.com/gofrs/uuid"
	"go.lsp.dev/protocol"
)

type taskIdentifier struct {
	session    uuid.UUID
	actionName string
	argsToken  string
}

// pendingActionRunStore tracks running actions so that an identical request is not started twice.
type pendingActionRunStore struct {
	mu                sync.Mutex
	inProgressActions map[taskIdentifier]*protocol.ProgressToken
}

func newPendingActionRunStore() *pendingActionRunStore {
	return &pendingActionRunStore{
		inProgressActions: make(map[taskIdentifier]*protocol.ProgressToken),
	}
}

// Start registers a run and returns its progress token. It returns nil when an identical run is already pending.
func (a *pendingActionRunStore) Start(sessionUUID uuid.UUID, actionName string, argsToken string) *protocol.ProgressToken {
	a.mu.Lock()
	defer a.mu.Unlock()

	task := taskIdentifier{session: sessionUUID, actionName: actionName, argsToken: argsToken}
	if _, exist := a.inProgressActions[task]; exist {
		return nil
	}
	token := protocol.NewProgressToken(factory.UUID().String())
	a.inProgressActions[task] = token
	return token
}

// Finish removes a run from the store.
func (a *pendingActionRunStore) Finish(sessionUUID uuid.UUID, actionName string, argsToken string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.inProgressActions, taskIdentifier{session: sessionUUID, actionName: actionName, argsToken: argsToken})
}

// Pending reports whether an identical run is in progress.
func (a *pendingActionRunStore) Pending(sessionUUID uuid.UUID, actionName string, argsToken string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, exist := a.inProgressActions[taskIdentifier{session: sessionUUID, actionName: actionName, argsToken: argsToken}]
	return exist
}

// SessionTokens returns the progress tokens of every pending run of the session.
func (a *pendingActionRunStore) SessionTokens(sessionUUID uuid.UUID) []*protocol.ProgressToken {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := make([]*protocol.ProgressToken, 0)
	for k, v := range a.inProgressActions {
		if k.session == sessionUUID {
			result = append(result, v)
		}
	}
	return result
}

// DeleteSession deletes all pending runs of the session.
func (a *pendingActionRunStore) DeleteSession(sessionUUID uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for k := range a.inProgressActions {
		if k.session == sessionUUID {
			delete(a.inProgressActions, k)
		}
	}
}
