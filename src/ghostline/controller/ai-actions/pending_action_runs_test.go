package aiactions

import (
	"testing"

	"github.com/ghostline-dev/ghostline/src/ghostline/factory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

func TestPendingActionRunStart(t *testing.T) {
	store := newPendingActionRunStore()
	sessionUUID := factory.UUID()

	token := store.Start(sessionUUID, "ghostline.explain", `{"uri":"a"}`)
	require.NotNil(t, token)
	assert.True(t, store.Pending(sessionUUID, "ghostline.explain", `{"uri":"a"}`))

	assert.Nil(t, store.Start(sessionUUID, "ghostline.explain", `{"uri":"a"}`), "identical run should be rejected")
	assert.NotNil(t, store.Start(sessionUUID, "ghostline.explain", `{"uri":"b"}`), "different args should start")
	assert.NotNil(t, store.Start(sessionUUID, "ghostline.refactor", `{"uri":"a"}`), "different action should start")
	assert.NotNil(t, store.Start(factory.UUID(), "ghostline.explain", `{"uri":"a"}`), "different session should start")
}

func TestPendingActionRunFinish(t *testing.T) {
	store := newPendingActionRunStore()
	sessionUUID := factory.UUID()
	store.Start(sessionUUID, "ghostline.explain", "args")

	store.Finish(factory.UUID(), "ghostline.explain", "args")
	store.Finish(sessionUUID, "dummy", "args")
	assert.True(t, store.Pending(sessionUUID, "ghostline.explain", "args"), "run should survive unrelated finishes")

	store.Finish(sessionUUID, "ghostline.explain", "args")
	assert.False(t, store.Pending(sessionUUID, "ghostline.explain", "args"))
	assert.NotNil(t, store.Start(sessionUUID, "ghostline.explain", "args"), "finished run can start again")
}

func TestPendingActionRunSessionTokens(t *testing.T) {
	store := newPendingActionRunStore()
	sessionUUID := factory.UUID()
	other := factory.UUID()

	first := store.Start(sessionUUID, "ghostline.explain", "1")
	second := store.Start(sessionUUID, "ghostline.refactor", "2")
	store.Start(other, "ghostline.explain", "1")

	assert.ElementsMatch(t, []*protocol.ProgressToken{first, second}, store.SessionTokens(sessionUUID))
	assert.Len(t, store.SessionTokens(factory.UUID()), 0)

	store.DeleteSession(sessionUUID)
	assert.Len(t, store.SessionTokens(sessionUUID), 0)
	assert.Len(t, store.SessionTokens(other), 1)
}
