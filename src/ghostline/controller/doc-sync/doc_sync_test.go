package docsync

import (
	"context"
	"errors"
	"testing"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	"github.com/ghostline-dev/ghostline/src/ghostline/factory"
	ghostlineerrors "github.com/ghostline-dev/ghostline/src/ghostline/internal/errors"
	"github.com/ghostline-dev/ghostline/src/ghostline/repository/session/repositorymock"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally/v4"
	"go.lsp.dev/protocol"
	"go.uber.org/config"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNew(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		mockConfig, _ := config.NewStaticProvider(map[string]interface{}{
			_maxFileSizeKey: 2000,
		})
		c, err := New(Params{
			Stats:  tally.NewTestScope("testing", make(map[string]string, 0)),
			Config: mockConfig,
			Logger: zap.NewNop().Sugar(),
		})
		assert.NoError(t, err)
		assert.NotNil(t, c)
	})

	t.Run("missing size limit", func(t *testing.T) {
		mockConfig, _ := config.NewStaticProvider(map[string]interface{}{})
		_, err := New(Params{
			Stats:  tally.NoopScope,
			Config: mockConfig,
			Logger: zap.NewNop().Sugar(),
		})
		assert.Error(t, err)
	})
}

func TestStartupInfo(t *testing.T) {
	ctx := context.Background()
	c := controller{}
	result, err := c.StartupInfo(ctx)

	assert.NoError(t, err)
	assert.NoError(t, result.Validate())
	assert.Equal(t, _nameKey, result.NameKey)
}

func TestInitialize(t *testing.T) {
	c, s, ctx := newTestController(t)
	delete(c.documents, s.UUID)

	err := c.initialize(ctx, &protocol.InitializeParams{}, &protocol.InitializeResult{})

	assert.NoError(t, err)
	_, ok := c.documents[s.UUID]
	assert.True(t, ok)
	assert.Len(t, c.documents, 1)
}

func TestShutdown(t *testing.T) {
	c, s, ctx := newTestController(t)
	c.Observe(ctx, s.UUID, func(context.Context, protocol.TextDocumentItem, []protocol.TextDocumentContentChangeEvent) {})

	err := c.shutdown(ctx)
	assert.NoError(t, err)

	_, ok := c.documents[s.UUID]
	assert.False(t, ok)
	assert.Len(t, c.observers, 0)
}

func TestEndSession(t *testing.T) {
	c, s, ctx := newTestController(t)

	assert.NoError(t, c.endSession(ctx, s.UUID))
	assert.Len(t, c.documents, 0)
}

func TestDidOpen(t *testing.T) {
	c, s, ctx := newTestController(t)

	t.Run("tracked", func(t *testing.T) {
		item := factory.TextDocumentItem("/my/path/file.go", "go", "package main")
		err := c.didOpen(ctx, &protocol.DidOpenTextDocumentParams{TextDocument: item})
		assert.NoError(t, err)
		assert.Equal(t, item, c.documents[s.UUID][protocol.TextDocumentIdentifier{URI: item.URI}])
	})

	t.Run("exceeds size limit", func(t *testing.T) {
		item := factory.TextDocumentItem("/my/path/big.go", "go", string(make([]byte, 200)))
		err := c.didOpen(ctx, &protocol.DidOpenTextDocumentParams{TextDocument: item})
		assert.NoError(t, err)
		_, ok := c.documents[s.UUID][protocol.TextDocumentIdentifier{URI: item.URI}]
		assert.False(t, ok)
	})

	t.Run("session not initialized", func(t *testing.T) {
		delete(c.documents, s.UUID)
		err := c.didOpen(ctx, &protocol.DidOpenTextDocumentParams{TextDocument: factory.TextDocumentItem("/a.go", "go", "")})
		var notFound *ghostlineerrors.UUIDNotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestDidChange(t *testing.T) {
	c, s, ctx := newTestController(t)
	item := factory.TextDocumentItem("/my/path/file.go", "go", "package main\n")
	c.documents[s.UUID][protocol.TextDocumentIdentifier{URI: item.URI}] = item

	var observed []protocol.TextDocumentItem
	unsubscribe := c.Observe(ctx, s.UUID, func(_ context.Context, doc protocol.TextDocumentItem, changes []protocol.TextDocumentContentChangeEvent) {
		assert.Len(t, changes, 1)
		observed = append(observed, doc)
	})

	params := &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: item.URI},
			Version:                2,
		},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{
			{
				Range: &protocol.Range{
					Start: protocol.Position{Line: 1, Character: 0},
					End:   protocol.Position{Line: 1, Character: 0},
				},
				Text: "func main() {}\n",
			},
		},
	}

	require.NoError(t, c.didChange(ctx, params))
	updated := c.documents[s.UUID][protocol.TextDocumentIdentifier{URI: item.URI}]
	assert.Equal(t, "package main\nfunc main() {}\n", updated.Text)
	assert.Equal(t, int32(2), updated.Version)
	require.Len(t, observed, 1)
	assert.Equal(t, updated, observed[0])

	unsubscribe()
	unsubscribe()
	params.ContentChanges = []protocol.TextDocumentContentChangeEvent{{Text: "package other\n"}}
	require.NoError(t, c.didChange(ctx, params))
	assert.Len(t, observed, 1)
	assert.Equal(t, "package other\n", c.documents[s.UUID][protocol.TextDocumentIdentifier{URI: item.URI}].Text)

	t.Run("unknown document", func(t *testing.T) {
		params := &protocol.DidChangeTextDocumentParams{
			TextDocument: protocol.VersionedTextDocumentIdentifier{
				TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: "file:///missing.go"},
			},
		}
		assert.Error(t, c.didChange(ctx, params))
	})

	t.Run("change exceeds size limit", func(t *testing.T) {
		params.ContentChanges = []protocol.TextDocumentContentChangeEvent{{Text: string(make([]byte, 200))}}
		assert.Error(t, c.didChange(ctx, params))
		_, ok := c.documents[s.UUID][protocol.TextDocumentIdentifier{URI: item.URI}]
		assert.False(t, ok)
	})
}

func TestDidClose(t *testing.T) {
	c, s, ctx := newTestController(t)
	item := factory.TextDocumentItem("/my/path/file.go", "go", "package main")
	c.documents[s.UUID][protocol.TextDocumentIdentifier{URI: item.URI}] = item

	err := c.didClose(ctx, &protocol.DidCloseTextDocumentParams{TextDocument: protocol.TextDocumentIdentifier{URI: item.URI}})
	assert.NoError(t, err)
	assert.Len(t, c.documents[s.UUID], 0)
}

func TestDidSave(t *testing.T) {
	c, s, ctx := newTestController(t)
	item := factory.TextDocumentItem("/my/path/file.go", "go", "package main")
	id := protocol.TextDocumentIdentifier{URI: item.URI}
	c.documents[s.UUID][id] = item

	t.Run("without text", func(t *testing.T) {
		assert.NoError(t, c.didSave(ctx, &protocol.DidSaveTextDocumentParams{TextDocument: id}))
		assert.Equal(t, "package main", c.documents[s.UUID][id].Text)
	})

	t.Run("with text", func(t *testing.T) {
		assert.NoError(t, c.didSave(ctx, &protocol.DidSaveTextDocumentParams{TextDocument: id, Text: "package saved"}))
		assert.Equal(t, "package saved", c.documents[s.UUID][id].Text)
	})

	t.Run("unknown document", func(t *testing.T) {
		err := c.didSave(ctx, &protocol.DidSaveTextDocumentParams{TextDocument: protocol.TextDocumentIdentifier{URI: "file:///missing.go"}})
		var notFound *ghostlineerrors.DocumentNotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestGetTextDocument(t *testing.T) {
	c, s, ctx := newTestController(t)
	item := factory.TextDocumentItem("/my/path/file.go", "go", "package main")
	c.documents[s.UUID][protocol.TextDocumentIdentifier{URI: item.URI}] = item

	result, err := c.GetTextDocument(ctx, protocol.TextDocumentIdentifier{URI: item.URI})
	assert.NoError(t, err)
	assert.Equal(t, item, result)

	_, err = c.GetTextDocument(ctx, protocol.TextDocumentIdentifier{URI: "file:///missing.go"})
	var notFound *ghostlineerrors.DocumentNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestListOpenDocuments(t *testing.T) {
	c, s, ctx := newTestController(t)
	b := factory.TextDocumentItem("/ws/b.go", "go", "package b")
	a := factory.TextDocumentItem("/ws/a.go", "go", "package a")
	c.documents[s.UUID][protocol.TextDocumentIdentifier{URI: b.URI}] = b
	c.documents[s.UUID][protocol.TextDocumentIdentifier{URI: a.URI}] = a

	docs, err := c.ListOpenDocuments(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []protocol.TextDocumentItem{a, b}, docs)

	delete(c.documents, s.UUID)
	_, err = c.ListOpenDocuments(ctx)
	assert.Error(t, err)
}

func TestSessionErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	sessionRepository := repositorymock.NewMockRepository(ctrl)
	sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(nil, errors.New("no session")).AnyTimes()

	c := controller{
		sessions:  sessionRepository,
		documents: make(documentStore),
		observers: make(map[uuid.UUID][]observerEntry),
		stats:     tally.NoopScope,
	}
	ctx := context.Background()

	assert.Error(t, c.initialize(ctx, &protocol.InitializeParams{}, &protocol.InitializeResult{}))
	assert.Error(t, c.shutdown(ctx))
	assert.Error(t, c.didOpen(ctx, &protocol.DidOpenTextDocumentParams{}))
	assert.Error(t, c.didChange(ctx, &protocol.DidChangeTextDocumentParams{}))
	assert.Error(t, c.didClose(ctx, &protocol.DidCloseTextDocumentParams{}))
	assert.Error(t, c.didSave(ctx, &protocol.DidSaveTextDocumentParams{}))
	_, err := c.ListOpenDocuments(ctx)
	assert.Error(t, err)
}

func TestUpdateMetrics(t *testing.T) {
	c, s, ctx := newTestController(t)
	scope := tally.NewTestScope("testing", nil)
	c.stats = scope
	item := factory.TextDocumentItem("/my/path/file.go", "go", "12345")
	c.documents[s.UUID][protocol.TextDocumentIdentifier{URI: item.URI}] = item

	c.updateMetrics(ctx)
	gauges := scope.Snapshot().Gauges()
	assert.Equal(t, float64(1), gauges["testing.open_docs+"].Value())
	assert.Equal(t, float64(5), gauges["testing.open_bytes+"].Value())
}

func newTestController(t *testing.T) (*controller, *entity.Session, context.Context) {
	ctrl := gomock.NewController(t)
	sessionRepository := repositorymock.NewMockRepository(ctrl)
	s := &entity.Session{UUID: factory.UUID()}
	sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(s, nil).AnyTimes()

	c := &controller{
		sessions:         sessionRepository,
		logger:           zap.NewNop().Sugar(),
		documents:        make(documentStore),
		observers:        make(map[uuid.UUID][]observerEntry),
		stats:            tally.NoopScope,
		maxFileSizeBytes: 100,
	}
	c.documents[s.UUID] = make(map[protocol.TextDocumentIdentifier]protocol.TextDocumentItem)

	ctx := context.WithValue(context.Background(), entity.SessionContextKey, s.UUID)
	return c, s, ctx
}
