package aiactions

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/ghostline-dev/ghostline/src/ghostline/controller/chat/chatmock"
	"github.com/ghostline-dev/ghostline/src/ghostline/controller/doc-sync/docsyncmock"
	"github.com/ghostline-dev/ghostline/src/ghostline/controller/settings/settingsmock"
	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	"github.com/ghostline-dev/ghostline/src/ghostline/factory"
	"github.com/ghostline-dev/ghostline/src/ghostline/gateway/ide-client/ideclientmock"
	"github.com/ghostline-dev/ghostline/src/ghostline/gateway/llm/llmmock"
	ghostlineerrors "github.com/ghostline-dev/ghostline/src/ghostline/internal/errors"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/logfilewriter/logfilewritermock"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/telemetry"
	sessionmock "github.com/ghostline-dev/ghostline/src/ghostline/repository/session/repositorymock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally/v4"
	"go.lsp.dev/protocol"
	"go.uber.org/config"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

const _testText = "func answer() int {\n\treturn 1\n}\n"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type testDeps struct {
	c         *controller
	ctx       context.Context
	session   *entity.Session
	doc       protocol.TextDocumentItem
	documents *docsyncmock.MockController
	chat      *chatmock.MockController
	llm       *llmmock.MockGateway
	ide       *ideclientmock.MockGateway
	telemetry telemetry.Telemetry
}

func newTestController(t *testing.T) testDeps {
	ctrl := gomock.NewController(t)
	s := factory.Session("/ws")
	sessions := sessionmock.NewMockRepository(ctrl)
	sessions.EXPECT().GetFromContext(gomock.Any()).Return(s, nil).AnyTimes()

	settings := settingsmock.NewMockController(ctrl)
	settings.EXPECT().Get(gomock.Any()).Return(entity.Settings{DefaultModel: "gpt-4o"}, nil).AnyTimes()

	activityLog := logfilewritermock.NewMockActivityLog(ctrl)
	activityLog.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	activityLog.EXPECT().Error(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()

	cfg, err := config.NewStaticProvider(map[string]interface{}{
		_configKey: map[string]interface{}{"maxTokens": 512, "temperature": 0.2},
	})
	require.NoError(t, err)

	d := testDeps{
		ctx:       context.WithValue(context.Background(), entity.SessionContextKey, s.UUID),
		session:   s,
		doc:       factory.TextDocumentItem("/ws/answer.go", "go", _testText),
		documents: docsyncmock.NewMockController(ctrl),
		chat:      chatmock.NewMockController(ctrl),
		llm:       llmmock.NewMockGateway(ctrl),
		ide:       ideclientmock.NewMockGateway(ctrl),
		telemetry: telemetry.New(telemetry.Params{Stats: tally.NoopScope}),
	}

	c, err := New(Params{
		Sessions:    sessions,
		Documents:   d.documents,
		Settings:    settings,
		Chat:        d.chat,
		LLM:         d.llm,
		IdeGateway:  d.ide,
		Telemetry:   d.telemetry,
		ActivityLog: activityLog,
		Config:      cfg,
		Logger:      zap.NewNop().Sugar(),
	})
	require.NoError(t, err)
	d.c = c.(*controller)
	return d
}

// selectionArgs selects the body line of the test document.
func (d testDeps) selectionArgs() entity.ActionArgs {
	return entity.ActionArgs{
		URI:   d.doc.URI,
		Range: protocol.Range{Start: factory.Position(1, 0), End: factory.Position(2, 0)},
	}
}

// expectProgress returns a pointer that receives the progress token of the run.
func (d testDeps) expectProgress() *protocol.ProgressToken {
	token := &protocol.ProgressToken{}
	d.ide.EXPECT().WorkDoneProgressCreate(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, params *protocol.WorkDoneProgressCreateParams) error {
			*token = params.Token
			return nil
		})
	d.ide.EXPECT().Progress(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	return token
}

func commandParams(t *testing.T, command string, args interface{}) *protocol.ExecuteCommandParams {
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	return &protocol.ExecuteCommandParams{Command: command, Arguments: []interface{}{json.RawMessage(raw)}}
}

func TestNew(t *testing.T) {
	d := newTestController(t)
	assert.Equal(t, 512, d.c.config.MaxTokens)
	assert.Equal(t, 0.2, d.c.config.Temperature)
	assert.Len(t, d.c.actions, len(allActions))

	t.Run("defaults", func(t *testing.T) {
		cfg, err := config.NewStaticProvider(map[string]interface{}{})
		require.NoError(t, err)
		c, err := New(Params{Config: cfg, Logger: zap.NewNop().Sugar()})
		require.NoError(t, err)
		assert.Equal(t, _defaultMaxTokens, c.(*controller).config.MaxTokens)
	})
}

func TestStartupInfo(t *testing.T) {
	c := controller{}
	result, err := c.StartupInfo(context.Background())

	assert.NoError(t, err)
	assert.NoError(t, result.Validate())
	assert.Equal(t, _nameKey, result.NameKey)
}

func TestInitialize(t *testing.T) {
	d := newTestController(t)
	result := &protocol.InitializeResult{}
	require.NoError(t, d.c.initialize(d.ctx, &protocol.InitializeParams{}, result))

	options, ok := result.Capabilities.CodeActionProvider.(*protocol.CodeActionOptions)
	require.True(t, ok)
	assert.ElementsMatch(t, []protocol.CodeActionKind{protocol.QuickFix, protocol.Refactor, protocol.RefactorRewrite}, options.CodeActionKinds)
	assert.ElementsMatch(t, []string{
		entity.CommandExplain,
		entity.CommandRefactor,
		entity.CommandDocument,
		entity.CommandExplainError,
		entity.CommandGenerateTests,
	}, result.Capabilities.ExecuteCommandProvider.Commands)
}

func TestCodeAction(t *testing.T) {
	diagnostic := protocol.Diagnostic{Range: protocol.Range{Start: factory.Position(1, 8)}, Message: "undefined: x"}
	selection := protocol.Range{Start: factory.Position(1, 0), End: factory.Position(2, 0)}

	tests := []struct {
		name     string
		params   *protocol.CodeActionParams
		commands []string
	}{
		{
			name:   "no selection",
			params: &protocol.CodeActionParams{Range: protocol.Range{Start: factory.Position(1, 0), End: factory.Position(1, 0)}},
		},
		{
			name:   "selection",
			params: &protocol.CodeActionParams{Range: selection},
			commands: []string{
				entity.CommandExplain,
				entity.CommandRefactor,
				entity.CommandDocument,
				entity.CommandGenerateTests,
			},
		},
		{
			name: "selection with diagnostics",
			params: &protocol.CodeActionParams{
				Range:   selection,
				Context: protocol.CodeActionContext{Diagnostics: []protocol.Diagnostic{diagnostic}},
			},
			commands: []string{
				entity.CommandExplain,
				entity.CommandRefactor,
				entity.CommandDocument,
				entity.CommandExplainError,
				entity.CommandGenerateTests,
			},
		},
		{
			name: "only quick fixes",
			params: &protocol.CodeActionParams{
				Range: selection,
				Context: protocol.CodeActionContext{
					Diagnostics: []protocol.Diagnostic{diagnostic},
					Only:        []protocol.CodeActionKind{protocol.QuickFix},
				},
			},
			commands: []string{entity.CommandExplainError},
		},
		{
			name: "refactor family",
			params: &protocol.CodeActionParams{
				Range:   selection,
				Context: protocol.CodeActionContext{Only: []protocol.CodeActionKind{protocol.Refactor}},
			},
			commands: []string{
				entity.CommandExplain,
				entity.CommandRefactor,
				entity.CommandDocument,
				entity.CommandGenerateTests,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestController(t)
			result := []protocol.CodeAction{}
			require.NoError(t, d.c.codeAction(d.ctx, tt.params, &result))

			commands := []string{}
			for _, action := range result {
				commands = append(commands, action.Command.Command)
				args, ok := action.Command.Arguments[0].(entity.ActionArgs)
				require.True(t, ok)
				assert.Equal(t, tt.params.Range, args.Range)
			}
			assert.Equal(t, len(tt.commands), len(commands))
			assert.ElementsMatch(t, tt.commands, commands)
		})
	}
}

func TestExecuteCommand(t *testing.T) {
	t.Run("explain publishes to chat", func(t *testing.T) {
		d := newTestController(t)
		d.expectProgress()
		d.documents.EXPECT().GetTextDocument(gomock.Any(), protocol.TextDocumentIdentifier{URI: d.doc.URI}).Return(d.doc, nil)
		d.llm.EXPECT().CallModel(gomock.Any(), "gpt-4o", gomock.Any()).DoAndReturn(
			func(ctx context.Context, modelID string, req entity.ModelRequest) entity.ModelResult {
				assert.Equal(t, 512, req.MaxTokens)
				require.Len(t, req.Messages, 1)
				assert.Contains(t, req.Messages[0].Content, "```go\n\treturn 1\n```")
				assert.Contains(t, req.Messages[0].Content, "answer.go")
				return entity.ModelResult{Text: "returns one", Usage: &entity.Usage{CompletionTokens: 3}}
			})
		d.chat.EXPECT().Publish(gomock.Any(), entity.ChatResponse{
			Command: entity.CommandExplain,
			Message: entity.ChatMessage{Role: entity.RoleAssistant, Content: "returns one"},
			Usage:   &entity.Usage{CompletionTokens: 3},
		}).Return(nil)

		require.NoError(t, d.c.executeCommand(d.ctx, commandParams(t, entity.CommandExplain, d.selectionArgs())))
		snapshot := d.telemetry.Snapshot()
		assert.Equal(t, int64(1), snapshot[telemetry.MetricActions])
		assert.Equal(t, int64(3), snapshot[telemetry.MetricCompletionTokens])
		assert.Empty(t, d.c.pendingCmds)
	})

	t.Run("refactor applies minimal edits", func(t *testing.T) {
		d := newTestController(t)
		d.expectProgress()
		d.documents.EXPECT().GetTextDocument(gomock.Any(), gomock.Any()).Return(d.doc, nil)
		d.llm.EXPECT().CallModel(gomock.Any(), "gpt-4o", gomock.Any()).Return(entity.ModelResult{Text: "```go\n\treturn 2\n```"})

		var preview bytes.Buffer
		d.ide.EXPECT().GetLogMessageWriter(gomock.Any(), "refactor").Return(&preview, nil)
		d.ide.EXPECT().ApplyEdit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, params *protocol.ApplyWorkspaceEditParams) (*protocol.ApplyWorkspaceEditResponse, error) {
				require.Len(t, params.Edit.DocumentChanges, 1)
				change := params.Edit.DocumentChanges[0]
				assert.Equal(t, d.doc.URI, change.TextDocument.URI)
				assert.Equal(t, []protocol.TextEdit{
					{Range: protocol.Range{Start: factory.Position(1, 8), End: factory.Position(1, 9)}, NewText: ""},
					{Range: protocol.Range{Start: factory.Position(1, 9), End: factory.Position(1, 9)}, NewText: "2"},
				}, change.Edits)
				return &protocol.ApplyWorkspaceEditResponse{Applied: true}, nil
			})

		require.NoError(t, d.c.executeCommand(d.ctx, commandParams(t, entity.CommandRefactor, d.selectionArgs())))
		assert.Equal(t, "-\treturn 1\n+\treturn 2\n", preview.String())
	})

	t.Run("identical pending run is skipped", func(t *testing.T) {
		d := newTestController(t)
		raw, err := json.Marshal(d.selectionArgs())
		require.NoError(t, err)
		require.NotNil(t, d.c.pendingActionRuns.Start(d.session.UUID, entity.CommandExplain, string(raw)))

		require.NoError(t, d.c.executeCommand(d.ctx, commandParams(t, entity.CommandExplain, d.selectionArgs())))
		assert.True(t, d.c.pendingActionRuns.Pending(d.session.UUID, entity.CommandExplain, string(raw)))
	})

	t.Run("cancel", func(t *testing.T) {
		d := newTestController(t)
		token := d.expectProgress()
		d.documents.EXPECT().GetTextDocument(gomock.Any(), gomock.Any()).Return(d.doc, nil)
		d.llm.EXPECT().CallModel(gomock.Any(), "gpt-4o", gomock.Any()).DoAndReturn(
			func(ctx context.Context, modelID string, req entity.ModelRequest) entity.ModelResult {
				require.NoError(t, d.c.workDoneProgressCancel(d.ctx, &protocol.WorkDoneProgressCancelParams{Token: *token}))
				<-ctx.Done()
				return entity.ModelResult{Error: "openai request failed: " + ctx.Err().Error()}
			})

		require.NoError(t, d.c.executeCommand(d.ctx, commandParams(t, entity.CommandRefactor, d.selectionArgs())))
	})

	t.Run("model failure", func(t *testing.T) {
		d := newTestController(t)
		d.expectProgress()
		d.documents.EXPECT().GetTextDocument(gomock.Any(), gomock.Any()).Return(d.doc, nil)
		d.llm.EXPECT().CallModel(gomock.Any(), "gpt-4o", gomock.Any()).Return(entity.ModelResult{Error: "openai request failed: 500"})
		d.ide.EXPECT().ShowMessage(gomock.Any(), &protocol.ShowMessageParams{
			Type:    protocol.MessageTypeError,
			Message: "Generate tests failed: openai request failed: 500",
		}).Return(nil)

		require.NoError(t, d.c.executeCommand(d.ctx, commandParams(t, entity.CommandGenerateTests, d.selectionArgs())))
		assert.Equal(t, int64(1), d.telemetry.Snapshot()[telemetry.MetricErrors])
	})

	t.Run("missing api key", func(t *testing.T) {
		d := newTestController(t)
		d.expectProgress()
		d.documents.EXPECT().GetTextDocument(gomock.Any(), gomock.Any()).Return(d.doc, nil)
		d.llm.EXPECT().CallModel(gomock.Any(), "gpt-4o", gomock.Any()).Return(entity.ModelResult{Error: "no API key", Misconfigured: true})
		d.ide.EXPECT().ShowMessage(gomock.Any(), &protocol.ShowMessageParams{
			Type:    protocol.MessageTypeWarning,
			Message: "Document failed: no API key",
		}).Return(nil)

		require.NoError(t, d.c.executeCommand(d.ctx, commandParams(t, entity.CommandDocument, d.selectionArgs())))
	})

	t.Run("document not open", func(t *testing.T) {
		d := newTestController(t)
		d.documents.EXPECT().GetTextDocument(gomock.Any(), gomock.Any()).Return(protocol.TextDocumentItem{}, &ghostlineerrors.DocumentNotFoundError{})
		d.ide.EXPECT().ShowMessage(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, params *protocol.ShowMessageParams) error {
				assert.Equal(t, protocol.MessageTypeWarning, params.Type)
				return nil
			})

		require.NoError(t, d.c.executeCommand(d.ctx, commandParams(t, entity.CommandExplain, d.selectionArgs())))
	})

	t.Run("empty selection", func(t *testing.T) {
		d := newTestController(t)
		d.documents.EXPECT().GetTextDocument(gomock.Any(), gomock.Any()).Return(d.doc, nil)
		d.ide.EXPECT().ShowMessage(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, params *protocol.ShowMessageParams) error {
				assert.Equal(t, protocol.MessageTypeInfo, params.Type)
				return nil
			})

		args := d.selectionArgs()
		args.Range.End = args.Range.Start
		require.NoError(t, d.c.executeCommand(d.ctx, commandParams(t, entity.CommandExplain, args)))
	})

	t.Run("other commands are ignored", func(t *testing.T) {
		d := newTestController(t)
		require.NoError(t, d.c.executeCommand(d.ctx, &protocol.ExecuteCommandParams{Command: entity.CommandChat}))
	})
}

func TestEndSession(t *testing.T) {
	d := newTestController(t)
	token := d.c.pendingActionRuns.Start(d.session.UUID, entity.CommandExplain, "args")
	canceled := false
	d.c.pendingCmds[*token] = func() { canceled = true }

	require.NoError(t, d.c.endSession(d.ctx, d.session.UUID))
	assert.True(t, canceled)
	assert.Empty(t, d.c.pendingCmds)
	assert.False(t, d.c.pendingActionRuns.Pending(d.session.UUID, entity.CommandExplain, "args"))
}

func TestWorkDoneProgressCancelUnknownToken(t *testing.T) {
	d := newTestController(t)
	assert.NoError(t, d.c.workDoneProgressCancel(d.ctx, &protocol.WorkDoneProgressCancelParams{Token: *protocol.NewProgressToken("unknown")}))
}
