package ideclient

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	"github.com/ghostline-dev/ghostline/src/ghostline/factory"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/jsonrpcfx/jsonrpc2mock"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func TestRegisterClient(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	g := gateway{
		clients:     make(map[uuid.UUID]protocol.Client),
		connections: make(map[uuid.UUID]jsonrpc2.Conn),
		logger:      zap.NewNop(),
	}

	for i := 0; i < 10; i++ {
		mockConn := jsonrpc2mock.NewMockConn(ctrl)
		var conn jsonrpc2.Conn = mockConn
		err := g.RegisterClient(ctx, factory.UUID(), &conn)
		assert.NoError(t, err)
	}

	assert.Len(t, g.clients, 10)
	assert.Len(t, g.connections, 10)
}

func TestDeregisterClient(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	g := gateway{
		clients:     make(map[uuid.UUID]protocol.Client),
		connections: make(map[uuid.UUID]jsonrpc2.Conn),
		logger:      zap.NewNop(),
	}

	for i := 0; i < 10; i++ {
		mockConn := jsonrpc2mock.NewMockConn(ctrl)
		var conn jsonrpc2.Conn = mockConn
		require.NoError(t, g.RegisterClient(ctx, factory.UUID(), &conn))
	}

	for key := range g.clients {
		assert.NotNil(t, g.clients[key])
		assert.NoError(t, g.DeregisterClient(ctx, key))
		assert.Nil(t, g.clients[key])
	}
	assert.Len(t, g.clients, 0)
	assert.Len(t, g.connections, 0)
}

func TestNotifications(t *testing.T) {
	g, mockConn, ctx := getTestGateway(t)

	progressParams := &protocol.ProgressParams{Token: *protocol.NewNumberProgressToken(5), Value: "sampleValue"}
	logParams := &protocol.LogMessageParams{Message: "sample message", Type: protocol.MessageTypeInfo}
	showParams := &protocol.ShowMessageParams{Message: "sample message", Type: protocol.MessageTypeWarning}
	telemetryParams := map[string]int{"requests": 1}

	tests := []struct {
		name   string
		method string
		params interface{}
		call   func(ctx context.Context) error
	}{
		{
			name:   "progress",
			method: protocol.MethodProgress,
			params: progressParams,
			call:   func(ctx context.Context) error { return g.Progress(ctx, progressParams) },
		},
		{
			name:   "log message",
			method: protocol.MethodWindowLogMessage,
			params: logParams,
			call:   func(ctx context.Context) error { return g.LogMessage(ctx, logParams) },
		},
		{
			name:   "show message",
			method: protocol.MethodWindowShowMessage,
			params: showParams,
			call:   func(ctx context.Context) error { return g.ShowMessage(ctx, showParams) },
		},
		{
			name:   "telemetry",
			method: protocol.MethodTelemetryEvent,
			params: telemetryParams,
			call:   func(ctx context.Context) error { return g.Telemetry(ctx, telemetryParams) },
		},
		{
			name:   "custom notification",
			method: entity.NotificationChatResponse,
			params: telemetryParams,
			call:   func(ctx context.Context) error { return g.Notify(ctx, entity.NotificationChatResponse, telemetryParams) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockConn.EXPECT().Notify(gomock.Eq(ctx), gomock.Eq(tt.method), gomock.Eq(tt.params)).Return(nil)
			assert.NoError(t, tt.call(ctx))

			mockConn.EXPECT().Notify(gomock.Eq(ctx), gomock.Eq(tt.method), gomock.Eq(tt.params)).Return(errors.New("error"))
			assert.Error(t, tt.call(ctx))

			assert.Error(t, tt.call(context.Background()), "invalid context")
			assert.Error(t, tt.call(context.WithValue(context.Background(), entity.SessionContextKey, factory.UUID())), "client not found")
		})
	}
}

func TestWorkDoneProgressCreate(t *testing.T) {
	g, mockConn, ctx := getTestGateway(t)

	params := &protocol.WorkDoneProgressCreateParams{Token: *protocol.NewNumberProgressToken(5)}

	t.Run("call success", func(t *testing.T) {
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWorkDoneProgressCreate), gomock.Eq(params), gomock.Any()).Return(jsonrpc2.NewNumberID(5), nil)
		assert.NoError(t, g.WorkDoneProgressCreate(ctx, params))
	})
	t.Run("call failure", func(t *testing.T) {
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWorkDoneProgressCreate), gomock.Eq(params), gomock.Any()).Return(jsonrpc2.NewNumberID(5), errors.New("error"))
		assert.Error(t, g.WorkDoneProgressCreate(ctx, params))
	})
	t.Run("invalid context", func(t *testing.T) {
		assert.Error(t, g.WorkDoneProgressCreate(context.Background(), params))
	})
}

func TestShowMessageRequest(t *testing.T) {
	g, mockConn, ctx := getTestGateway(t)

	messageParams := &protocol.ShowMessageRequestParams{
		Message: "Multiple workspace roots found.",
		Type:    protocol.MessageTypeInfo,
	}

	t.Run("call success", func(t *testing.T) {
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWorkDoneProgressCreate), gomock.Any(), gomock.Any()).Return(jsonrpc2.NewNumberID(4), nil)
		mockConn.EXPECT().Notify(gomock.Eq(ctx), gomock.Eq(protocol.MethodProgress), gomock.Any()).Return(nil).Times(2)
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWindowShowMessageRequest), gomock.Eq(messageParams), gomock.Any()).Return(jsonrpc2.NewNumberID(5), nil)
		_, err := g.ShowMessageRequest(ctx, messageParams)
		assert.NoError(t, err)
	})
	t.Run("error level skips progress", func(t *testing.T) {
		errorParams := &protocol.ShowMessageRequestParams{Message: "sample", Type: protocol.MessageTypeError}
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWindowShowMessageRequest), gomock.Eq(errorParams), gomock.Any()).Return(jsonrpc2.NewNumberID(5), nil)
		_, err := g.ShowMessageRequest(ctx, errorParams)
		assert.NoError(t, err)
	})
	t.Run("call failure", func(t *testing.T) {
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWorkDoneProgressCreate), gomock.Any(), gomock.Any()).Return(jsonrpc2.NewNumberID(4), nil)
		mockConn.EXPECT().Notify(gomock.Eq(ctx), gomock.Eq(protocol.MethodProgress), gomock.Any()).Return(nil).Times(2)
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWindowShowMessageRequest), gomock.Eq(messageParams), gomock.Any()).Return(jsonrpc2.NewNumberID(5), errors.New("error"))
		_, err := g.ShowMessageRequest(ctx, messageParams)
		assert.Error(t, err)
	})
	t.Run("progress create failure", func(t *testing.T) {
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWorkDoneProgressCreate), gomock.Any(), gomock.Any()).Return(jsonrpc2.NewNumberID(4), errors.New("error"))
		_, err := g.ShowMessageRequest(ctx, messageParams)
		assert.Error(t, err)
	})
	t.Run("invalid context", func(t *testing.T) {
		_, err := g.ShowMessageRequest(context.Background(), messageParams)
		assert.Error(t, err)
	})
}

func TestApplyEdit(t *testing.T) {
	g, mockConn, ctx := getTestGateway(t)

	applyEditParams := &protocol.ApplyWorkspaceEditParams{
		Label: "sample",
		Edit:  protocol.WorkspaceEdit{},
	}

	t.Run("call success", func(t *testing.T) {
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWorkspaceApplyEdit), gomock.Eq(applyEditParams), gomock.Any()).Return(jsonrpc2.NewNumberID(5), nil)
		_, err := g.ApplyEdit(ctx, applyEditParams)
		assert.NoError(t, err)
	})
	t.Run("call failure", func(t *testing.T) {
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWorkspaceApplyEdit), gomock.Eq(applyEditParams), gomock.Any()).Return(jsonrpc2.NewNumberID(5), errors.New("error"))
		_, err := g.ApplyEdit(ctx, applyEditParams)
		assert.Error(t, err)
	})
	t.Run("client not found", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), entity.SessionContextKey, factory.UUID())
		_, err := g.ApplyEdit(ctx, applyEditParams)
		assert.Error(t, err)
	})
}

func TestShowWaitingForUserSelection(t *testing.T) {
	id := factory.UUID()
	ctx := context.WithValue(context.Background(), entity.SessionContextKey, id)
	ctrl := gomock.NewController(t)
	mockConn := jsonrpc2mock.NewMockConn(ctrl)

	g := gateway{
		logger:      zap.NewNop(),
		clients:     make(map[uuid.UUID]protocol.Client),
		connections: make(map[uuid.UUID]jsonrpc2.Conn),
	}

	var conn jsonrpc2.Conn = mockConn
	require.NoError(t, g.RegisterClient(ctx, id, &conn))

	t.Run("success without delay", func(t *testing.T) {
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWorkDoneProgressCreate), gomock.Any(), gomock.Any()).Return(jsonrpc2.NewNumberID(4), nil)
		mockConn.EXPECT().Notify(gomock.Eq(ctx), gomock.Eq(protocol.MethodProgress), gomock.Any()).Return(nil).Times(2)
		done, err := g.showWaitingForUserSelection(ctx)
		require.NoError(t, err)
		done()
	})

	t.Run("success with delay", func(t *testing.T) {
		original := _timeoutUserSelectionMoreInfo
		_timeoutUserSelectionMoreInfo = 10 * time.Millisecond
		defer func() { _timeoutUserSelectionMoreInfo = original }()

		reported := make(chan struct{})
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWorkDoneProgressCreate), gomock.Any(), gomock.Any()).Return(jsonrpc2.NewNumberID(4), nil)
		gomock.InOrder(
			mockConn.EXPECT().Notify(gomock.Eq(ctx), gomock.Eq(protocol.MethodProgress), gomock.Any()).Return(nil),
			mockConn.EXPECT().Notify(gomock.Eq(ctx), gomock.Eq(protocol.MethodProgress), gomock.Any()).DoAndReturn(func(context.Context, string, interface{}) error {
				close(reported)
				return nil
			}),
			mockConn.EXPECT().Notify(gomock.Eq(ctx), gomock.Eq(protocol.MethodProgress), gomock.Any()).Return(nil),
		)
		done, err := g.showWaitingForUserSelection(ctx)
		require.NoError(t, err)
		<-reported
		done()
	})

	t.Run("create progress error", func(t *testing.T) {
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWorkDoneProgressCreate), gomock.Any(), gomock.Any()).Return(jsonrpc2.NewNumberID(4), errors.New("sample"))
		_, err := g.showWaitingForUserSelection(ctx)
		assert.Error(t, err)
	})

	t.Run("start progress error", func(t *testing.T) {
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWorkDoneProgressCreate), gomock.Any(), gomock.Any()).Return(jsonrpc2.NewNumberID(4), nil)
		mockConn.EXPECT().Notify(gomock.Eq(ctx), gomock.Eq(protocol.MethodProgress), gomock.Any()).Return(errors.New("sample"))
		_, err := g.showWaitingForUserSelection(ctx)
		assert.Error(t, err)
	})
}

func TestGetLogMessageWriter(t *testing.T) {
	g, _, ctx := getTestGateway(t)

	t.Run("success", func(t *testing.T) {
		writer, err := g.GetLogMessageWriter(ctx, "sample")
		assert.NoError(t, err)
		assert.NotNil(t, writer)
	})
	t.Run("invalid context", func(t *testing.T) {
		writer, err := g.GetLogMessageWriter(context.Background(), "sample")
		assert.Error(t, err)
		assert.Nil(t, writer)
	})
}

func TestWrite(t *testing.T) {
	g, mockConn, ctx := getTestGateway(t)

	sampleMsg := "sample message"
	prefix := "chat"
	expectedLogMessageParams := &protocol.LogMessageParams{
		Message: fmt.Sprintf("[%s] %s", prefix, sampleMsg),
		Type:    protocol.MessageTypeLog,
	}

	t.Run("notification success", func(t *testing.T) {
		mockConn.EXPECT().Notify(gomock.Eq(ctx), gomock.Eq(protocol.MethodWindowLogMessage), gomock.Eq(expectedLogMessageParams)).Return(nil)
		writer, err := g.GetLogMessageWriter(ctx, prefix)
		require.NoError(t, err)
		n, err := writer.Write([]byte(sampleMsg + "\n"))
		assert.NoError(t, err)
		assert.Equal(t, len(sampleMsg)+1, n)
	})
	t.Run("notification failure", func(t *testing.T) {
		mockConn.EXPECT().Notify(gomock.Eq(ctx), gomock.Eq(protocol.MethodWindowLogMessage), gomock.Eq(expectedLogMessageParams)).Return(errors.New("sample"))
		writer, err := g.GetLogMessageWriter(ctx, prefix)
		require.NoError(t, err)
		n, err := writer.Write([]byte(sampleMsg))
		assert.Error(t, err)
		assert.Equal(t, 0, n)
	})
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func getTestGateway(t *testing.T) (Gateway, *jsonrpc2mock.MockConn, context.Context) {
	id := factory.UUID()
	ctx := context.WithValue(context.Background(), entity.SessionContextKey, id)
	ctrl := gomock.NewController(t)

	mockConn := jsonrpc2mock.NewMockConn(ctrl)
	var conn jsonrpc2.Conn = mockConn
	g := New(zap.NewNop())
	require.NoError(t, g.RegisterClient(ctx, id, &conn))
	return g, mockConn, ctx
}
