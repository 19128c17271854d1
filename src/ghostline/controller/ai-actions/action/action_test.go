package action

import (
	"context"
	"testing"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	"github.com/ghostline-dev/ghostline/src/ghostline/gateway/ide-client/ideclientmock"
	"github.com/ghostline-dev/ghostline/src/ghostline/gateway/llm/llmmock"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/uber-go/tally/v4"
	"go.lsp.dev/protocol"
	"go.uber.org/mock/gomock"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "plain", text: "  x := 1\n\n", want: "x := 1"},
		{name: "fenced", text: "```go\nx := 1\ny := 2\n```", want: "x := 1\ny := 2"},
		{name: "leading prose", text: "Here you go:\n```go\nx := 1\n```\nDone.", want: "x := 1"},
		{name: "unterminated", text: "```\nx := 1", want: "x := 1"},
		{name: "single line fence", text: "```x```", want: "```x```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFences(tt.text))
		})
	}
}

func TestComplete(t *testing.T) {
	ctrl := gomock.NewController(t)
	llm := llmmock.NewMockGateway(ctrl)
	p := &ExecuteParams{
		LLM:       llm,
		Telemetry: telemetry.New(telemetry.Params{Stats: tally.NoopScope}),
		Settings:  entity.Settings{DefaultModel: "claude-3-5-haiku-latest", CustomEndpoint: "http://localhost:8080"},
		Config:    Config{MaxTokens: 100, Temperature: 0.3},
	}

	llm.EXPECT().CallModel(gomock.Any(), "claude-3-5-haiku-latest", entity.ModelRequest{
		SystemPrompt:   "system",
		Messages:       []entity.ChatMessage{{Role: entity.RoleUser, Content: "content"}},
		MaxTokens:      100,
		Temperature:    0.3,
		CustomEndpoint: "http://localhost:8080",
	}).Return(entity.ModelResult{Text: "ok", Usage: &entity.Usage{PromptTokens: 7}})

	result := p.Complete(context.Background(), "system", "content")
	assert.Equal(t, "ok", result.Text)
	assert.Equal(t, int64(7), p.Telemetry.Snapshot()[telemetry.MetricPromptTokens])
}

func TestReportFailure(t *testing.T) {
	t.Run("transport error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		ide := ideclientmock.NewMockGateway(ctrl)
		p := &ExecuteParams{IdeGateway: ide}
		ide.EXPECT().ShowMessage(gomock.Any(), &protocol.ShowMessageParams{
			Type:    protocol.MessageTypeError,
			Message: "Explain failed: boom",
		}).Return(nil)

		assert.NoError(t, p.ReportFailure(context.Background(), "Explain", entity.ModelResult{Error: "boom"}))
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := &ExecuteParams{}

		assert.ErrorIs(t, p.ReportFailure(ctx, "Explain", entity.ModelResult{Error: "boom"}), context.Canceled)
	})
}

func TestCodeBlock(t *testing.T) {
	p := &ExecuteParams{
		Document:  protocol.TextDocumentItem{LanguageID: "python"},
		Selection: "print(1)\n",
	}
	assert.Equal(t, "```python\nprint(1)\n```", p.CodeBlock())
}
