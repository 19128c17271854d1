package actionsllm

import (
	"context"
	"testing"

	action "github.com/ghostline-dev/ghostline/src/ghostline/controller/ai-actions/action"
	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	"github.com/ghostline-dev/ghostline/src/ghostline/factory"
	"github.com/ghostline-dev/ghostline/src/ghostline/gateway/ide-client/ideclientmock"
	"github.com/ghostline-dev/ghostline/src/ghostline/gateway/llm/llmmock"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally/v4"
	"go.lsp.dev/protocol"
	"go.uber.org/mock/gomock"
)

func TestIndentBlock(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		indent string
		want   string
	}{
		{name: "single line", text: "// Add adds.", indent: "\t", want: "\t// Add adds."},
		{name: "keeps relative indent", text: "  /**\n   * Add adds.\n   */", indent: "    ", want: "    /**\n     * Add adds.\n     */"},
		{name: "blank lines stay empty", text: "# a\n\n# b", indent: "  ", want: "  # a\n\n  # b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, indentBlock(tt.text, tt.indent))
		})
	}
}

func TestDocumentExecute(t *testing.T) {
	doc := factory.TextDocumentItem("/ws/calc.go", "go", "type Calc struct{}\n\n\tfunc (c Calc) Add(a, b int) int { return a + b }\n")
	args := entity.ActionArgs{
		URI:   doc.URI,
		Range: protocol.Range{Start: factory.Position(2, 1), End: factory.Position(2, 47)},
	}

	newParams := func(t *testing.T) (*action.ExecuteParams, *llmmock.MockGateway, *ideclientmock.MockGateway) {
		ctrl := gomock.NewController(t)
		llm := llmmock.NewMockGateway(ctrl)
		ide := ideclientmock.NewMockGateway(ctrl)
		return &action.ExecuteParams{
			IdeGateway: ide,
			LLM:        llm,
			Telemetry:  telemetry.New(telemetry.Params{Stats: tally.NoopScope}),
			Document:   doc,
			Selection:  "func (c Calc) Add(a, b int) int { return a + b }",
		}, llm, ide
	}

	t.Run("inserts above selection", func(t *testing.T) {
		params, llm, ide := newParams(t)
		llm.EXPECT().CallModel(gomock.Any(), gomock.Any(), gomock.Any()).Return(entity.ModelResult{Text: "```go\n// Add returns the sum of a and b.\n```"})
		ide.EXPECT().ApplyEdit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, p *protocol.ApplyWorkspaceEditParams) (*protocol.ApplyWorkspaceEditResponse, error) {
				require.Len(t, p.Edit.DocumentChanges, 1)
				assert.Equal(t, []protocol.TextEdit{{
					Range:   protocol.Range{Start: factory.Position(2, 0), End: factory.Position(2, 0)},
					NewText: "\t// Add returns the sum of a and b.\n",
				}}, p.Edit.DocumentChanges[0].Edits)
				return &protocol.ApplyWorkspaceEditResponse{Applied: true}, nil
			})

		assert.NoError(t, (&ActionDocument{}).Execute(context.Background(), params, args))
	})

	t.Run("edit rejected", func(t *testing.T) {
		params, llm, ide := newParams(t)
		llm.EXPECT().CallModel(gomock.Any(), gomock.Any(), gomock.Any()).Return(entity.ModelResult{Text: "// Add adds."})
		ide.EXPECT().ApplyEdit(gomock.Any(), gomock.Any()).Return(&protocol.ApplyWorkspaceEditResponse{Applied: false, FailureReason: "stale"}, nil)
		ide.EXPECT().ShowMessage(gomock.Any(), &protocol.ShowMessageParams{
			Type:    protocol.MessageTypeWarning,
			Message: "The documentation was not inserted: stale",
		}).Return(nil)

		assert.NoError(t, (&ActionDocument{}).Execute(context.Background(), params, args))
	})

	t.Run("empty response", func(t *testing.T) {
		params, llm, ide := newParams(t)
		llm.EXPECT().CallModel(gomock.Any(), gomock.Any(), gomock.Any()).Return(entity.ModelResult{Text: "  \n"})
		ide.EXPECT().ShowMessage(gomock.Any(), gomock.Any()).Return(nil)

		assert.NoError(t, (&ActionDocument{}).Execute(context.Background(), params, args))
	})
}
