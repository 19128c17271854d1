package llm

import (
	"context"
	"errors"
	"net/http"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	openai "github.com/sashabaranov/go-openai"
)

const _openAIEmbeddingModel = openai.SmallEmbedding3

type openAIProvider struct {
	httpClient *http.Client
}

func (p *openAIProvider) Name() entity.ProviderName {
	return entity.ProviderOpenAI
}

func (p *openAIProvider) client(apiKey, endpoint string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if endpoint != "" {
		cfg.BaseURL = endpoint
	}
	if p.httpClient != nil {
		cfg.HTTPClient = p.httpClient
	}
	return openai.NewClientWithConfig(cfg)
}

func (p *openAIProvider) Complete(ctx context.Context, call Call) (Completion, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(call.Request.Messages)+1)
	if call.Request.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: call.Request.SystemPrompt,
		})
	}
	for _, msg := range call.Request.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	resp, err := p.client(call.APIKey, call.Endpoint).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       call.Model.ID,
		Messages:    messages,
		MaxTokens:   maxTokens(call),
		Temperature: float32(call.Request.Temperature),
	})
	if err != nil {
		return Completion{}, p.normalizeError(err)
	}

	result := Completion{
		Usage: &entity.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) > 0 {
		result.Text = resp.Choices[0].Message.Content
	}
	return result, nil
}

func (p *openAIProvider) Embed(ctx context.Context, call EmbedCall) ([][]float32, error) {
	resp, err := p.client(call.APIKey, call.Endpoint).CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: call.Texts,
		Model: _openAIEmbeddingModel,
	})
	if err != nil {
		return nil, p.normalizeError(err)
	}

	vectors := make([][]float32, len(call.Texts))
	for _, item := range resp.Data {
		if item.Index >= 0 && item.Index < len(vectors) {
			vectors[item.Index] = item.Embedding
		}
	}
	return vectors, nil
}

// normalizeError maps go-openai's status carrying errors to a StatusError.
func (p *openAIProvider) normalizeError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &StatusError{Provider: p.Name(), Code: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &StatusError{Provider: p.Name(), Code: reqErr.HTTPStatusCode, Body: string(reqErr.Body)}
	}
	return err
}
