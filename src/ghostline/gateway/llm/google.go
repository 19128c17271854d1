package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	"google.golang.org/genai"
)

const _googleEmbeddingModel = "text-embedding-004"

type googleProvider struct {
	httpClient *http.Client
}

func (p *googleProvider) Name() entity.ProviderName {
	return entity.ProviderGoogle
}

func (p *googleProvider) client(ctx context.Context, apiKey, endpoint string) (*genai.Client, error) {
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	}
	if endpoint != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: endpoint}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating google client: %w", err)
	}
	return client, nil
}

func (p *googleProvider) Complete(ctx context.Context, call Call) (Completion, error) {
	client, err := p.client(ctx, call.APIKey, call.Endpoint)
	if err != nil {
		return Completion{}, err
	}

	contents := make([]*genai.Content, 0, len(call.Request.Messages))
	for _, msg := range call.Request.Messages {
		switch msg.Role {
		case entity.RoleSystem:
			continue
		case entity.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(call.Request.Temperature)),
		MaxOutputTokens: int32(maxTokens(call)),
	}
	if call.Request.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(call.Request.SystemPrompt, genai.RoleUser)
	}

	resp, err := client.Models.GenerateContent(ctx, call.Model.ID, contents, cfg)
	if err != nil {
		return Completion{}, p.normalizeError(err)
	}

	result := Completion{Text: resp.Text()}
	if resp.UsageMetadata != nil {
		result.Usage = &entity.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return result, nil
}

func (p *googleProvider) Embed(ctx context.Context, call EmbedCall) ([][]float32, error) {
	client, err := p.client(ctx, call.APIKey, call.Endpoint)
	if err != nil {
		return nil, err
	}

	contents := make([]*genai.Content, len(call.Texts))
	for i, text := range call.Texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	resp, err := client.Models.EmbedContent(ctx, _googleEmbeddingModel, contents, &genai.EmbedContentConfig{
		TaskType: "RETRIEVAL_DOCUMENT",
	})
	if err != nil {
		return nil, p.normalizeError(err)
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func (p *googleProvider) normalizeError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return &StatusError{Provider: p.Name(), Code: apiErr.Code, Body: apiErr.Message}
	}
	return err
}
