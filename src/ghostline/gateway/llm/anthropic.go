package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
)

const (
	_anthropicVersion       = "2023-06-01"
	_anthropicMessagesPath  = "/messages"
	_headerAnthropicVersion = "anthropic-version"
	_headerAPIKey           = "x-api-key"
)

type anthropicProvider struct {
	httpClient *http.Client
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *anthropicProvider) Name() entity.ProviderName {
	return entity.ProviderAnthropic
}

func (p *anthropicProvider) Complete(ctx context.Context, call Call) (Completion, error) {
	body := anthropicRequest{
		Model:       call.Model.ID,
		MaxTokens:   maxTokens(call),
		System:      call.Request.SystemPrompt,
		Temperature: call.Request.Temperature,
		Messages:    make([]anthropicMessage, 0, len(call.Request.Messages)),
	}
	for _, msg := range call.Request.Messages {
		// The system prompt travels in its own field.
		if msg.Role == entity.RoleSystem {
			continue
		}
		body.Messages = append(body.Messages, anthropicMessage{Role: string(msg.Role), Content: msg.Content})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Completion{}, fmt.Errorf("encoding anthropic request: %w", err)
	}

	url := strings.TrimSuffix(call.Endpoint, "/") + _anthropicMessagesPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Completion{}, fmt.Errorf("creating anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(_headerAPIKey, call.APIKey)
	req.Header.Set(_headerAnthropicVersion, _anthropicVersion)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Completion{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, fmt.Errorf("reading anthropic response: %w", err)
	}
	if !isSuccess(resp.StatusCode) {
		return Completion{}, &StatusError{Provider: p.Name(), Code: resp.StatusCode, Body: string(respBody)}
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Completion{}, fmt.Errorf("decoding anthropic response: %w", err)
	}

	result := Completion{
		Usage: &entity.Usage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
	}
	for _, block := range parsed.Content {
		if block.Type == "text" {
			result.Text = block.Text
			break
		}
	}
	return result, nil
}
