package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	"github.com/tidwall/gjson"
)

// _customTextPaths are tried in order to locate the generated text in an unknown response shape.
var _customTextPaths = []string{
	"choices.0.message.content",
	"choices.0.text",
	"content.0.text",
	"candidates.0.content.parts.0.text",
	"response",
	"output",
	"text",
}

type customProvider struct {
	httpClient *http.Client
}

type customRequest struct {
	Model       string               `json:"model"`
	Messages    []entity.ChatMessage `json:"messages"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature float64              `json:"temperature"`
}

func (p *customProvider) Name() entity.ProviderName {
	return entity.ProviderCustom
}

func (p *customProvider) Complete(ctx context.Context, call Call) (Completion, error) {
	if call.Endpoint == "" {
		return Completion{}, errors.New("no custom endpoint configured, set ghostline.customEndpoint")
	}

	messages := make([]entity.ChatMessage, 0, len(call.Request.Messages)+1)
	if call.Request.SystemPrompt != "" {
		messages = append(messages, entity.ChatMessage{Role: entity.RoleSystem, Content: call.Request.SystemPrompt})
	}
	messages = append(messages, call.Request.Messages...)

	payload, err := json.Marshal(customRequest{
		Model:       call.Model.ID,
		Messages:    messages,
		MaxTokens:   maxTokens(call),
		Temperature: call.Request.Temperature,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("encoding custom request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, call.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return Completion{}, fmt.Errorf("creating custom request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+call.APIKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Completion{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, fmt.Errorf("reading custom response: %w", err)
	}
	if !isSuccess(resp.StatusCode) {
		return Completion{}, &StatusError{Provider: p.Name(), Code: resp.StatusCode, Body: string(respBody)}
	}
	if !gjson.ValidBytes(respBody) {
		return Completion{}, errors.New("custom endpoint returned invalid JSON")
	}

	result := Completion{Text: extractCustomText(respBody)}
	if usage := gjson.GetBytes(respBody, "usage"); usage.Exists() {
		result.Usage = &entity.Usage{
			PromptTokens:     int(usage.Get("prompt_tokens").Int()),
			CompletionTokens: int(usage.Get("completion_tokens").Int()),
			TotalTokens:      int(usage.Get("total_tokens").Int()),
		}
	}
	return result, nil
}

// extractCustomText returns the first string found at one of the known response paths.
func extractCustomText(body []byte) string {
	for _, path := range _customTextPaths {
		if v := gjson.GetBytes(body, path); v.Type == gjson.String {
			return v.String()
		}
	}
	return ""
}
