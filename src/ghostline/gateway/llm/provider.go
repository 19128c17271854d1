package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
)

// Provider sends a normalized request to a single LLM vendor.
type Provider interface {
	Name() entity.ProviderName
	Complete(ctx context.Context, call Call) (Completion, error)
}

// Embedder is implemented by providers that can produce embeddings.
type Embedder interface {
	Embed(ctx context.Context, call EmbedCall) ([][]float32, error)
}

// Call is a fully resolved request to a provider.
type Call struct {
	Model    entity.ModelDescriptor
	APIKey   string
	Endpoint string
	Request  entity.ModelRequest
}

// EmbedCall is a fully resolved embedding request.
type EmbedCall struct {
	APIKey   string
	Endpoint string
	Texts    []string
}

// Completion is the normalized response of a provider.
type Completion struct {
	Text  string
	Usage *entity.Usage
}

// StatusError is returned when a provider responds with a non-2xx status.
type StatusError struct {
	Provider entity.ProviderName
	Code     int
	Body     string
}

// Error is an implementation of the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request failed with status %d: %s", e.Provider, e.Code, e.Body)
}

func maxTokens(call Call) int {
	if call.Request.MaxTokens > 0 {
		return call.Request.MaxTokens
	}
	return call.Model.MaxTokens
}

func isSuccess(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}
