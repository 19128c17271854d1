package entity

import (
	"fmt"
	"sort"
	"strings"
)

// ProviderName identifies an LLM vendor.
type ProviderName string

const (
	ProviderOpenAI    ProviderName = "openai"
	ProviderAnthropic ProviderName = "anthropic"
	ProviderGoogle    ProviderName = "google"
	ProviderCustom    ProviderName = "custom"
)

// Providers lists every provider in a stable order.
var Providers = []ProviderName{ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderCustom}

// ParseProvider returns the provider with the given name, ignoring case.
func ParseProvider(name string) (ProviderName, error) {
	for _, p := range Providers {
		if strings.EqualFold(string(p), strings.TrimSpace(name)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q, expected one of %v", name, Providers)
}

// SecretName is the logical name under which the provider's API key is stored.
func (p ProviderName) SecretName() string {
	return fmt.Sprintf("ghostline.%s.apiKey", p)
}

// EnvVar is the environment variable that overrides the stored API key.
func (p ProviderName) EnvVar() string {
	return fmt.Sprintf("GHOSTLINE_%s_API_KEY", strings.ToUpper(string(p)))
}

// ModelDescriptor describes a model that requests can be sent to.
type ModelDescriptor struct {
	ID              string
	Provider        ProviderName
	MaxTokens       int
	ContextWindow   int
	DefaultEndpoint string
}

// SecretName is the logical name of the API key used for this model.
func (m ModelDescriptor) SecretName() string {
	return m.Provider.SecretName()
}

const (
	_openAIEndpoint    = "https://api.openai.com/v1"
	_anthropicEndpoint = "https://api.anthropic.com/v1"
	_googleEndpoint    = "https://generativelanguage.googleapis.com/"
)

// DefaultModelID is used when the settings do not name a model.
const DefaultModelID = "gpt-4o-mini"

var _models = map[string]ModelDescriptor{
	"gpt-4o-mini": {
		ID: "gpt-4o-mini", Provider: ProviderOpenAI, MaxTokens: 16384, ContextWindow: 128000, DefaultEndpoint: _openAIEndpoint,
	},
	"gpt-4o": {
		ID: "gpt-4o", Provider: ProviderOpenAI, MaxTokens: 16384, ContextWindow: 128000, DefaultEndpoint: _openAIEndpoint,
	},
	"claude-3-5-sonnet-latest": {
		ID: "claude-3-5-sonnet-latest", Provider: ProviderAnthropic, MaxTokens: 8192, ContextWindow: 200000, DefaultEndpoint: _anthropicEndpoint,
	},
	"claude-3-5-haiku-latest": {
		ID: "claude-3-5-haiku-latest", Provider: ProviderAnthropic, MaxTokens: 8192, ContextWindow: 200000, DefaultEndpoint: _anthropicEndpoint,
	},
	"gemini-1.5-pro": {
		ID: "gemini-1.5-pro", Provider: ProviderGoogle, MaxTokens: 8192, ContextWindow: 2000000, DefaultEndpoint: _googleEndpoint,
	},
	"gemini-2.0-flash": {
		ID: "gemini-2.0-flash", Provider: ProviderGoogle, MaxTokens: 8192, ContextWindow: 1000000, DefaultEndpoint: _googleEndpoint,
	},
	"custom": {
		ID: "custom", Provider: ProviderCustom, MaxTokens: 4096, ContextWindow: 32000,
	},
}

// LookupModel returns the descriptor for the given model id.
func LookupModel(id string) (ModelDescriptor, bool) {
	m, ok := _models[id]
	return m, ok
}

// ModelIDs returns every known model id, sorted.
func ModelIDs() []string {
	ids := make([]string, 0, len(_models))
	for id := range _models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ModelRequest is a provider neutral prompt.
type ModelRequest struct {
	SystemPrompt string
	Messages     []ChatMessage
	MaxTokens    int
	Temperature  float64
	// Endpoint overrides the endpoint for this call only.
	Endpoint string
	// CustomEndpoint is the user's configured endpoint, used by the custom provider.
	CustomEndpoint string
}

// ModelResult is the outcome of a model call. Any failure is reported in Error.
type ModelResult struct {
	Text  string `json:"text"`
	Usage *Usage `json:"usage,omitempty"`
	Error string `json:"error,omitempty"`
	// Misconfigured is set when the call was refused before any network request, such as for a missing API key.
	Misconfigured bool `json:"-"`
}

// Failed reports whether the call produced an error.
func (r ModelResult) Failed() bool {
	return r.Error != ""
}
