package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	ghostlineerrors "github.com/ghostline-dev/ghostline/src/ghostline/internal/errors"
	"github.com/ghostline-dev/ghostline/src/ghostline/repository/secret"
	"github.com/uber-go/tally/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:generate mockgen -destination llmmock/llm_mock.go -package llmmock . Gateway

// Gateway sends prompts to the LLM provider that serves a given model.
type Gateway interface {
	// CallModel never returns an error. Any failure, including a panic inside a provider, is reported in ModelResult.Error.
	CallModel(ctx context.Context, modelID string, req entity.ModelRequest) entity.ModelResult
	// Embed returns one vector per text using the embedding model of the provider that serves modelID.
	Embed(ctx context.Context, modelID string, texts []string) ([][]float32, error)
}

// Params are inbound parameters to initialize a new LLM gateway.
type Params struct {
	fx.In

	Secrets secret.Repository
	Logger  *zap.SugaredLogger
	Stats   tally.Scope
}

type gateway struct {
	secrets   secret.Repository
	logger    *zap.SugaredLogger
	stats     tally.Scope
	providers map[entity.ProviderName]Provider
}

// New creates a gateway with one provider per supported vendor.
func New(p Params) Gateway {
	return newGateway(p, http.DefaultClient)
}

func newGateway(p Params, httpClient *http.Client) *gateway {
	providers := []Provider{
		&openAIProvider{httpClient: httpClient},
		&anthropicProvider{httpClient: httpClient},
		&googleProvider{httpClient: httpClient},
		&customProvider{httpClient: httpClient},
	}

	g := &gateway{
		secrets:   p.Secrets,
		logger:    p.Logger,
		stats:     p.Stats.SubScope("llm"),
		providers: make(map[entity.ProviderName]Provider, len(providers)),
	}
	for _, provider := range providers {
		g.providers[provider.Name()] = provider
	}
	return g
}

func (g *gateway) CallModel(ctx context.Context, modelID string, req entity.ModelRequest) (result entity.ModelResult) {
	model, ok := entity.LookupModel(modelID)
	if !ok {
		return entity.ModelResult{Error: (&ghostlineerrors.ModelNotFoundError{ModelID: modelID}).Error(), Misconfigured: true}
	}

	provider, ok := g.providers[model.Provider]
	if !ok {
		return entity.ModelResult{Error: fmt.Sprintf("no provider registered for %s", model.Provider)}
	}

	apiKey, err := g.secrets.Get(ctx, model.Provider)
	if err != nil {
		return entity.ModelResult{Error: err.Error(), Misconfigured: ghostlineerrors.IsConfigurationError(err)}
	}

	call := Call{
		Model:    model,
		APIKey:   apiKey,
		Endpoint: resolveEndpoint(model, req),
		Request:  req,
	}

	scope := g.stats.Tagged(map[string]string{"provider": string(model.Provider)})
	scope.Counter("requests").Inc(1)
	start := time.Now()
	defer func() {
		scope.Timer("latency").Record(time.Since(start))
		if r := recover(); r != nil {
			g.logger.Errorf("recovered panic in %s provider: %v", model.Provider, r)
			result = entity.ModelResult{Error: fmt.Sprintf("%s request failed: %v", model.Provider, r)}
		}
		if result.Failed() {
			scope.Counter("errors").Inc(1)
		}
	}()

	completion, err := provider.Complete(ctx, call)
	if err != nil {
		return entity.ModelResult{Error: errorMessage(model.Provider, err)}
	}
	return entity.ModelResult{Text: completion.Text, Usage: completion.Usage}
}

func (g *gateway) Embed(ctx context.Context, modelID string, texts []string) (vectors [][]float32, err error) {
	if len(texts) == 0 {
		return nil, nil
	}

	model, ok := entity.LookupModel(modelID)
	if !ok {
		return nil, &ghostlineerrors.ModelNotFoundError{ModelID: modelID}
	}

	embedder, ok := g.providers[model.Provider].(Embedder)
	if !ok {
		return nil, fmt.Errorf("embeddings are not supported by the %s provider", model.Provider)
	}

	apiKey, err := g.secrets.Get(ctx, model.Provider)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			g.logger.Errorf("recovered panic in %s embeddings: %v", model.Provider, r)
			vectors, err = nil, fmt.Errorf("%s request failed: %v", model.Provider, r)
		}
	}()

	g.stats.Tagged(map[string]string{"provider": string(model.Provider)}).Counter("embeddings").Inc(int64(len(texts)))
	vectors, err = embedder.Embed(ctx, EmbedCall{
		APIKey:   apiKey,
		Endpoint: model.DefaultEndpoint,
		Texts:    texts,
	})
	if err != nil {
		return nil, errors.New(errorMessage(model.Provider, err))
	}
	return vectors, nil
}

// resolveEndpoint picks the per-call endpoint, then the user's custom endpoint for the custom provider, then the model default.
func resolveEndpoint(model entity.ModelDescriptor, req entity.ModelRequest) string {
	if req.Endpoint != "" {
		return req.Endpoint
	}
	if model.Provider == entity.ProviderCustom && req.CustomEndpoint != "" {
		return req.CustomEndpoint
	}
	return model.DefaultEndpoint
}

func errorMessage(provider entity.ProviderName, err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Error()
	}
	return fmt.Sprintf("%s request failed: %v", provider, err)
}
