package llm

import (
	"net/http"
	"strings"
	"time"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

// ProviderOptions configures an HTTP-backed adapter.
type ProviderOptions struct {
	// Name is the provider name reported in errors and Describe.
	Name         string
	BaseURL      string
	APIKey       string
	DefaultModel string
	Defaults     domain.GenerationParams
	Timeout      time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// providerBase holds what every HTTP adapter shares.
type providerBase struct {
	name         string
	baseURL      string
	apiKey       string
	defaultModel string
	defaults     domain.GenerationParams
	httpClient   *http.Client
}

func newProviderBase(opts ProviderOptions) providerBase {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return providerBase{
		name:         opts.Name,
		baseURL:      strings.TrimSuffix(opts.BaseURL, "/"),
		apiKey:       opts.APIKey,
		defaultModel: opts.DefaultModel,
		defaults:     opts.Defaults,
		httpClient:   client,
	}
}

func (p *providerBase) model(req *domain.NormalizedRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return p.defaultModel
}

func (p *providerBase) params(req *domain.NormalizedRequest) domain.GenerationParams {
	return req.Params.Merge(p.defaults)
}

// Describe reports the provider name and active parameters.
func (p *providerBase) Describe() domain.AdapterInfo {
	return domain.AdapterInfo{
		Provider:   p.name,
		Model:      p.defaultModel,
		Parameters: p.defaults,
	}
}
