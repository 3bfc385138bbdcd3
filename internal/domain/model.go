package domain

// ModelInfo describes one entry of the model catalog.
type ModelInfo struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"name" yaml:"name"`
	Provider    string `json:"provider" yaml:"provider"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// AdapterInfo is what an adapter reports about itself for introspection.
type AdapterInfo struct {
	Provider   string           `json:"provider"`
	Model      string           `json:"model,omitempty"`
	Parameters GenerationParams `json:"parameters"`
}

// GenerationParams holds optional sampling parameters. A nil field means
// "use the adapter default".
type GenerationParams struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// Merge returns p with every missing field taken from defaults.
func (p GenerationParams) Merge(defaults GenerationParams) GenerationParams {
	out := p
	if out.Temperature == nil {
		out.Temperature = defaults.Temperature
	}
	if out.TopP == nil {
		out.TopP = defaults.TopP
	}
	if out.TopK == nil {
		out.TopK = defaults.TopK
	}
	if out.MaxTokens == nil {
		out.MaxTokens = defaults.MaxTokens
	}
	return out
}

// Turn is one role/content pair of the history sent to a provider.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NormalizedRequest is the provider-agnostic generation request.
type NormalizedRequest struct {
	Model          string
	CurrentMessage string
	History        []Turn
	SystemPrompt   string
	Params         GenerationParams
}
