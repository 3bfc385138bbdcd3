package llm

import (
	"fmt"
	"log/slog"

	"github.com/spaceboy202105/chatbot-test/internal/config"
)

// providerSpec describes how one configured provider is exposed.
type providerSpec struct {
	keys []string
	cfg  config.ProviderConfig
	new  func(ProviderOptions) ModelAdapter
}

// NewRegistryFromConfig builds and seals the registry for cfg. In MOCK mode
// every provider family is served by the mock adapter.
func NewRegistryFromConfig(cfg *config.Config, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	specs := []providerSpec{
		{keys: []string{"openai", "gpt"}, cfg: cfg.OpenAI, new: func(o ProviderOptions) ModelAdapter { return NewOpenAIAdapter(o) }},
		{keys: []string{"anthropic", "claude"}, cfg: cfg.Anthropic, new: func(o ProviderOptions) ModelAdapter { return NewAnthropicAdapter(o) }},
		{keys: []string{"google", "gemini"}, cfg: cfg.Gemini, new: func(o ProviderOptions) ModelAdapter { return NewGeminiAdapter(o) }},
		{keys: []string{"deepseek"}, cfg: cfg.Deepseek, new: func(o ProviderOptions) ModelAdapter { return NewOpenAIAdapter(o) }},
		{keys: []string{"qwen"}, cfg: cfg.Qwen, new: func(o ProviderOptions) ModelAdapter { return NewQwenAdapter(o) }},
	}

	reg := NewRegistry()
	if cfg.MockMode() {
		logger.Info("mock mode enabled, using mock adapter for every provider", "env", config.EnvMode)
		mock := NewMockAdapter("mock", cfg.MockChunkDelay)
		if err := reg.Register("mock", mock); err != nil {
			return nil, err
		}
		for _, spec := range specs {
			for _, key := range spec.keys {
				if err := reg.Register(key, mock); err != nil {
					return nil, err
				}
			}
		}
	} else {
		for _, spec := range specs {
			if !spec.cfg.Enabled() {
				continue
			}
			adapter := spec.new(ProviderOptions{
				Name:         spec.keys[0],
				BaseURL:      spec.cfg.BaseURL,
				APIKey:       spec.cfg.APIKey,
				DefaultModel: spec.cfg.DefaultModel,
				Defaults:     cfg.GenerationDefaults(),
				Timeout:      cfg.LLMTimeout,
			})
			for _, key := range spec.keys {
				if err := reg.Register(key, adapter); err != nil {
					return nil, err
				}
			}
			logger.Info("registered provider", "provider", spec.keys[0], "base_url", spec.cfg.BaseURL)
		}
	}

	for _, model := range cfg.Catalog {
		if err := reg.AddModel(model); err != nil {
			logger.Warn("skipping catalog model", "model", model.ID, "error", err)
		}
	}
	reg.Seal()

	if len(reg.ListModels()) == 0 && len(reg.Describe()) == 0 {
		return nil, fmt.Errorf("no provider configured: set a provider API key or %s=%s", config.EnvMode, config.ModeMock)
	}
	return reg, nil
}
