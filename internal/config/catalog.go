package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

// catalogFile is the on-disk shape of a model catalog.
//
//	models:
//	  - id: gpt-4
//	    name: GPT-4
//	    provider: openai
//	    description: Most capable GPT model
type catalogFile struct {
	Models []domain.ModelInfo `yaml:"models"`
}

// DefaultCatalog returns the built-in model catalog.
func DefaultCatalog() []domain.ModelInfo {
	return []domain.ModelInfo{
		{ID: "gpt-3.5-turbo", DisplayName: "GPT-3.5 Turbo", Provider: "openai", Description: "Fast and cost-effective general purpose model"},
		{ID: "gpt-4", DisplayName: "GPT-4", Provider: "openai", Description: "Large model with stronger reasoning"},
		{ID: "gpt-4-turbo", DisplayName: "GPT-4 Turbo", Provider: "openai", Description: "Faster GPT-4 variant with a larger context window"},
		{ID: "gemini-pro", DisplayName: "Gemini Pro", Provider: "google", Description: "Google multimodal model"},
		{ID: "deepseek-chat", DisplayName: "DeepSeek Chat", Provider: "deepseek", Description: "DeepSeek conversational model"},
		{ID: "qwen-turbo", DisplayName: "Qwen Turbo", Provider: "qwen", Description: "Alibaba Qwen fast model"},
		{ID: "qwen-plus", DisplayName: "Qwen Plus", Provider: "qwen", Description: "Alibaba Qwen enhanced model"},
		{ID: "claude-2", DisplayName: "Claude 2", Provider: "anthropic", Description: "Anthropic Claude 2"},
		{ID: "claude-instant", DisplayName: "Claude Instant", Provider: "anthropic", Description: "Faster, lighter Claude model"},
	}
}

// LoadCatalog reads a YAML model catalog from path.
func LoadCatalog(path string) ([]domain.ModelInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML model catalog.
func ParseCatalog(data []byte) ([]domain.ModelInfo, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse model catalog: %w", err)
	}
	if len(file.Models) == 0 {
		return nil, errors.New("model catalog is empty")
	}

	seen := make(map[string]bool, len(file.Models))
	for i, m := range file.Models {
		if m.ID == "" || m.Provider == "" {
			return nil, fmt.Errorf("model catalog entry %d: id and provider are required", i)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("model catalog entry %d: duplicate id %q", i, m.ID)
		}
		seen[m.ID] = true
		if m.DisplayName == "" {
			file.Models[i].DisplayName = m.ID
		}
	}
	return file.Models, nil
}
