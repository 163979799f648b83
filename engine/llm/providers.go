package llm

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ProviderConfig selects and configures the underlying model provider.
type ProviderConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// NewModel creates a langchaingo model for the configured provider.
func NewModel(cfg *ProviderConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "openai":
		return newOpenAIModel(cfg)
	case "groq":
		return newGroqModel(cfg)
	case "anthropic":
		return newAnthropicModel(cfg)
	case "ollama":
		return newOllamaModel(cfg)
	default:
		return nil, fmt.Errorf("llm: unsupported provider: %s", cfg.Provider)
	}
}

func newOpenAIModel(cfg *ProviderConfig) (llms.Model, error) {
	opts := []openai.Option{openai.WithModel(cfg.Model)}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}

func newGroqModel(cfg *ProviderConfig) (llms.Model, error) {
	baseURL := "https://api.groq.com/openai/v1"
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithBaseURL(baseURL),
	}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	return openai.New(opts...)
}

func newAnthropicModel(cfg *ProviderConfig) (llms.Model, error) {
	opts := []anthropic.Option{anthropic.WithModel(cfg.Model)}
	if cfg.APIKey != "" {
		opts = append(opts, anthropic.WithToken(cfg.APIKey))
	}
	return anthropic.New(opts...)
}

func newOllamaModel(cfg *ProviderConfig) (llms.Model, error) {
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	return ollama.New(opts...)
}
