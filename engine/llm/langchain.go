package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// LangChainClient adapts a langchaingo model to the Client interface.
type LangChainClient struct {
	model llms.Model
}

// NewLangChainClient wraps an already-constructed model.
func NewLangChainClient(model llms.Model) *LangChainClient {
	return &LangChainClient{model: model}
}

// GenerateContent sends the request to the underlying model.
func (c *LangChainClient) GenerateContent(ctx context.Context, req *Request) (*Response, error) {
	messages := make([]llms.MessageContent, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	var options []llms.CallOption
	if req.Temperature > 0 {
		options = append(options, llms.WithTemperature(req.Temperature))
	}
	if req.MaxTokens > 0 {
		options = append(options, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.UseJSONMode {
		options = append(options, llms.WithJSONMode())
	}

	response, err := c.model.GenerateContent(ctx, messages, options...)
	if err != nil {
		return nil, fmt.Errorf("llm: generate content failed: %w", err)
	}
	if response == nil || len(response.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	return &Response{Content: response.Choices[0].Content}, nil
}
