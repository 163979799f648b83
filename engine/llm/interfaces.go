package llm

import (
	"context"
	"errors"
)

var (
	// ErrEmptyResponse indicates the model returned no usable content.
	ErrEmptyResponse = errors.New("llm: empty response")
	// ErrMalformedOutput indicates structured output that is missing
	// required fields or is not valid JSON. Callers treat it as a
	// zero-confidence result, never as a pipeline failure.
	ErrMalformedOutput = errors.New("llm: malformed structured output")
)

// Generator is the text-generation surface the pipeline consumes. The
// service behind it must be assumed non-deterministic and occasionally
// malformed.
type Generator interface {
	// GenerateText returns free-form text for the prompt.
	GenerateText(ctx context.Context, prompt string) (string, error)
	// GenerateStructured populates out from a JSON response. The
	// required paths (gjson syntax) must be present in the response;
	// otherwise ErrMalformedOutput is returned.
	GenerateStructured(ctx context.Context, prompt string, out any, required ...string) error
}

// Request represents a single call to the model, independent of provider.
type Request struct {
	SystemPrompt string
	Prompt       string
	UseJSONMode  bool
	Temperature  float64
	MaxTokens    int
}

// Response represents the model's reply.
type Response struct {
	Content string
}

// Client is the provider-independent model interface.
type Client interface {
	GenerateContent(ctx context.Context, req *Request) (*Response, error)
}
