package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/sethvargo/go-retry"
	"github.com/tidwall/gjson"

	"github.com/arunmenon/text2sql/pkg/logger"
)

const structuredSystemPrompt = "You are a precise assistant for a text-to-SQL system. " +
	"Respond with a single JSON object matching the provided schema. " +
	"Do not include prose outside the JSON."

// ServiceConfig tunes the generation service.
type ServiceConfig struct {
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Service implements Generator on top of a provider-independent Client.
// Every call carries a timeout and is retried at most once.
type Service struct {
	client Client
	cfg    ServiceConfig
}

// NewService wraps a client with timeout and retry behavior.
func NewService(client Client, cfg ServiceConfig) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Service{client: client, cfg: cfg}
}

// GenerateText returns free-form text for the prompt.
func (s *Service) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := s.invoke(ctx, &Request{
		Prompt:      prompt,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// GenerateStructured populates out from a JSON response. The response
// schema is derived from out and embedded in the system prompt; required
// gjson paths missing from the reply degrade to ErrMalformedOutput.
func (s *Service) GenerateStructured(ctx context.Context, prompt string, out any, required ...string) error {
	schema, err := schemaFor(out)
	if err != nil {
		return fmt.Errorf("llm: failed to derive output schema: %w", err)
	}
	resp, err := s.invoke(ctx, &Request{
		SystemPrompt: structuredSystemPrompt + "\n\nOutput schema:\n" + schema,
		Prompt:       prompt,
		UseJSONMode:  true,
		Temperature:  s.cfg.Temperature,
		MaxTokens:    s.cfg.MaxTokens,
	})
	if err != nil {
		return err
	}
	return DecodeStructured(resp.Content, out, required...)
}

func (s *Service) invoke(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	backoff := retry.WithMaxRetries(1, retry.NewExponential(200*time.Millisecond))
	var resp *Response
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var callErr error
		resp, callErr = s.client.GenerateContent(ctx, req)
		if callErr != nil {
			return retry.RetryableError(callErr)
		}
		return nil
	})
	if err != nil {
		logger.FromContext(ctx).Warn("Generation service call failed", "error", err)
		return nil, fmt.Errorf("llm: generation failed: %w", err)
	}
	return resp, nil
}

// DecodeStructured extracts the JSON payload from model output, checks
// the required gjson paths, and unmarshals into out.
func DecodeStructured(content string, out any, required ...string) error {
	payload := ExtractJSON(content)
	if payload == "" || !gjson.Valid(payload) {
		return fmt.Errorf("%w: no valid JSON payload", ErrMalformedOutput)
	}
	for _, path := range required {
		if !gjson.Get(payload, path).Exists() {
			return fmt.Errorf("%w: missing required field %q", ErrMalformedOutput, path)
		}
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

// ExtractJSON pulls the JSON object or array out of model output,
// tolerating markdown code fences and surrounding prose.
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)
	if fenced := extractFenced(content); fenced != "" {
		content = fenced
	}
	start := strings.IndexAny(content, "{[")
	if start < 0 {
		return ""
	}
	var end int
	if content[start] == '{' {
		end = strings.LastIndex(content, "}")
	} else {
		end = strings.LastIndex(content, "]")
	}
	if end <= start {
		return ""
	}
	return content[start : end+1]
}

func extractFenced(content string) string {
	open := strings.Index(content, "```")
	if open < 0 {
		return ""
	}
	rest := content[open+3:]
	if newline := strings.Index(rest, "\n"); newline >= 0 {
		rest = rest[newline+1:]
	}
	closing := strings.Index(rest, "```")
	if closing < 0 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:closing])
}

func schemaFor(out any) (string, error) {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(out)
	raw, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
