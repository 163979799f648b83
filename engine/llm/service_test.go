package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	responses []string
	errs      []error
	calls     atomic.Int32
}

func (c *scriptedClient) GenerateContent(_ context.Context, _ *Request) (*Response, error) {
	i := int(c.calls.Add(1)) - 1
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	return &Response{Content: c.responses[i]}, nil
}

func TestService_GenerateText(t *testing.T) {
	t.Run("Should return model content", func(t *testing.T) {
		client := &scriptedClient{responses: []string{"SELECT 1"}}
		svc := NewService(client, ServiceConfig{Timeout: time.Second})

		out, err := svc.GenerateText(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, "SELECT 1", out)
	})

	t.Run("Should retry once on transient failure", func(t *testing.T) {
		client := &scriptedClient{
			errs:      []error{errors.New("boom"), nil},
			responses: []string{"", "recovered"},
		}
		svc := NewService(client, ServiceConfig{Timeout: time.Second})

		out, err := svc.GenerateText(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, "recovered", out)
		assert.Equal(t, int32(2), client.calls.Load())
	})

	t.Run("Should give up after the single retry", func(t *testing.T) {
		client := &scriptedClient{errs: []error{errors.New("boom"), errors.New("boom")}, responses: []string{""}}
		svc := NewService(client, ServiceConfig{Timeout: time.Second})

		_, err := svc.GenerateText(context.Background(), "hello")
		require.Error(t, err)
		assert.Equal(t, int32(2), client.calls.Load())
	})
}

func TestService_GenerateStructured(t *testing.T) {
	type intentOut struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}

	t.Run("Should decode structured output", func(t *testing.T) {
		client := &scriptedClient{responses: []string{`{"intent":"selection","confidence":0.9}`}}
		svc := NewService(client, ServiceConfig{Timeout: time.Second})

		var out intentOut
		err := svc.GenerateStructured(context.Background(), "classify", &out, "intent", "confidence")
		require.NoError(t, err)
		assert.Equal(t, "selection", out.Intent)
		assert.Equal(t, 0.9, out.Confidence)
	})

	t.Run("Should treat missing required fields as malformed", func(t *testing.T) {
		client := &scriptedClient{responses: []string{`{"intent":"selection"}`}}
		svc := NewService(client, ServiceConfig{Timeout: time.Second})

		var out intentOut
		err := svc.GenerateStructured(context.Background(), "classify", &out, "intent", "confidence")
		require.ErrorIs(t, err, ErrMalformedOutput)
	})

	t.Run("Should tolerate fenced and prose-wrapped JSON", func(t *testing.T) {
		client := &scriptedClient{responses: []string{
			"Here is the result:\n```json\n{\"intent\":\"trend\",\"confidence\":0.8}\n```\nDone.",
		}}
		svc := NewService(client, ServiceConfig{Timeout: time.Second})

		var out intentOut
		err := svc.GenerateStructured(context.Background(), "classify", &out, "intent")
		require.NoError(t, err)
		assert.Equal(t, "trend", out.Intent)
	})

	t.Run("Should reject non-JSON output", func(t *testing.T) {
		client := &scriptedClient{responses: []string{"I cannot answer that."}}
		svc := NewService(client, ServiceConfig{Timeout: time.Second})

		var out intentOut
		err := svc.GenerateStructured(context.Background(), "classify", &out)
		require.ErrorIs(t, err, ErrMalformedOutput)
	})
}

func TestExtractJSON(t *testing.T) {
	t.Run("Should pass bare objects through", func(t *testing.T) {
		assert.Equal(t, `{"a":1}`, ExtractJSON(`{"a":1}`))
	})

	t.Run("Should strip code fences without a language tag", func(t *testing.T) {
		assert.Equal(t, `{"a":1}`, ExtractJSON("```\n{\"a\":1}\n```"))
	})

	t.Run("Should extract arrays", func(t *testing.T) {
		assert.Equal(t, `[1,2]`, ExtractJSON("result: [1,2]"))
	})

	t.Run("Should return empty for no JSON", func(t *testing.T) {
		assert.Empty(t, ExtractJSON("nothing here"))
	})
}
