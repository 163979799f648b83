package graph

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"

	"github.com/arunmenon/text2sql/pkg/logger"
)

// ClientConfig configures the HTTP graph-store client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the graph store over HTTP. Transient failures are
// retried exactly once before being surfaced; callers degrade them to
// zero-confidence results.
type Client struct {
	http *resty.Client
}

// NewClient builds a graph-store client from configuration.
func NewClient(cfg *ClientConfig) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return &Client{http: httpClient}
}

// doOnce wraps an HTTP call with a single retry on transient failures.
func (c *Client) doOnce(ctx context.Context, op string, call func(ctx context.Context) (*resty.Response, error)) (*resty.Response, error) {
	backoff := retry.WithMaxRetries(1, retry.NewExponential(100*time.Millisecond))
	var resp *resty.Response
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var callErr error
		resp, callErr = call(ctx)
		if callErr != nil {
			return retry.RetryableError(callErr)
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return retry.RetryableError(fmt.Errorf("graph: %s returned status %d", op, resp.StatusCode()))
		}
		return nil
	})
	if err != nil {
		logger.FromContext(ctx).Warn("Graph store call failed", "op", op, "error", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
	}
	return resp, nil
}

// LookupTable returns tables matching the given name.
func (c *Client) LookupTable(ctx context.Context, name string) ([]TableInfo, error) {
	var out struct {
		Tables []TableInfo `json:"tables"`
	}
	resp, err := c.doOnce(ctx, "lookup_table", func(ctx context.Context) (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetQueryParam("name", name).
			SetResult(&out).
			Get("/api/v1/tables")
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	return out.Tables, nil
}

// LookupGlossaryTerm returns the glossary term, or nil when unknown.
func (c *Client) LookupGlossaryTerm(ctx context.Context, name string) (*TermInfo, error) {
	var out TermInfo
	resp, err := c.doOnce(ctx, "lookup_glossary_term", func(ctx context.Context) (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetResult(&out).
			Get("/api/v1/glossary/" + name)
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	return &out, nil
}

// LookupSemanticConcept returns the concept, or nil when unknown.
func (c *Client) LookupSemanticConcept(ctx context.Context, name string) (*ConceptInfo, error) {
	var out ConceptInfo
	resp, err := c.doOnce(ctx, "lookup_semantic_concept", func(ctx context.Context) (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetResult(&out).
			Get("/api/v1/concepts/" + name)
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	return &out, nil
}

// FindJoinPaths returns candidate paths between two tables.
func (c *Client) FindJoinPaths(ctx context.Context, req PathRequest) ([]JoinPath, error) {
	var out struct {
		Paths []JoinPath `json:"paths"`
	}
	resp, err := c.doOnce(ctx, "find_join_paths", func(ctx context.Context) (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&out).
			Post("/api/v1/paths/search")
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	for i := range out.Paths {
		out.Paths[i].Normalize()
	}
	return out.Paths, nil
}

// GetSchemaContext fetches the tenant's schema snapshot. Failure here is
// fatal for the query.
func (c *Client) GetSchemaContext(ctx context.Context, tenantID string) (*SchemaContext, error) {
	var out SchemaContext
	resp, err := c.doOnce(ctx, "get_schema_context", func(ctx context.Context) (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetResult(&out).
			Get("/api/v1/schema/" + tenantID)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaUnavailable, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrSchemaUnavailable, resp.StatusCode())
	}
	return &out, nil
}
