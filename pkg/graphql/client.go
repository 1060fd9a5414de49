// Package graphql is a minimal client for the region GraphQL API.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/rescape/region-store/internal/resilience"
)

// Client executes GraphQL operations.
type Client interface {
	// Do sends req and decodes the response "data" object into out.
	// GraphQL errors in the response are returned as Errors.
	Do(ctx context.Context, req Request, out any) error
}

// Request is a GraphQL operation.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Error is one entry of a GraphQL "errors" array.
type Error struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// Errors is a non-empty GraphQL "errors" array.
type Errors []Error

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Message
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors Errors          `json:"errors"`
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithToken sends token as a JWT Authorization header.
func WithToken(token string) Option {
	return func(c *httpClient) {
		c.token = token
	}
}

type tokenKey struct{}

// WithRequestToken returns a context whose requests authenticate with token
// in place of the client's own. An empty token sends no Authorization header.
func WithRequestToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// RequestToken returns the token set by WithRequestToken.
func RequestToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok
}

// WithRateLimit caps requests per second. Zero or less disables the limit.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	endpoint string
	token    string
	http     *http.Client
	limiter  *rate.Limiter
	retry    resilience.RetryConfig
}

// NewClient returns a Client posting to endpoint.
func NewClient(endpoint string, opts ...Option) Client {
	c := &httpClient{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(20, 20),
		retry:    resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.LogRetry("graphql", "do")
	}
	return c
}

func (c *httpClient) Do(ctx context.Context, req Request, out any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return eris.Wrap(err, "graphql: marshal request")
	}

	data, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (json.RawMessage, error) {
		return c.post(ctx, payload)
	})
	if err != nil {
		return err
	}

	if out == nil || len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "graphql: unmarshal data")
	}
	return nil
}

func (c *httpClient) post(ctx context.Context, payload []byte) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "graphql: rate limit wait")
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "graphql: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	token := c.token
	if t, ok := RequestToken(ctx); ok {
		token = t
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "JWT "+token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "graphql: request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "graphql: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("graphql: unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
		if resilience.IsTransientStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, eris.Wrap(err, "graphql: unmarshal response")
	}
	if len(r.Errors) > 0 {
		return nil, r.Errors
	}
	return r.Data, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
