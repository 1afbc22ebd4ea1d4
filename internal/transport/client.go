// Package transport delivers backend payloads over HTTP and relays
// Server-Sent-Event streams back to callers.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coreerp/assistant-gateway/internal/builder"
	"github.com/coreerp/assistant-gateway/internal/domain"
)

// Backend routes. The pair (graph-shaped, streaming) selects exactly one.
const (
	RouteQuestion      = "/question"
	RouteGraph         = "/graph"
	RouteAsyncQuestion = "/aquestion"
	RouteAsyncGraph    = "/agraph"
)

const defaultTimeout = 120 * time.Second

// RouteFor returns the backend route for a payload shape and delivery mode.
func RouteFor(graphShaped, streaming bool) string {
	switch {
	case graphShaped && streaming:
		return RouteAsyncGraph
	case graphShaped:
		return RouteGraph
	case streaming:
		return RouteAsyncQuestion
	default:
		return RouteQuestion
	}
}

// HTTPError is a non-200 backend reply whose body may still carry a
// parseable error document. The caller decides whether the body normalizes
// into a semantic error.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend returned status %d", e.StatusCode)
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// Client posts backend payloads. Every transport-level failure is folded
// into domain.KindBackendUnavailable; raw socket errors never reach callers.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the backend at host:port.
func New(host string, port int, opts ...Option) *Client {
	c := &Client{
		baseURL:    fmt.Sprintf("http://%s:%d", host, port),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ask sends the payload in buffered mode and returns the backend's JSON
// document as raw bytes. Non-200 replies are returned too; their body often
// carries a structured error the normalizer understands.
func (c *Client) Ask(ctx context.Context, payload *builder.Payload) ([]byte, error) {
	resp, err := c.post(ctx, RouteFor(payload.GraphShaped, false), payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ErrBackendUnavailable(err)
	}
	return body, nil
}

// OpenStream sends the payload in streaming mode and hands back the live
// response body. The caller owns the stream and must close it on every exit
// path. A non-200 reply is drained, closed, and returned as *HTTPError.
func (c *Client) OpenStream(ctx context.Context, payload *builder.Payload) (io.ReadCloser, error) {
	resp, err := c.post(ctx, RouteFor(payload.GraphShaped, true), payload)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}
	return resp.Body, nil
}

func (c *Client) post(ctx context.Context, route string, payload *builder.Payload) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Connect refused, timeouts, and context cancellation all fold into
		// the same stable error; the cause stays attached for logging.
		return nil, domain.ErrBackendUnavailable(err)
	}
	return resp, nil
}
