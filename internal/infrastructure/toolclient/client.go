// Package toolclient executes registered HTTP tools on behalf of the assistant.
package toolclient

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/techmannih/helper-sub007/internal/domain/tool"
	"github.com/techmannih/helper-sub007/internal/infrastructure/metrics"
	"github.com/techmannih/helper-sub007/internal/infrastructure/observability"
)

// Tool endpoints can return large payloads; only this much is fed back to the model.
const maxResultBodyBytes = 4096

// Client implements tool.Executor over HTTP with a per-host circuit breaker.
type Client struct {
	httpClient *resty.Client
	breakerCfg CircuitBreakerConfig
	log        zerolog.Logger

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewClient builds the executor. The timeout applies to each tool call.
func NewClient(timeout time.Duration, breakerCfg CircuitBreakerConfig, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: resty.New().SetTimeout(timeout),
		breakerCfg: breakerCfg,
		log:        log.With().Str("component", "toolclient").Logger(),
		breakers:   make(map[string]*CircuitBreaker),
	}
}

// Execute performs the tool's HTTP request with validated arguments. GET
// requests carry arguments as query parameters; all other methods send a JSON
// body. A non-2xx response is a failed result, not an error.
func (c *Client) Execute(ctx context.Context, t tool.Tool, args map[string]tool.Value) (*tool.Result, error) {
	host, err := hostOf(t.URL)
	if err != nil {
		return nil, fmt.Errorf("tool %s has invalid URL: %w", t.Slug, err)
	}

	// A dispatched tool call runs to completion even when the inbound request
	// is abandoned; only the client timeout bounds it. Trace and value
	// propagation survive the detach.
	ctx = context.WithoutCancel(ctx)

	ctx, span := observability.StartToolSpan(ctx, t.Slug, t.Method)
	defer span.End()

	var resp *resty.Response
	start := time.Now()
	execErr := c.breakerFor(host).Execute(t.Slug, func() error {
		var callErr error
		resp, callErr = c.send(ctx, t, args)
		if callErr != nil {
			return callErr
		}
		// 5xx counts against the breaker; 4xx is the caller's fault.
		if resp.StatusCode() >= 500 {
			return fmt.Errorf("upstream error: %d", resp.StatusCode())
		}
		return nil
	})
	duration := time.Since(start).Seconds()

	if execErr != nil && resp == nil {
		metrics.RecordToolCall(t.Slug, "error", duration)
		observability.RecordError(span, execErr)
		return nil, fmt.Errorf("execute tool %s: %w", t.Slug, execErr)
	}

	body := truncate(resp.String(), maxResultBodyBytes)
	if resp.IsError() {
		metrics.RecordToolCall(t.Slug, "failure", duration)
		c.log.Warn().
			Str("tool", t.Slug).
			Int("status", resp.StatusCode()).
			Msg("tool call returned error status")
		return &tool.Result{
			Success: false,
			Body:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode(), body),
		}, nil
	}

	metrics.RecordToolCall(t.Slug, "success", duration)
	return &tool.Result{Success: true, Body: body}, nil
}

func (c *Client) send(ctx context.Context, t tool.Tool, args map[string]tool.Value) (*resty.Response, error) {
	request := c.httpClient.R().SetContext(ctx)

	if t.AuthToken != nil && *t.AuthToken != "" {
		request.SetHeader("Authorization", "Bearer "+*t.AuthToken)
	}

	if t.Method == "GET" {
		for name, value := range args {
			request.SetQueryParam(name, value.Text())
		}
		return request.Get(t.URL)
	}

	body := make(map[string]any, len(args))
	for name, value := range args {
		body[name] = value.Native()
	}
	request.SetHeader("Content-Type", "application/json").SetBody(body)

	switch t.Method {
	case "POST", "":
		return request.Post(t.URL)
	case "PUT":
		return request.Put(t.URL)
	case "PATCH":
		return request.Patch(t.URL)
	case "DELETE":
		return request.Delete(t.URL)
	default:
		return nil, fmt.Errorf("unsupported method %s", t.Method)
	}
}

func (c *Client) breakerFor(host string) *CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	breaker, ok := c.breakers[host]
	if !ok {
		breaker = NewCircuitBreaker(c.breakerCfg)
		c.breakers[host] = breaker
	}
	return breaker
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", rawURL)
	}
	return u.Host, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "... (truncated)"
}

// Ensure interface compliance.
var _ tool.Executor = (*Client)(nil)
