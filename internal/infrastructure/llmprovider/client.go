package llmprovider

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/techmannih/helper-sub007/internal/domain/llm"
	"github.com/techmannih/helper-sub007/internal/infrastructure/metrics"
)

// Client implements the llm.Provider interface against an OpenAI-compatible API.
type Client struct {
	httpClient *resty.Client
}

// NewClient creates a Resty-backed client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		httpClient: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json").
			SetHeader("Authorization", "Bearer "+apiKey).
			SetTimeout(timeout),
	}
}

// CreateChatCompletion calls /v1/chat/completions.
func (c *Client) CreateChatCompletion(ctx context.Context, req llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	var completion llm.ChatCompletionResponse

	start := time.Now()
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&completion).
		Post("/v1/chat/completions")
	duration := time.Since(start).Seconds()

	if err != nil {
		metrics.RecordModelCall(req.Model, "error", duration)
		return nil, fmt.Errorf("chat completion request: %w", err)
	}
	if resp.IsError() {
		metrics.RecordModelCall(req.Model, "error", duration)
		return nil, fmt.Errorf("llm api error: %s", resp.String())
	}
	if len(completion.Choices) == 0 {
		metrics.RecordModelCall(req.Model, "error", duration)
		return nil, fmt.Errorf("llm api returned no choices")
	}

	metrics.RecordModelCall(req.Model, "success", duration)
	return &completion, nil
}

// Ensure interface compliance.
var _ llm.Provider = (*Client)(nil)
