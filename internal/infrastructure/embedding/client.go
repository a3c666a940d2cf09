// Package embedding produces and caches text embeddings for retrieval.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client calls an OpenAI-compatible embeddings API.
type Client struct {
	httpClient *resty.Client
	model      string
}

// NewClient creates a Resty-backed embeddings client.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json").
			SetHeader("Authorization", "Bearer "+apiKey).
			SetTimeout(timeout),
		model: model,
	}
}

// Model returns the configured embedding model name.
func (c *Client) Model() string {
	return c.model
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedText calls /v1/embeddings for a single input.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var result embeddingResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(embeddingRequest{Model: c.model, Input: []string{text}}).
		SetResult(&result).
		Post("/v1/embeddings")
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("embedding api error: %s", resp.String())
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("embedding api returned no data")
	}
	return result.Data[0].Embedding, nil
}
