// Package realtime pushes conversation events to the realtime gateway.
package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Publisher delivers events to the realtime gateway over HTTP.
type Publisher struct {
	httpClient *resty.Client
	log        zerolog.Logger
	maxRetries int
	retryDelay time.Duration
}

// NewPublisher creates a resty-backed publisher. An empty baseURL disables
// publishing; every Publish becomes a logged no-op.
func NewPublisher(baseURL, token string, log zerolog.Logger) *Publisher {
	var client *resty.Client
	if baseURL != "" {
		client = resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json").
			SetTimeout(10 * time.Second)
		if token != "" {
			client.SetHeader("Authorization", "Bearer "+token)
		}
	}
	return &Publisher{
		httpClient: client,
		log:        log.With().Str("component", "realtime").Logger(),
		maxRetries: 3,
		retryDelay: 2 * time.Second,
	}
}

type publishPayload struct {
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// ConversationChannel names the channel scoped to one conversation.
func ConversationChannel(slug string) string {
	return "conversation:" + slug
}

// Publish posts the event, retrying transient failures.
func (p *Publisher) Publish(ctx context.Context, channel, event string, payload any) error {
	if p.httpClient == nil {
		p.log.Debug().Str("channel", channel).Str("event", event).Msg("realtime gateway not configured, skipping publish")
		return nil
	}

	body := publishPayload{Channel: channel, Event: event, Payload: payload}

	var lastErr error
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		resp, err := p.httpClient.R().
			SetContext(ctx).
			SetBody(body).
			Post("/api/publish")
		if err == nil && !resp.IsError() {
			return nil
		}

		if err != nil {
			lastErr = fmt.Errorf("publish %s (attempt %d/%d): %w", event, attempt, p.maxRetries, err)
		} else {
			lastErr = fmt.Errorf("publish %s (attempt %d/%d): gateway returned %d", event, attempt, p.maxRetries, resp.StatusCode())
		}
		p.log.Warn().Err(lastErr).Str("channel", channel).Msg("realtime publish failed")

		if attempt < p.maxRetries {
			select {
			case <-time.After(p.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}
