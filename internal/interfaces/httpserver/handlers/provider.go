package handlers

import (
	"github.com/rs/zerolog"

	"github.com/techmannih/helper-sub007/internal/domain/conversation"
	"github.com/techmannih/helper-sub007/internal/domain/escalation"
	"github.com/techmannih/helper-sub007/internal/domain/fanout"
	"github.com/techmannih/helper-sub007/internal/domain/response"
)

// Provider wires all HTTP handlers for dependency injection.
type Provider struct {
	Chat *ChatHandler
}

// NewProvider constructs the handler provider with domain services.
func NewProvider(
	conversations conversation.Repository,
	messages conversation.MessageRepository,
	responseService response.Service,
	detector *escalation.Detector,
	fanoutService *fanout.Service,
	log zerolog.Logger,
) *Provider {
	return &Provider{
		Chat: NewChatHandler(conversations, messages, responseService, detector, fanoutService, log),
	}
}
