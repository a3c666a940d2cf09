package response

import (
	"context"

	"github.com/techmannih/helper-sub007/internal/domain/conversation"
	"github.com/techmannih/helper-sub007/internal/domain/escalation"
	"github.com/techmannih/helper-sub007/internal/domain/retry"
)

// OutcomeKind classifies how a turn ended.
type OutcomeKind string

const (
	OutcomeReplied   OutcomeKind = "replied"
	OutcomeEscalated OutcomeKind = "escalated"
	OutcomeSkipped   OutcomeKind = "skipped"
)

// Outcome is the terminal result of one orchestration turn.
type Outcome struct {
	Kind            OutcomeKind `json:"kind"`
	ReplyText       string      `json:"reply_text,omitempty"`
	ReplyMessageID  string      `json:"reply_message_id,omitempty"`
	SkipReason      string      `json:"skip_reason,omitempty"`
	ToolInvocations int         `json:"tool_invocations,omitempty"`
}

// Service runs one orchestration turn for an inbound message.
type Service interface {
	Respond(ctx context.Context, conversationSlug string, messageID uint) (*Outcome, error)
}

// ContextAssembler produces the retrieval context block for a query.
type ContextAssembler interface {
	Assemble(ctx context.Context, systemPrompt, query string) (string, error)
}

// Escalator drives the conversation handoff state machine.
type Escalator interface {
	Escalate(ctx context.Context, conv *conversation.Conversation, trigger escalation.Trigger, reason, email *string) (bool, error)
}

// FanoutService enqueues the side-effect jobs for a terminal message.
type FanoutService interface {
	FanOut(ctx context.Context, conv *conversation.Conversation, msg *conversation.Message, escalated bool)
}

// Config bounds the orchestration loop.
type Config struct {
	Model             string
	SystemPrompt      string
	MaxToolIterations int
	RetryPolicy       retry.Policy
}

// FallbackReply is persisted when the loop cap is reached without a final answer.
const FallbackReply = "I wasn't able to finish resolving this automatically. Let me get a human to help you with this."

// DefaultSystemPrompt frames the assistant when no prompt is configured.
const DefaultSystemPrompt = "You are a helpful customer support assistant. Answer using the provided context when it is relevant. Use the available tools when they help resolve the request, and request human support when you cannot help."
