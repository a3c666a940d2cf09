package responses

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/techmannih/helper-sub007/internal/domain/conversation"
	"github.com/techmannih/helper-sub007/internal/domain/response"
	"github.com/techmannih/helper-sub007/internal/domain/tool"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HandleError maps domain errors to HTTP responses.
func HandleError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, conversation.ErrNotFound),
		errors.Is(err, conversation.ErrMessageNotFound),
		errors.Is(err, tool.ErrUnknownTool):
		status = http.StatusNotFound
	case errors.Is(err, conversation.ErrInvalidTransition):
		status = http.StatusConflict
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:   message,
		Message: err.Error(),
	})
}

// ConversationPayload is returned to clients.
type ConversationPayload struct {
	Slug        string     `json:"slug"`
	Subject     string     `json:"subject"`
	Summary     *string    `json:"summary,omitempty"`
	Status      string     `json:"status"`
	Owner       string     `json:"owner"`
	EmailFrom   *string    `json:"email_from,omitempty"`
	EscalatedAt *time.Time `json:"escalated_at,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// FromConversation maps the domain conversation to its payload.
func FromConversation(conv *conversation.Conversation) ConversationPayload {
	return ConversationPayload{
		Slug:        conv.Slug,
		Subject:     conv.Subject,
		Summary:     conv.Summary,
		Status:      string(conv.Status),
		Owner:       string(conv.Ownership.Kind),
		EmailFrom:   conv.EmailFrom,
		EscalatedAt: conv.EscalatedAt,
		ClosedAt:    conv.ClosedAt,
		CreatedAt:   conv.CreatedAt,
	}
}

// MessagePayload is one transcript entry.
type MessagePayload struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Body      string    `json:"body"`
	Flagged   bool      `json:"flagged,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FromMessage maps the domain message to its payload.
func FromMessage(msg *conversation.Message) MessagePayload {
	return MessagePayload{
		ID:        msg.PublicID,
		Role:      string(msg.Role),
		Body:      msg.Body,
		Flagged:   msg.IsFlaggedAsBad,
		CreatedAt: msg.CreatedAt,
	}
}

// ConversationDetailPayload pairs a conversation with its transcript.
type ConversationDetailPayload struct {
	Conversation ConversationPayload `json:"conversation"`
	Messages     []MessagePayload    `json:"messages"`
}

// TurnPayload reports the outcome of one orchestration turn.
type TurnPayload struct {
	MessageID       string `json:"message_id"`
	Outcome         string `json:"outcome"`
	ReplyID         string `json:"reply_id,omitempty"`
	ReplyText       string `json:"reply_text,omitempty"`
	SkipReason      string `json:"skip_reason,omitempty"`
	ToolInvocations int    `json:"tool_invocations,omitempty"`
}

// FromOutcome maps the turn outcome to its payload.
func FromOutcome(inboundPublicID string, outcome *response.Outcome) TurnPayload {
	return TurnPayload{
		MessageID:       inboundPublicID,
		Outcome:         string(outcome.Kind),
		ReplyID:         outcome.ReplyMessageID,
		ReplyText:       outcome.ReplyText,
		SkipReason:      outcome.SkipReason,
		ToolInvocations: outcome.ToolInvocations,
	}
}
