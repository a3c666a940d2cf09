package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/techmannih/helper-sub007/internal/domain/conversation"
	"github.com/techmannih/helper-sub007/internal/domain/escalation"
	"github.com/techmannih/helper-sub007/internal/domain/fanout"
	"github.com/techmannih/helper-sub007/internal/domain/response"
	"github.com/techmannih/helper-sub007/internal/infrastructure/metrics"
	"github.com/techmannih/helper-sub007/internal/infrastructure/observability"
	"github.com/techmannih/helper-sub007/internal/interfaces/httpserver/requests"
	"github.com/techmannih/helper-sub007/internal/interfaces/httpserver/responses"
)

// ChatHandler exposes HTTP entrypoints for the chat API.
type ChatHandler struct {
	conversations   conversation.Repository
	messages        conversation.MessageRepository
	responseService response.Service
	detector        *escalation.Detector
	fanoutService   *fanout.Service
	log             zerolog.Logger
}

// NewChatHandler constructs the handler.
func NewChatHandler(
	conversations conversation.Repository,
	messages conversation.MessageRepository,
	responseService response.Service,
	detector *escalation.Detector,
	fanoutService *fanout.Service,
	log zerolog.Logger,
) *ChatHandler {
	return &ChatHandler{
		conversations:   conversations,
		messages:        messages,
		responseService: responseService,
		detector:        detector,
		fanoutService:   fanoutService,
		log:             log.With().Str("handler", "chat").Logger(),
	}
}

// CreateConversation handles POST /v1/chat/conversations
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	var req requests.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	subject := conversation.PlaceholderSubject
	if req.Subject != nil && *req.Subject != "" {
		subject = *req.Subject
	}

	now := time.Now()
	conv := &conversation.Conversation{
		Slug:      uuid.NewString(),
		Subject:   subject,
		Status:    conversation.StatusOpen,
		Ownership: conversation.AIOwned(),
		EmailFrom: req.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.conversations.Create(c.Request.Context(), conv); err != nil {
		responses.HandleError(c, err, "failed to create conversation")
		return
	}

	c.JSON(http.StatusCreated, responses.FromConversation(conv))
}

// GetConversation handles GET /v1/chat/conversations/:slug
func (h *ChatHandler) GetConversation(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")

	conv, err := h.conversations.FindBySlug(ctx, slug)
	if err != nil {
		responses.HandleError(c, err, "failed to get conversation")
		return
	}

	transcript, err := h.messages.ListByConversationID(ctx, conv.ID)
	if err != nil {
		responses.HandleError(c, err, "failed to list messages")
		return
	}

	payload := responses.ConversationDetailPayload{
		Conversation: responses.FromConversation(conv),
		Messages:     make([]responses.MessagePayload, 0, len(transcript)),
	}
	for i := range transcript {
		if transcript[i].IsToolPair() {
			continue
		}
		payload.Messages = append(payload.Messages, responses.FromMessage(&transcript[i]))
	}

	c.JSON(http.StatusOK, payload)
}

// SendMessage handles POST /v1/chat/conversations/:slug/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")

	var req requests.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	role := conversation.RoleUser
	if req.Role != nil && *req.Role == string(conversation.RoleStaff) {
		role = conversation.RoleStaff
	}

	conv, err := h.conversations.FindBySlug(ctx, slug)
	if err != nil {
		responses.HandleError(c, err, "failed to get conversation")
		return
	}

	// A new customer message on a resolved conversation reopens it with the
	// ownership it had before closing.
	reopened := false
	if conv.Status == conversation.StatusClosed && role == conversation.RoleUser {
		if err := conv.Reopen(time.Now()); err == nil {
			if err := h.conversations.Update(ctx, conv); err != nil {
				responses.HandleError(c, err, "failed to reopen conversation")
				return
			}
			reopened = true
		}
	}

	msg := &conversation.Message{
		PublicID:       "msg_" + uuid.NewString(),
		ConversationID: conv.ID,
		Role:           role,
		Body:           req.Body,
		CleanedText:    conversation.CleanText(req.Body),
		CreatedAt:      time.Now(),
	}
	if err := h.messages.Create(ctx, msg); err != nil {
		responses.HandleError(c, err, "failed to store message")
		return
	}

	if reopened {
		h.fanoutService.NotifyReopened(ctx, conv, msg)
	}

	turnCtx, span := observability.StartTurnSpan(ctx, conv.Slug, msg.ID)
	defer span.End()

	outcome, err := h.responseService.Respond(turnCtx, conv.Slug, msg.ID)
	if err != nil {
		observability.RecordError(span, err)
		responses.HandleError(c, err, "failed to run orchestration turn")
		return
	}

	if outcome.Kind == response.OutcomeEscalated {
		trigger := string(escalation.TriggerToolCall)
		if role == conversation.RoleStaff {
			trigger = string(escalation.TriggerStaffReply)
		}
		metrics.RecordEscalation(trigger)
		observability.AddEscalationEvent(span, trigger)
	}

	c.JSON(http.StatusOK, responses.FromOutcome(msg.PublicID, outcome))
}

// FlagMessage handles POST /v1/chat/conversations/:slug/messages/:message_id/flag
func (h *ChatHandler) FlagMessage(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")
	messageID := c.Param("message_id")

	var req requests.FlagMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	conv, err := h.conversations.FindBySlug(ctx, slug)
	if err != nil {
		responses.HandleError(c, err, "failed to get conversation")
		return
	}

	msg, err := h.messages.FindByPublicID(ctx, messageID)
	if err != nil || msg.ConversationID != conv.ID {
		if err == nil {
			err = conversation.ErrMessageNotFound
		}
		responses.HandleError(c, err, "failed to get message")
		return
	}

	if err := h.messages.FlagAsBad(ctx, msg.ID, req.Reason); err != nil {
		responses.HandleError(c, err, "failed to flag message")
		return
	}

	escalated, err := h.detector.Escalate(ctx, conv, escalation.TriggerBadFlag, req.Reason, nil)
	if err != nil {
		responses.HandleError(c, err, "failed to escalate conversation")
		return
	}
	if escalated {
		metrics.RecordEscalation(string(escalation.TriggerBadFlag))
	}

	c.JSON(http.StatusOK, gin.H{
		"flagged":   true,
		"escalated": escalated,
	})
}
