// Package response orchestrates assistant replies over a bounded tool loop.
package response

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/techmannih/helper-sub007/internal/domain/conversation"
	"github.com/techmannih/helper-sub007/internal/domain/escalation"
	"github.com/techmannih/helper-sub007/internal/domain/llm"
	"github.com/techmannih/helper-sub007/internal/domain/retrieval"
	"github.com/techmannih/helper-sub007/internal/domain/retry"
	"github.com/techmannih/helper-sub007/internal/domain/tool"
)

// ServiceImpl provides the domain implementation.
type ServiceImpl struct {
	conversations conversation.Repository
	messages      conversation.MessageRepository
	registry      tool.Registry
	executor      tool.Executor
	escalator     Escalator
	assembler     ContextAssembler
	fanout        FanoutService
	provider      llm.Provider
	cfg           Config
	log           zerolog.Logger
}

// NewService wires dependencies.
func NewService(
	conversations conversation.Repository,
	messages conversation.MessageRepository,
	registry tool.Registry,
	executor tool.Executor,
	escalator Escalator,
	assembler ContextAssembler,
	fanoutService FanoutService,
	provider llm.Provider,
	cfg Config,
	log zerolog.Logger,
) *ServiceImpl {
	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = 5
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	return &ServiceImpl{
		conversations: conversations,
		messages:      messages,
		registry:      registry,
		executor:      executor,
		escalator:     escalator,
		assembler:     assembler,
		fanout:        fanoutService,
		provider:      provider,
		cfg:           cfg,
		log:           log.With().Str("component", "response-service").Logger(),
	}
}

// Respond runs one orchestration turn for the inbound message.
func (s *ServiceImpl) Respond(ctx context.Context, conversationSlug string, messageID uint) (*Outcome, error) {
	conv, err := s.conversations.FindBySlug(ctx, conversationSlug)
	if err != nil {
		return nil, fmt.Errorf("fetch conversation: %w", err)
	}
	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("fetch message: %w", err)
	}
	if msg.ConversationID != conv.ID {
		return nil, fmt.Errorf("message %d does not belong to conversation %s", messageID, conversationSlug)
	}

	if skip := s.guard(ctx, conv, msg); skip != nil {
		return skip, nil
	}

	if msg.Role == conversation.RoleStaff {
		return s.handleStaffReply(ctx, conv, msg)
	}

	contextBlock, err := s.assembler.Assemble(ctx, s.cfg.SystemPrompt, msg.CleanedText)
	if errors.Is(err, retrieval.ErrPromptTooLong) {
		s.log.Warn().Str("conversation", conv.Slug).Msg("prompt over budget, replying without context")
		contextBlock = ""
	} else if err != nil {
		return nil, fmt.Errorf("assemble context: %w", err)
	}

	history, err := s.messages.ListByConversationID(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	llmMessages := s.buildMessages(contextBlock, history)

	toolDefs, err := s.toolDefinitions(ctx, conv)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}

	invocations := 0
	for iteration := 0; iteration < s.cfg.MaxToolIterations; iteration++ {
		choice, err := s.complete(ctx, llmMessages, toolDefs)
		if err != nil {
			return nil, fmt.Errorf("chat completion: %w", err)
		}

		if len(choice.Message.ToolCalls) == 0 {
			return s.finishReply(ctx, conv, choice.Message.Content, invocations)
		}

		llmMessages = append(llmMessages, choice.Message)

		for _, call := range choice.Message.ToolCalls {
			args, parseErr := tool.ParseArguments(call.Function.Arguments)
			if parseErr != nil {
				args = map[string]interface{}{}
			}

			switch call.Function.Name {
			case tool.NameRequestHumanSupport:
				outcome, handled, err := s.handleEscalationCall(ctx, conv, call, args, invocations)
				if err != nil {
					return nil, err
				}
				if handled {
					return outcome, nil
				}
				// Escalation deferred (no contact email); the loop continues
				// with the tool result telling the model what is missing.
				llmMessages = append(llmMessages, toolResultMessage(call.ID,
					"Cannot escalate yet: ask the customer for their email address first."))

			case tool.NameSetUserEmail:
				llmMessages = append(llmMessages, s.handleSetEmail(ctx, conv, call, args))

			default:
				resultMsg, err := s.invokeTool(ctx, conv, call, args)
				if err != nil {
					return nil, err
				}
				invocations++
				llmMessages = append(llmMessages, resultMsg)
			}
		}
	}

	s.log.Warn().
		Str("conversation", conv.Slug).
		Int("max_iterations", s.cfg.MaxToolIterations).
		Msg("tool loop cap reached, sending fallback reply")
	return s.finishReply(ctx, conv, FallbackReply, invocations)
}

// guard returns a skip outcome when the turn must not run, nil otherwise.
func (s *ServiceImpl) guard(ctx context.Context, conv *conversation.Conversation, msg *conversation.Message) *Outcome {
	if conv.Status == conversation.StatusSpam {
		return &Outcome{Kind: OutcomeSkipped, SkipReason: "conversation is marked as spam"}
	}
	if msg.Role == conversation.RoleAIAssistant || msg.Role == conversation.RoleTool {
		return &Outcome{Kind: OutcomeSkipped, SkipReason: "message was not written by a customer"}
	}
	if msg.Role != conversation.RoleStaff && !conv.Ownership.IsAI() {
		return &Outcome{Kind: OutcomeSkipped, SkipReason: "conversation is not assigned to the assistant"}
	}

	latest, err := s.messages.LatestNonToolMessage(ctx, conv.ID)
	if err == nil && latest != nil && latest.ID != msg.ID {
		return &Outcome{Kind: OutcomeSkipped, SkipReason: "a newer message supersedes this one"}
	}
	return nil
}

// handleStaffReply treats a human reply on an AI-owned conversation as a takeover.
func (s *ServiceImpl) handleStaffReply(ctx context.Context, conv *conversation.Conversation, msg *conversation.Message) (*Outcome, error) {
	escalated, err := s.escalator.Escalate(ctx, conv, escalation.TriggerStaffReply, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("escalate on staff reply: %w", err)
	}
	s.fanout.FanOut(ctx, conv, msg, escalated)
	return &Outcome{Kind: OutcomeEscalated, SkipReason: "staff member replied"}, nil
}

func (s *ServiceImpl) handleEscalationCall(
	ctx context.Context,
	conv *conversation.Conversation,
	call llm.ToolCall,
	args map[string]interface{},
	invocations int,
) (*Outcome, bool, error) {
	reason, _ := args["reason"].(string)
	email, _ := args["email"].(string)

	var emailPtr *string
	if strings.TrimSpace(email) != "" {
		emailPtr = &email
	}
	if emailPtr == nil && conv.EmailFrom == nil {
		return nil, false, nil
	}

	var reasonPtr *string
	if strings.TrimSpace(reason) != "" {
		reasonPtr = &reason
	}

	if _, err := s.escalator.Escalate(ctx, conv, escalation.TriggerToolCall, reasonPtr, emailPtr); err != nil {
		// Fail closed: no acknowledgment is persisted when the event is lost.
		return nil, false, fmt.Errorf("escalate conversation: %w", err)
	}

	ack, err := s.persistAssistantMessage(ctx, conv, tool.EscalationAck)
	if err != nil {
		return nil, false, fmt.Errorf("persist escalation acknowledgment: %w", err)
	}
	s.fanout.FanOut(ctx, conv, ack, true)

	return &Outcome{
		Kind:            OutcomeEscalated,
		ReplyText:       tool.EscalationAck,
		ReplyMessageID:  ack.PublicID,
		ToolInvocations: invocations,
	}, true, nil
}

func (s *ServiceImpl) handleSetEmail(ctx context.Context, conv *conversation.Conversation, call llm.ToolCall, args map[string]interface{}) llm.ChatMessage {
	email, _ := args["email"].(string)
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return toolResultMessage(call.ID, "That does not look like a valid email address.")
	}

	conv.EmailFrom = &email
	if err := s.conversations.Update(ctx, conv); err != nil {
		s.log.Error().Err(err).Str("conversation", conv.Slug).Msg("store customer email")
		return toolResultMessage(call.ID, "The email address could not be saved, try again.")
	}
	return toolResultMessage(call.ID, "Email address recorded.")
}

// invokeTool validates, executes, and records one registered tool call. The
// pair of messages (assistant call, tool result) is persisted in order.
func (s *ServiceImpl) invokeTool(
	ctx context.Context,
	conv *conversation.Conversation,
	call llm.ToolCall,
	args map[string]interface{},
) (llm.ChatMessage, error) {
	result := s.executeTool(ctx, call.Function.Name, args)

	callID := call.ID
	toolName := call.Function.Name
	success := result.Success

	assistantMsg := &conversation.Message{
		PublicID:       newPublicID(),
		ConversationID: conv.ID,
		Role:           conversation.RoleAIAssistant,
		ToolCallID:     &callID,
		ToolName:       &toolName,
		ToolArgs:       call.Function.Arguments,
		CreatedAt:      time.Now(),
	}
	if err := s.messages.Create(ctx, assistantMsg); err != nil {
		return llm.ChatMessage{}, fmt.Errorf("persist tool call message: %w", err)
	}

	resultBody := result.Body
	toolMsg := &conversation.Message{
		PublicID:       newPublicID(),
		ConversationID: conv.ID,
		Role:           conversation.RoleTool,
		Body:           resultBody,
		CleanedText:    conversation.CleanText(resultBody),
		ToolCallID:     &callID,
		ToolName:       &toolName,
		ToolSuccess:    &success,
		CreatedAt:      time.Now(),
	}
	if err := s.messages.Create(ctx, toolMsg); err != nil {
		return llm.ChatMessage{}, fmt.Errorf("persist tool result message: %w", err)
	}

	return toolResultMessage(call.ID, resultBody), nil
}

// executeTool resolves and runs a registered tool. Failures become result
// payloads for the model, never turn-level errors.
func (s *ServiceImpl) executeTool(ctx context.Context, slug string, args map[string]interface{}) *tool.Result {
	t, err := s.registry.FindBySlug(ctx, slug)
	if err != nil {
		s.log.Warn().Err(err).Str("tool", slug).Msg("tool lookup failed")
		return &tool.Result{Success: false, Body: fmt.Sprintf("tool %q is not available", slug)}
	}

	validated, err := tool.ValidateArgs(*t, args)
	if err != nil {
		return &tool.Result{Success: false, Body: err.Error()}
	}

	result, err := s.executor.Execute(ctx, *t, validated)
	if err != nil {
		return &tool.Result{Success: false, Body: fmt.Sprintf("tool call failed: %v", err)}
	}
	return result
}

// finishReply persists the terminal assistant message, auto-closes the
// conversation, and fans out side effects.
func (s *ServiceImpl) finishReply(ctx context.Context, conv *conversation.Conversation, text string, invocations int) (*Outcome, error) {
	msg, err := s.persistAssistantMessage(ctx, conv, text)
	if err != nil {
		return nil, fmt.Errorf("persist reply: %w", err)
	}

	if conv.Status == conversation.StatusOpen && conv.Ownership.IsAI() {
		if err := conv.Close(time.Now()); err == nil {
			if err := s.conversations.Update(ctx, conv); err != nil {
				s.log.Error().Err(err).Str("conversation", conv.Slug).Msg("auto-close conversation")
			}
		}
	}

	s.fanout.FanOut(ctx, conv, msg, false)

	return &Outcome{
		Kind:            OutcomeReplied,
		ReplyText:       text,
		ReplyMessageID:  msg.PublicID,
		ToolInvocations: invocations,
	}, nil
}

func (s *ServiceImpl) persistAssistantMessage(ctx context.Context, conv *conversation.Conversation, text string) (*conversation.Message, error) {
	msg := &conversation.Message{
		PublicID:       newPublicID(),
		ConversationID: conv.ID,
		Role:           conversation.RoleAIAssistant,
		Body:           text,
		CleanedText:    conversation.CleanText(text),
		CreatedAt:      time.Now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *ServiceImpl) complete(ctx context.Context, messages []llm.ChatMessage, toolDefs []llm.ToolDefinition) (*llm.ChatCompletionChoice, error) {
	resp, err := retry.ExecuteWithResult(ctx, s.cfg.RetryPolicy, func(ctx context.Context, attempt int) (*llm.ChatCompletionResponse, error) {
		if attempt > 0 {
			s.log.Debug().Int("attempt", attempt).Msg("retrying chat completion")
		}
		return s.provider.CreateChatCompletion(ctx, llm.ChatCompletionRequest{
			Model:    s.cfg.Model,
			Messages: messages,
			Tools:    toolDefs,
		})
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("model returned no choices")
	}
	return &resp.Choices[0], nil
}

func (s *ServiceImpl) toolDefinitions(ctx context.Context, conv *conversation.Conversation) ([]llm.ToolDefinition, error) {
	available, err := s.registry.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}

	defs := make([]llm.ToolDefinition, 0, len(available)+2)
	for _, t := range available {
		defs = append(defs, t.ToLLMTool())
	}

	anonymous := conv.EmailFrom == nil
	defs = append(defs, tool.EscalationDefinition(anonymous))
	if anonymous {
		defs = append(defs, tool.SetUserEmailDefinition())
	}
	return defs, nil
}

// buildMessages renders the full prompt: system, retrieval context, then the
// prior transcript with tool-call/result pairs verbatim.
func (s *ServiceImpl) buildMessages(contextBlock string, history []conversation.Message) []llm.ChatMessage {
	messages := make([]llm.ChatMessage, 0, len(history)+2)
	messages = append(messages, llm.ChatMessage{Role: "system", Content: s.cfg.SystemPrompt})
	if contextBlock != "" {
		messages = append(messages, llm.ChatMessage{Role: "system", Content: "Context:\n" + contextBlock})
	}

	for i := range history {
		m := &history[i]
		switch m.Role {
		case conversation.RoleUser:
			messages = append(messages, llm.ChatMessage{Role: "user", Content: m.CleanedText})
		case conversation.RoleStaff:
			messages = append(messages, llm.ChatMessage{Role: "assistant", Content: m.Body})
		case conversation.RoleAIAssistant:
			if m.ToolCallID != nil && m.ToolName != nil {
				messages = append(messages, llm.ChatMessage{
					Role: "assistant",
					ToolCalls: []llm.ToolCall{{
						ID:   *m.ToolCallID,
						Type: "function",
						Function: llm.ToolFunction{
							Name:      *m.ToolName,
							Arguments: json.RawMessage(m.ToolArgs),
						},
					}},
				})
			} else {
				messages = append(messages, llm.ChatMessage{Role: "assistant", Content: m.Body})
			}
		case conversation.RoleTool:
			if m.ToolCallID != nil {
				messages = append(messages, llm.ChatMessage{
					Role:       "tool",
					Content:    m.Body,
					ToolCallID: m.ToolCallID,
				})
			}
		}
	}

	return messages
}

func toolResultMessage(toolCallID, content string) llm.ChatMessage {
	return llm.ChatMessage{
		Role:       "tool",
		Content:    content,
		ToolCallID: &toolCallID,
	}
}

func newPublicID() string {
	return "msg_" + uuid.NewString()
}
