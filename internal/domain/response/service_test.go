package response_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/techmannih/helper-sub007/internal/domain/conversation"
	"github.com/techmannih/helper-sub007/internal/domain/escalation"
	"github.com/techmannih/helper-sub007/internal/domain/llm"
	"github.com/techmannih/helper-sub007/internal/domain/response"
	"github.com/techmannih/helper-sub007/internal/domain/retry"
	"github.com/techmannih/helper-sub007/internal/domain/tool"
)

// ---- mocks ----

type mockConvRepo struct {
	convs map[string]*conversation.Conversation
}

func newMockConvRepo(convs ...*conversation.Conversation) *mockConvRepo {
	m := &mockConvRepo{convs: make(map[string]*conversation.Conversation)}
	for _, c := range convs {
		m.convs[c.Slug] = c
	}
	return m
}

func (m *mockConvRepo) Create(ctx context.Context, conv *conversation.Conversation) error {
	m.convs[conv.Slug] = conv
	return nil
}

func (m *mockConvRepo) FindBySlug(ctx context.Context, slug string) (*conversation.Conversation, error) {
	if c, ok := m.convs[slug]; ok {
		return c, nil
	}
	return nil, errors.New("conversation not found")
}

func (m *mockConvRepo) FindByID(ctx context.Context, id uint) (*conversation.Conversation, error) {
	for _, c := range m.convs {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, errors.New("conversation not found")
}

func (m *mockConvRepo) Update(ctx context.Context, conv *conversation.Conversation) error {
	m.convs[conv.Slug] = conv
	return nil
}

func (m *mockConvRepo) RecordEvent(ctx context.Context, event *conversation.Event) error { return nil }

func (m *mockConvRepo) SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]conversation.SimilarConversation, error) {
	return nil, nil
}

func (m *mockConvRepo) UpdateEmbedding(ctx context.Context, id uint, embedding []float32, embeddingText string) error {
	return nil
}

type mockMessageRepo struct {
	messages []*conversation.Message
	nextID   uint
}

func newMockMessageRepo(messages ...*conversation.Message) *mockMessageRepo {
	m := &mockMessageRepo{nextID: 100}
	for _, msg := range messages {
		m.messages = append(m.messages, msg)
	}
	return m
}

func (m *mockMessageRepo) Create(ctx context.Context, msg *conversation.Message) error {
	m.nextID++
	msg.ID = m.nextID
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockMessageRepo) FindByID(ctx context.Context, id uint) (*conversation.Message, error) {
	for _, msg := range m.messages {
		if msg.ID == id {
			return msg, nil
		}
	}
	return nil, errors.New("message not found")
}

func (m *mockMessageRepo) FindByPublicID(ctx context.Context, publicID string) (*conversation.Message, error) {
	for _, msg := range m.messages {
		if msg.PublicID == publicID {
			return msg, nil
		}
	}
	return nil, errors.New("message not found")
}

func (m *mockMessageRepo) ListByConversationID(ctx context.Context, conversationID uint) ([]conversation.Message, error) {
	var out []conversation.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (m *mockMessageRepo) LatestNonToolMessage(ctx context.Context, conversationID uint) (*conversation.Message, error) {
	for i := len(m.messages) - 1; i >= 0; i-- {
		msg := m.messages[i]
		if msg.ConversationID == conversationID && !msg.IsToolPair() {
			return msg, nil
		}
	}
	return nil, nil
}

func (m *mockMessageRepo) FirstUserMessage(ctx context.Context, conversationID uint) (*conversation.Message, error) {
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID && msg.Role == conversation.RoleUser {
			return msg, nil
		}
	}
	return nil, errors.New("no user message")
}

func (m *mockMessageRepo) CountByConversationID(ctx context.Context, conversationID uint) (int64, error) {
	var count int64
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			count++
		}
	}
	return count, nil
}

func (m *mockMessageRepo) FlagAsBad(ctx context.Context, id uint, reason *string) error { return nil }

func (m *mockMessageRepo) byRole(role conversation.MessageRole) []*conversation.Message {
	var out []*conversation.Message
	for _, msg := range m.messages {
		if msg.Role == role {
			out = append(out, msg)
		}
	}
	return out
}

type mockRegistry struct {
	tools []tool.Tool
}

func (m *mockRegistry) ListAvailable(ctx context.Context) ([]tool.Tool, error) {
	return m.tools, nil
}

func (m *mockRegistry) FindBySlug(ctx context.Context, slug string) (*tool.Tool, error) {
	for i := range m.tools {
		if m.tools[i].Slug == slug {
			return &m.tools[i], nil
		}
	}
	return nil, fmt.Errorf("tool not found: %s", slug)
}

type mockExecutor struct {
	ExecuteFunc func(ctx context.Context, t tool.Tool, args map[string]tool.Value) (*tool.Result, error)
	calls       int
}

func (m *mockExecutor) Execute(ctx context.Context, t tool.Tool, args map[string]tool.Value) (*tool.Result, error) {
	m.calls++
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, t, args)
	}
	return &tool.Result{Success: true, Body: `{"ok":true}`}, nil
}

type mockEscalator struct {
	EscalateFunc func(ctx context.Context, conv *conversation.Conversation, trigger escalation.Trigger, reason, email *string) (bool, error)
	calls        int
}

func (m *mockEscalator) Escalate(ctx context.Context, conv *conversation.Conversation, trigger escalation.Trigger, reason, email *string) (bool, error) {
	m.calls++
	if m.EscalateFunc != nil {
		return m.EscalateFunc(ctx, conv, trigger, reason, email)
	}
	if !conv.Ownership.IsAI() {
		return false, nil
	}
	conv.Ownership = conversation.HumanOwned(nil)
	return true, nil
}

type mockAssembler struct {
	AssembleFunc func(ctx context.Context, systemPrompt, query string) (string, error)
}

func (m *mockAssembler) Assemble(ctx context.Context, systemPrompt, query string) (string, error) {
	if m.AssembleFunc != nil {
		return m.AssembleFunc(ctx, systemPrompt, query)
	}
	return "", nil
}

type mockFanout struct {
	calls []string
}

func (m *mockFanout) FanOut(ctx context.Context, conv *conversation.Conversation, msg *conversation.Message, escalated bool) {
	m.calls = append(m.calls, fmt.Sprintf("%s/%v", msg.Role, escalated))
}

type mockProvider struct {
	CreateFunc func(ctx context.Context, req llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error)
	calls      int
}

func (m *mockProvider) CreateChatCompletion(ctx context.Context, req llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	m.calls++
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	return textCompletion("Here is your answer."), nil
}

// ---- helpers ----

func textCompletion(text string) *llm.ChatCompletionResponse {
	return &llm.ChatCompletionResponse{
		Choices: []llm.ChatCompletionChoice{{
			Message: llm.ChatMessage{Role: "assistant", Content: text},
		}},
	}
}

func toolCallCompletion(id, name, args string) *llm.ChatCompletionResponse {
	return &llm.ChatCompletionResponse{
		Choices: []llm.ChatCompletionChoice{{
			Message: llm.ChatMessage{
				Role: "assistant",
				ToolCalls: []llm.ToolCall{{
					ID:   id,
					Type: "function",
					Function: llm.ToolFunction{
						Name:      name,
						Arguments: json.RawMessage(args),
					},
				}},
			},
		}},
	}
}

type fixture struct {
	convs     *mockConvRepo
	messages  *mockMessageRepo
	registry  *mockRegistry
	executor  *mockExecutor
	escalator *mockEscalator
	fanout    *mockFanout
	provider  *mockProvider
	service   *response.ServiceImpl
	conv      *conversation.Conversation
	inbound   *conversation.Message
}

func newFixture(provider *mockProvider, tools ...tool.Tool) *fixture {
	conv := &conversation.Conversation{
		ID:        1,
		Slug:      "conv-1",
		Subject:   conversation.PlaceholderSubject,
		Status:    conversation.StatusOpen,
		Ownership: conversation.AIOwned(),
	}
	email := "customer@example.com"
	conv.EmailFrom = &email

	inbound := &conversation.Message{
		ID:             1,
		PublicID:       "msg_inbound",
		ConversationID: 1,
		Role:           conversation.RoleUser,
		Body:           "Where is my order?",
		CleanedText:    "Where is my order?",
	}

	f := &fixture{
		convs:     newMockConvRepo(conv),
		messages:  newMockMessageRepo(inbound),
		registry:  &mockRegistry{tools: tools},
		executor:  &mockExecutor{},
		escalator: &mockEscalator{},
		fanout:    &mockFanout{},
		provider:  provider,
		conv:      conv,
		inbound:   inbound,
	}
	f.service = response.NewService(
		f.convs,
		f.messages,
		f.registry,
		f.executor,
		f.escalator,
		&mockAssembler{},
		f.fanout,
		f.provider,
		response.Config{
			Model:             "gpt-test",
			MaxToolIterations: 5,
			RetryPolicy:       retry.NoRetryPolicy(),
		},
		zerolog.Nop(),
	)
	return f
}

// ---- tests ----

func TestRespond_PlainReply(t *testing.T) {
	f := newFixture(&mockProvider{})

	outcome, err := f.service.Respond(context.Background(), "conv-1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != response.OutcomeReplied {
		t.Fatalf("expected replied, got %s", outcome.Kind)
	}
	if outcome.ReplyText != "Here is your answer." {
		t.Errorf("unexpected reply: %q", outcome.ReplyText)
	}

	replies := f.messages.byRole(conversation.RoleAIAssistant)
	if len(replies) != 1 {
		t.Fatalf("expected one persisted assistant message, got %d", len(replies))
	}
	if replies[0].ToolCallID != nil {
		t.Error("terminal reply must carry no tool metadata")
	}
	if f.conv.Status != conversation.StatusClosed {
		t.Errorf("AI-resolved conversation should auto-close, got %s", f.conv.Status)
	}
	if len(f.fanout.calls) != 1 {
		t.Errorf("expected one fanout call, got %d", len(f.fanout.calls))
	}
}

func TestRespond_ToolLoopThenReply(t *testing.T) {
	orderTool := tool.Tool{
		Slug:   "lookup_order",
		Method: "GET",
		URL:    "https://api.example.com/orders",
		Params: []tool.Param{{Name: "order_id", Type: tool.ParamNumber, Required: true}},
	}

	provider := &mockProvider{}
	provider.CreateFunc = func(ctx context.Context, req llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
		if provider.calls == 1 {
			return toolCallCompletion("call_1", "lookup_order", `{"order_id":"12"}`), nil
		}
		return textCompletion("Your order ships tomorrow."), nil
	}

	f := newFixture(provider, orderTool)

	outcome, err := f.service.Respond(context.Background(), "conv-1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != response.OutcomeReplied {
		t.Fatalf("expected replied, got %s", outcome.Kind)
	}
	if outcome.ToolInvocations != 1 {
		t.Errorf("expected 1 tool invocation, got %d", outcome.ToolInvocations)
	}
	if f.executor.calls != 1 {
		t.Errorf("executor should run once, ran %d times", f.executor.calls)
	}

	// Tool pair persisted in order before the final reply.
	toolMsgs := f.messages.byRole(conversation.RoleTool)
	if len(toolMsgs) != 1 {
		t.Fatalf("expected one tool result message, got %d", len(toolMsgs))
	}
	if toolMsgs[0].ToolCallID == nil || *toolMsgs[0].ToolCallID != "call_1" {
		t.Error("tool result should carry the call ID")
	}
	assistantMsgs := f.messages.byRole(conversation.RoleAIAssistant)
	if len(assistantMsgs) != 2 {
		t.Fatalf("expected tool-call message plus final reply, got %d", len(assistantMsgs))
	}
	if assistantMsgs[0].ToolCallID == nil {
		t.Error("first assistant message should be the tool call record")
	}
	if assistantMsgs[1].ToolCallID != nil {
		t.Error("final reply must not carry tool metadata")
	}
}

func TestRespond_InvalidToolArgsNeverReachExecutor(t *testing.T) {
	orderTool := tool.Tool{
		Slug:   "lookup_order",
		Method: "GET",
		URL:    "https://api.example.com/orders",
		Params: []tool.Param{{Name: "order_id", Type: tool.ParamNumber, Required: true}},
	}

	provider := &mockProvider{}
	provider.CreateFunc = func(ctx context.Context, req llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
		if provider.calls == 1 {
			return toolCallCompletion("call_1", "lookup_order", `{"order_id":"abc"}`), nil
		}
		return textCompletion("Sorry, I could not look that up."), nil
	}

	f := newFixture(provider, orderTool)

	outcome, err := f.service.Respond(context.Background(), "conv-1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.executor.calls != 0 {
		t.Error("invalid arguments must be rejected before any HTTP call")
	}
	if outcome.Kind != response.OutcomeReplied {
		t.Errorf("validation failure should not end the turn, got %s", outcome.Kind)
	}

	toolMsgs := f.messages.byRole(conversation.RoleTool)
	if len(toolMsgs) != 1 || toolMsgs[0].ToolSuccess == nil || *toolMsgs[0].ToolSuccess {
		t.Error("validation failure should be recorded as an unsuccessful tool result")
	}
}

func TestRespond_LoopCapProducesFallback(t *testing.T) {
	orderTool := tool.Tool{
		Slug:   "lookup_order",
		Method: "GET",
		URL:    "https://api.example.com/orders",
		Params: []tool.Param{{Name: "order_id", Type: tool.ParamNumber, Required: true}},
	}

	provider := &mockProvider{
		CreateFunc: func(ctx context.Context, req llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
			return toolCallCompletion("call_n", "lookup_order", `{"order_id":7}`), nil
		},
	}

	f := newFixture(provider, orderTool)

	outcome, err := f.service.Respond(context.Background(), "conv-1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.calls != 5 {
		t.Errorf("expected exactly 5 model calls, got %d", provider.calls)
	}
	if outcome.Kind != response.OutcomeReplied {
		t.Fatalf("expected fallback reply, got %s", outcome.Kind)
	}
	if outcome.ReplyText != response.FallbackReply {
		t.Errorf("expected canned fallback, got %q", outcome.ReplyText)
	}
}

func TestRespond_EscalationShortCircuits(t *testing.T) {
	provider := &mockProvider{
		CreateFunc: func(ctx context.Context, req llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
			return toolCallCompletion("call_1", tool.NameRequestHumanSupport, `{"reason":"refund dispute"}`), nil
		},
	}

	f := newFixture(provider)

	outcome, err := f.service.Respond(context.Background(), "conv-1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != response.OutcomeEscalated {
		t.Fatalf("expected escalated outcome, got %s", outcome.Kind)
	}
	if outcome.ReplyText != tool.EscalationAck {
		t.Errorf("expected fixed acknowledgment, got %q", outcome.ReplyText)
	}
	if provider.calls != 1 {
		t.Errorf("escalation must short-circuit the loop, model called %d times", provider.calls)
	}
	if f.escalator.calls != 1 {
		t.Errorf("expected one escalation, got %d", f.escalator.calls)
	}
}

func TestRespond_EscalationFailureAbortsBeforeReply(t *testing.T) {
	provider := &mockProvider{
		CreateFunc: func(ctx context.Context, req llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
			return toolCallCompletion("call_1", tool.NameRequestHumanSupport, `{"reason":"refund"}`), nil
		},
	}

	f := newFixture(provider)
	f.escalator.EscalateFunc = func(ctx context.Context, conv *conversation.Conversation, trigger escalation.Trigger, reason, email *string) (bool, error) {
		return false, errors.New("event store unavailable")
	}

	_, err := f.service.Respond(context.Background(), "conv-1", 1)
	if err == nil {
		t.Fatal("expected turn-level error when escalation persistence fails")
	}
	if len(f.messages.byRole(conversation.RoleAIAssistant)) != 0 {
		t.Error("no assistant message may be persisted when escalation fails")
	}
}

func TestRespond_ProviderFailureLeavesConversationUntouched(t *testing.T) {
	provider := &mockProvider{
		CreateFunc: func(ctx context.Context, req llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
			return nil, errors.New("upstream 503")
		},
	}

	f := newFixture(provider)

	_, err := f.service.Respond(context.Background(), "conv-1", 1)
	if err == nil {
		t.Fatal("expected request-level error")
	}
	if len(f.messages.byRole(conversation.RoleAIAssistant)) != 0 {
		t.Error("no partial assistant message may be persisted")
	}
	if f.conv.Status != conversation.StatusOpen || !f.conv.Ownership.IsAI() {
		t.Error("conversation must stay open and AI-owned after a provider failure")
	}
}

func TestRespond_Guards(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(f *fixture)
		reason  string
	}{
		{
			name: "spam conversation",
			prepare: func(f *fixture) {
				f.conv.Status = conversation.StatusSpam
			},
			reason: "spam",
		},
		{
			name: "not assigned to assistant",
			prepare: func(f *fixture) {
				f.conv.Ownership = conversation.HumanOwned(nil)
			},
			reason: "not assigned",
		},
		{
			name: "newer message exists",
			prepare: func(f *fixture) {
				newer := &conversation.Message{
					ConversationID: 1,
					Role:           conversation.RoleUser,
					Body:           "Actually never mind",
					CleanedText:    "Actually never mind",
				}
				_ = f.messages.Create(context.Background(), newer)
			},
			reason: "newer message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(&mockProvider{})
			tt.prepare(f)

			outcome, err := f.service.Respond(context.Background(), "conv-1", 1)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if outcome.Kind != response.OutcomeSkipped {
				t.Fatalf("expected skipped, got %s", outcome.Kind)
			}
			if f.provider.calls != 0 {
				t.Error("guarded turn must not call the model")
			}
		})
	}
}

func TestRespond_StaffReplyEscalates(t *testing.T) {
	f := newFixture(&mockProvider{})

	staffMsg := &conversation.Message{
		ConversationID: 1,
		Role:           conversation.RoleStaff,
		Body:           "I'll take this from here.",
	}
	_ = f.messages.Create(context.Background(), staffMsg)

	outcome, err := f.service.Respond(context.Background(), "conv-1", staffMsg.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != response.OutcomeEscalated {
		t.Fatalf("expected escalated, got %s", outcome.Kind)
	}
	if f.escalator.calls != 1 {
		t.Error("staff reply should trigger the escalation detector")
	}
	if f.provider.calls != 0 {
		t.Error("staff reply must not trigger a model call")
	}
}

func TestRespond_AnonymousEscalationAsksForEmail(t *testing.T) {
	provider := &mockProvider{}
	provider.CreateFunc = func(ctx context.Context, req llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
		if provider.calls == 1 {
			return toolCallCompletion("call_1", tool.NameRequestHumanSupport, `{"reason":"help"}`), nil
		}
		return textCompletion("Could you share your email address so a human can reach you?"), nil
	}

	f := newFixture(provider)
	f.conv.EmailFrom = nil

	outcome, err := f.service.Respond(context.Background(), "conv-1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != response.OutcomeReplied {
		t.Fatalf("expected a reply asking for email, got %s", outcome.Kind)
	}
	if f.escalator.calls != 0 {
		t.Error("escalation without a contact email must be deferred")
	}
}
