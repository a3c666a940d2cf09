package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/techmannih/helper-sub007/internal/domain/conversation"
	"github.com/techmannih/helper-sub007/internal/domain/escalation"
	"github.com/techmannih/helper-sub007/internal/domain/fanout"
	"github.com/techmannih/helper-sub007/internal/domain/response"
	"github.com/techmannih/helper-sub007/internal/interfaces/httpserver/handlers"
)

// MockConversationRepository implements conversation.Repository for testing.
type MockConversationRepository struct {
	convs map[string]*conversation.Conversation
}

func newMockConversationRepository(convs ...*conversation.Conversation) *MockConversationRepository {
	m := &MockConversationRepository{convs: make(map[string]*conversation.Conversation)}
	for _, c := range convs {
		m.convs[c.Slug] = c
	}
	return m
}

func (m *MockConversationRepository) Create(ctx context.Context, conv *conversation.Conversation) error {
	conv.ID = uint(len(m.convs) + 1)
	m.convs[conv.Slug] = conv
	return nil
}

func (m *MockConversationRepository) FindBySlug(ctx context.Context, slug string) (*conversation.Conversation, error) {
	if c, ok := m.convs[slug]; ok {
		return c, nil
	}
	return nil, conversation.ErrNotFound
}

func (m *MockConversationRepository) FindByID(ctx context.Context, id uint) (*conversation.Conversation, error) {
	for _, c := range m.convs {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, conversation.ErrNotFound
}

func (m *MockConversationRepository) Update(ctx context.Context, conv *conversation.Conversation) error {
	m.convs[conv.Slug] = conv
	return nil
}

func (m *MockConversationRepository) RecordEvent(ctx context.Context, event *conversation.Event) error {
	return nil
}

func (m *MockConversationRepository) SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]conversation.SimilarConversation, error) {
	return nil, nil
}

func (m *MockConversationRepository) UpdateEmbedding(ctx context.Context, id uint, embedding []float32, embeddingText string) error {
	return nil
}

// MockMessageRepository implements conversation.MessageRepository for testing.
type MockMessageRepository struct {
	messages []*conversation.Message
	flagged  map[uint]bool
	nextID   uint
}

func newMockMessageRepository(messages ...*conversation.Message) *MockMessageRepository {
	m := &MockMessageRepository{flagged: make(map[uint]bool), nextID: 10}
	m.messages = append(m.messages, messages...)
	return m
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *conversation.Message) error {
	m.nextID++
	msg.ID = m.nextID
	m.messages = append(m.messages, msg)
	return nil
}

func (m *MockMessageRepository) FindByID(ctx context.Context, id uint) (*conversation.Message, error) {
	for _, msg := range m.messages {
		if msg.ID == id {
			return msg, nil
		}
	}
	return nil, conversation.ErrMessageNotFound
}

func (m *MockMessageRepository) FindByPublicID(ctx context.Context, publicID string) (*conversation.Message, error) {
	for _, msg := range m.messages {
		if msg.PublicID == publicID {
			return msg, nil
		}
	}
	return nil, conversation.ErrMessageNotFound
}

func (m *MockMessageRepository) ListByConversationID(ctx context.Context, conversationID uint) ([]conversation.Message, error) {
	var out []conversation.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (m *MockMessageRepository) LatestNonToolMessage(ctx context.Context, conversationID uint) (*conversation.Message, error) {
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].ConversationID == conversationID && !m.messages[i].IsToolPair() {
			return m.messages[i], nil
		}
	}
	return nil, nil
}

func (m *MockMessageRepository) FirstUserMessage(ctx context.Context, conversationID uint) (*conversation.Message, error) {
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID && msg.Role == conversation.RoleUser {
			return msg, nil
		}
	}
	return nil, conversation.ErrMessageNotFound
}

func (m *MockMessageRepository) CountByConversationID(ctx context.Context, conversationID uint) (int64, error) {
	var count int64
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			count++
		}
	}
	return count, nil
}

func (m *MockMessageRepository) FlagAsBad(ctx context.Context, id uint, reason *string) error {
	m.flagged[id] = true
	return nil
}

// MockResponseService implements response.Service for testing.
type MockResponseService struct {
	RespondFunc func(ctx context.Context, conversationSlug string, messageID uint) (*response.Outcome, error)
}

func (m *MockResponseService) Respond(ctx context.Context, conversationSlug string, messageID uint) (*response.Outcome, error) {
	if m.RespondFunc != nil {
		return m.RespondFunc(ctx, conversationSlug, messageID)
	}
	return &response.Outcome{Kind: response.OutcomeReplied, ReplyText: "done"}, nil
}

type mockEventRepo struct {
	events []*escalation.Event
}

func (m *mockEventRepo) Create(ctx context.Context, event *escalation.Event) error {
	m.events = append(m.events, event)
	return nil
}

type mockJobRepo struct {
	jobs []*fanout.Job
}

func (m *mockJobRepo) Enqueue(ctx context.Context, job *fanout.Job) (bool, error) {
	m.jobs = append(m.jobs, job)
	return true, nil
}

type handlerFixture struct {
	convs   *MockConversationRepository
	msgs    *MockMessageRepository
	service *MockResponseService
	events  *mockEventRepo
	jobs    *mockJobRepo
	router  *gin.Engine
}

func newHandlerFixture(convs *MockConversationRepository, msgs *MockMessageRepository) *handlerFixture {
	gin.SetMode(gin.TestMode)

	f := &handlerFixture{
		convs:   convs,
		msgs:    msgs,
		service: &MockResponseService{},
		events:  &mockEventRepo{},
		jobs:    &mockJobRepo{},
	}

	detector := escalation.NewDetector(f.events, convs, zerolog.Nop())
	fanoutService := fanout.NewService(f.jobs, msgs, fanout.Config{SummaryMessageThreshold: 10}, zerolog.Nop())
	handler := handlers.NewChatHandler(convs, msgs, f.service, detector, fanoutService, zerolog.Nop())

	router := gin.New()
	router.POST("/v1/chat/conversations", handler.CreateConversation)
	router.GET("/v1/chat/conversations/:slug", handler.GetConversation)
	router.POST("/v1/chat/conversations/:slug/messages", handler.SendMessage)
	router.POST("/v1/chat/conversations/:slug/messages/:message_id/flag", handler.FlagMessage)
	f.router = router
	return f
}

func (f *handlerFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func openConversation(slug string) *conversation.Conversation {
	return &conversation.Conversation{
		ID:        1,
		Slug:      slug,
		Subject:   conversation.PlaceholderSubject,
		Status:    conversation.StatusOpen,
		Ownership: conversation.AIOwned(),
		CreatedAt: time.Now(),
	}
}

func TestCreateConversation(t *testing.T) {
	f := newHandlerFixture(newMockConversationRepository(), newMockMessageRepository())

	rec := f.do(t, http.MethodPost, "/v1/chat/conversations", map[string]string{"email": "a@b.com"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Slug    string `json:"slug"`
		Subject string `json:"subject"`
		Status  string `json:"status"`
		Owner   string `json:"owner"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Slug == "" {
		t.Error("expected generated slug")
	}
	if payload.Subject != conversation.PlaceholderSubject {
		t.Errorf("expected placeholder subject, got %q", payload.Subject)
	}
	if payload.Status != "open" || payload.Owner != "ai" {
		t.Errorf("new conversation must be open and AI-owned, got %s/%s", payload.Status, payload.Owner)
	}
}

func TestSendMessage_UnknownConversation(t *testing.T) {
	f := newHandlerFixture(newMockConversationRepository(), newMockMessageRepository())

	rec := f.do(t, http.MethodPost, "/v1/chat/conversations/missing/messages", map[string]string{"body": "hi"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSendMessage_RunsTurn(t *testing.T) {
	conv := openConversation("conv-1")
	f := newHandlerFixture(newMockConversationRepository(conv), newMockMessageRepository())

	var gotSlug string
	var gotMessageID uint
	f.service.RespondFunc = func(ctx context.Context, slug string, messageID uint) (*response.Outcome, error) {
		gotSlug = slug
		gotMessageID = messageID
		return &response.Outcome{Kind: response.OutcomeReplied, ReplyText: "answer"}, nil
	}

	rec := f.do(t, http.MethodPost, "/v1/chat/conversations/conv-1/messages", map[string]string{"body": "  hello   there "})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotSlug != "conv-1" || gotMessageID == 0 {
		t.Errorf("service called with slug=%q id=%d", gotSlug, gotMessageID)
	}

	stored, err := f.msgs.FindByID(context.Background(), gotMessageID)
	if err != nil {
		t.Fatalf("stored message: %v", err)
	}
	if stored.CleanedText != "hello there" {
		t.Errorf("whitespace should be normalized, got %q", stored.CleanedText)
	}

	var payload struct {
		Outcome   string `json:"outcome"`
		ReplyText string `json:"reply_text"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Outcome != "replied" || payload.ReplyText != "answer" {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestSendMessage_ReopensClosedConversation(t *testing.T) {
	conv := openConversation("conv-1")
	if err := conv.Close(time.Now()); err != nil {
		t.Fatalf("close: %v", err)
	}
	f := newHandlerFixture(newMockConversationRepository(conv), newMockMessageRepository())

	rec := f.do(t, http.MethodPost, "/v1/chat/conversations/conv-1/messages", map[string]string{"body": "it broke again"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if conv.Status != conversation.StatusOpen {
		t.Errorf("conversation should reopen, got %s", conv.Status)
	}
	if !conv.Ownership.IsAI() {
		t.Error("reopen should restore the pre-close AI ownership")
	}

	var sawListBroadcast bool
	for _, job := range f.jobs.jobs {
		if job.Type == fanout.JobBroadcastConversationList {
			sawListBroadcast = true
		}
	}
	if !sawListBroadcast {
		t.Error("reopen should broadcast the conversation list")
	}
}

func TestSendMessage_TurnFailure(t *testing.T) {
	conv := openConversation("conv-1")
	f := newHandlerFixture(newMockConversationRepository(conv), newMockMessageRepository())
	f.service.RespondFunc = func(ctx context.Context, slug string, messageID uint) (*response.Outcome, error) {
		return nil, errors.New("model unavailable")
	}

	rec := f.do(t, http.MethodPost, "/v1/chat/conversations/conv-1/messages", map[string]string{"body": "hi"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestFlagMessage_EscalatesConversation(t *testing.T) {
	conv := openConversation("conv-1")
	reply := &conversation.Message{
		ID:             5,
		PublicID:       "msg_reply",
		ConversationID: 1,
		Role:           conversation.RoleAIAssistant,
		Body:           "wrong answer",
	}
	f := newHandlerFixture(newMockConversationRepository(conv), newMockMessageRepository(reply))

	rec := f.do(t, http.MethodPost, "/v1/chat/conversations/conv-1/messages/msg_reply/flag", map[string]string{"reason": "not helpful"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if !f.msgs.flagged[5] {
		t.Error("message should be flagged")
	}
	if len(f.events.events) != 1 {
		t.Fatalf("expected one escalation event, got %d", len(f.events.events))
	}
	if f.events.events[0].Trigger != escalation.TriggerBadFlag {
		t.Errorf("unexpected trigger: %s", f.events.events[0].Trigger)
	}
	if conv.Ownership.IsAI() {
		t.Error("flagging should hand the conversation to a human")
	}
}

func TestFlagMessage_WrongConversation(t *testing.T) {
	conv := openConversation("conv-1")
	other := &conversation.Message{
		ID:             6,
		PublicID:       "msg_other",
		ConversationID: 99,
		Role:           conversation.RoleAIAssistant,
	}
	f := newHandlerFixture(newMockConversationRepository(conv), newMockMessageRepository(other))

	rec := f.do(t, http.MethodPost, "/v1/chat/conversations/conv-1/messages/msg_other/flag", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
