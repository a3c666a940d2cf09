package escalation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/techmannih/helper-sub007/internal/domain/conversation"
	"github.com/techmannih/helper-sub007/internal/domain/escalation"
)

type mockEventRepo struct {
	CreateFunc func(ctx context.Context, event *escalation.Event) error
	created    []*escalation.Event
}

func (m *mockEventRepo) Create(ctx context.Context, event *escalation.Event) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, event)
	}
	m.created = append(m.created, event)
	return nil
}

type mockConvRepo struct {
	UpdateFunc  func(ctx context.Context, conv *conversation.Conversation) error
	updates     int
	events      []*conversation.Event
	eventErrors error
}

func (m *mockConvRepo) Create(ctx context.Context, conv *conversation.Conversation) error {
	return nil
}

func (m *mockConvRepo) FindBySlug(ctx context.Context, slug string) (*conversation.Conversation, error) {
	return nil, errors.New("not implemented")
}

func (m *mockConvRepo) FindByID(ctx context.Context, id uint) (*conversation.Conversation, error) {
	return nil, errors.New("not implemented")
}

func (m *mockConvRepo) Update(ctx context.Context, conv *conversation.Conversation) error {
	m.updates++
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, conv)
	}
	return nil
}

func (m *mockConvRepo) RecordEvent(ctx context.Context, event *conversation.Event) error {
	m.events = append(m.events, event)
	return m.eventErrors
}

func (m *mockConvRepo) SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]conversation.SimilarConversation, error) {
	return nil, nil
}

func (m *mockConvRepo) UpdateEmbedding(ctx context.Context, id uint, embedding []float32, embeddingText string) error {
	return nil
}

func aiOwnedConversation() *conversation.Conversation {
	return &conversation.Conversation{
		ID:        1,
		Slug:      "conv-1",
		Subject:   conversation.PlaceholderSubject,
		Status:    conversation.StatusOpen,
		Ownership: conversation.AIOwned(),
	}
}

func TestEscalate_TransfersOwnership(t *testing.T) {
	events := &mockEventRepo{}
	convs := &mockConvRepo{}
	detector := escalation.NewDetector(events, convs, zerolog.Nop())

	conv := aiOwnedConversation()
	reason := "customer asked for a human"
	escalated, err := detector.Escalate(context.Background(), conv, escalation.TriggerToolCall, &reason, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !escalated {
		t.Fatal("expected escalation to proceed")
	}
	if conv.Ownership.IsAI() {
		t.Error("conversation should no longer be AI-owned")
	}
	if conv.Status != conversation.StatusOpen {
		t.Errorf("escalated conversation must stay open, got %s", conv.Status)
	}
	if len(events.created) != 1 {
		t.Fatalf("expected one escalation event, got %d", len(events.created))
	}
	if events.created[0].Trigger != escalation.TriggerToolCall {
		t.Errorf("unexpected trigger: %s", events.created[0].Trigger)
	}
}

func TestEscalate_IdempotentForHumanOwned(t *testing.T) {
	events := &mockEventRepo{}
	convs := &mockConvRepo{}
	detector := escalation.NewDetector(events, convs, zerolog.Nop())

	conv := aiOwnedConversation()
	if _, err := detector.Escalate(context.Background(), conv, escalation.TriggerToolCall, nil, nil); err != nil {
		t.Fatalf("first escalation failed: %v", err)
	}

	escalated, err := detector.Escalate(context.Background(), conv, escalation.TriggerBadFlag, nil, nil)
	if err != nil {
		t.Fatalf("re-trigger must not error: %v", err)
	}
	if escalated {
		t.Error("re-triggering an escalated conversation must be a no-op")
	}
	if len(events.created) != 1 {
		t.Errorf("expected exactly one event, got %d", len(events.created))
	}
	if convs.updates != 1 {
		t.Errorf("expected exactly one conversation update, got %d", convs.updates)
	}
}

func TestEscalate_FailsClosedOnEventPersistence(t *testing.T) {
	events := &mockEventRepo{
		CreateFunc: func(ctx context.Context, event *escalation.Event) error {
			return errors.New("disk full")
		},
	}
	convs := &mockConvRepo{}
	detector := escalation.NewDetector(events, convs, zerolog.Nop())

	conv := aiOwnedConversation()
	_, err := detector.Escalate(context.Background(), conv, escalation.TriggerToolCall, nil, nil)
	if err == nil {
		t.Fatal("expected error when event persistence fails")
	}
	if !conv.Ownership.IsAI() {
		t.Error("ownership must not change when the event was not persisted")
	}
	if convs.updates != 0 {
		t.Error("conversation must not be updated when the event was not persisted")
	}
}

func TestEscalate_RecordsContactEmail(t *testing.T) {
	events := &mockEventRepo{}
	convs := &mockConvRepo{}
	detector := escalation.NewDetector(events, convs, zerolog.Nop())

	conv := aiOwnedConversation()
	email := "customer@example.com"
	if _, err := detector.Escalate(context.Background(), conv, escalation.TriggerToolCall, nil, &email); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv.EmailFrom == nil || *conv.EmailFrom != email {
		t.Error("contact email should be recorded on the conversation")
	}
}
