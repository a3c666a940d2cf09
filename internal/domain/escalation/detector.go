// Package escalation detects and records handoffs from the assistant to humans.
package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/techmannih/helper-sub007/internal/domain/conversation"
)

// Trigger identifies what caused an escalation.
type Trigger string

const (
	TriggerToolCall   Trigger = "tool_call"
	TriggerStaffReply Trigger = "staff_reply"
	TriggerBadFlag    Trigger = "bad_flag"
)

// Event is the persisted record of one escalation.
type Event struct {
	ID             uint
	ConversationID uint
	Trigger        Trigger
	Reason         *string
	Email          *string
	CreatedAt      time.Time
}

// EventRepository persists escalation events.
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
}

// Detector drives the conversation ownership state machine on escalation
// triggers. Escalation fails closed: if the event cannot be persisted the
// turn is aborted before any assistant reply is stored.
type Detector struct {
	events        EventRepository
	conversations conversation.Repository
	log           zerolog.Logger
}

// NewDetector wires dependencies.
func NewDetector(events EventRepository, conversations conversation.Repository, log zerolog.Logger) *Detector {
	return &Detector{
		events:        events,
		conversations: conversations,
		log:           log.With().Str("component", "escalation").Logger(),
	}
}

// Escalate transfers the conversation to human ownership. Re-triggering an
// already escalated conversation is a no-op and returns false.
func (d *Detector) Escalate(ctx context.Context, conv *conversation.Conversation, trigger Trigger, reason, email *string) (bool, error) {
	if !conv.Ownership.IsAI() {
		d.log.Debug().
			Str("conversation", conv.Slug).
			Str("trigger", string(trigger)).
			Msg("conversation already human-owned, escalation is a no-op")
		return false, nil
	}

	now := time.Now()
	event := &Event{
		ConversationID: conv.ID,
		Trigger:        trigger,
		Reason:         reason,
		Email:          email,
		CreatedAt:      now,
	}
	if err := d.events.Create(ctx, event); err != nil {
		return false, fmt.Errorf("persist escalation event: %w", err)
	}

	conv.Escalate(now)
	if email != nil && conv.EmailFrom == nil {
		conv.EmailFrom = email
	}
	if err := d.conversations.Update(ctx, conv); err != nil {
		return false, fmt.Errorf("update escalated conversation: %w", err)
	}

	changed := map[string]string{
		"ownership": string(conversation.OwnerHuman),
		"status":    string(conv.Status),
	}
	auditReason := string(trigger)
	if reason != nil {
		auditReason = fmt.Sprintf("%s: %s", trigger, *reason)
	}
	if err := d.conversations.RecordEvent(ctx, &conversation.Event{
		ConversationID: conv.ID,
		Type:           "escalated",
		ChangedFields:  changed,
		Reason:         auditReason,
		CreatedAt:      now,
	}); err != nil {
		d.log.Error().Err(err).Str("conversation", conv.Slug).Msg("record escalation audit event")
	}

	d.log.Info().
		Str("conversation", conv.Slug).
		Str("trigger", string(trigger)).
		Msg("conversation escalated to human support")
	return true, nil
}
