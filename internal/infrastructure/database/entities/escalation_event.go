package entities

import (
	"time"

	"github.com/techmannih/helper-sub007/internal/domain/escalation"
)

// EscalationEvent persists each handoff from the assistant to human support.
type EscalationEvent struct {
	ID             uint               `gorm:"primaryKey"`
	CreatedAt      time.Time          `gorm:"autoCreateTime"`
	ConversationID uint               `gorm:"index;not null"`
	Trigger        escalation.Trigger `gorm:"type:varchar(20);not null"`
	Reason         *string            `gorm:"type:text"`
	Email          *string            `gorm:"type:varchar(256)"`
}

// TableName specifies the table name for EscalationEvent.
func (EscalationEvent) TableName() string {
	return "escalation_events"
}

// EtoD converts database entity to domain model
func (e *EscalationEvent) EtoD() *escalation.Event {
	return &escalation.Event{
		ID:             e.ID,
		ConversationID: e.ConversationID,
		Trigger:        e.Trigger,
		Reason:         e.Reason,
		Email:          e.Email,
		CreatedAt:      e.CreatedAt,
	}
}

// NewSchemaEscalationEvent creates a database entity from domain model
func NewSchemaEscalationEvent(e *escalation.Event) *EscalationEvent {
	return &EscalationEvent{
		ID:             e.ID,
		ConversationID: e.ConversationID,
		Trigger:        e.Trigger,
		Reason:         e.Reason,
		Email:          e.Email,
		CreatedAt:      e.CreatedAt,
	}
}
