package entities

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/techmannih/helper-sub007/internal/domain/conversation"
)

// Conversation represents the database schema for conversations
type Conversation struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	Slug        string                 `gorm:"type:varchar(64);uniqueIndex;not null"`
	Subject     string                 `gorm:"type:varchar(256);not null"`
	Summary     *string                `gorm:"type:text"`
	Status      conversation.Status    `gorm:"type:varchar(20);index;not null;default:'open'"`
	OwnerKind   conversation.OwnerKind `gorm:"type:varchar(20);index;not null;default:'ai'"`
	OwnerUserID *string                `gorm:"type:varchar(64)"`
	EmailFrom   *string                `gorm:"type:varchar(256)"`
	EscalatedAt *time.Time
	ClosedAt    *time.Time

	// Ownership before the most recent close or spam marking, restored on reopen.
	LastOwnerKind   *string `gorm:"type:varchar(20)"`
	LastOwnerUserID *string `gorm:"type:varchar(64)"`

	// Embedding of the resolved conversation, populated after close.
	Embedding     Vector
	EmbeddingText *string `gorm:"type:text"`
}

// TableName specifies the table name for Conversation.
func (Conversation) TableName() string {
	return "conversations"
}

// ConversationEvent is an audit record of a status or ownership change.
type ConversationEvent struct {
	ID             uint      `gorm:"primaryKey"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	ConversationID uint      `gorm:"index;not null"`
	Type           string    `gorm:"type:varchar(50);not null"`
	ChangedFields  JSONMap   `gorm:"type:jsonb"`
	Reason         string    `gorm:"type:text"`
}

// TableName specifies the table name for ConversationEvent.
func (ConversationEvent) TableName() string {
	return "conversation_events"
}

// ===============================================
// JSON Types for GORM
// ===============================================

// JSONMap is a custom type for map[string]string stored as JSON
type JSONMap map[string]string

func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONMap) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// ===============================================
// Conversion Functions
// ===============================================

// EtoD converts database entity to domain model
func (c *Conversation) EtoD() *conversation.Conversation {
	ownership := conversation.Ownership{
		Kind:   c.OwnerKind,
		UserID: c.OwnerUserID,
	}

	var lastOwnership *conversation.Ownership
	if c.LastOwnerKind != nil {
		lastOwnership = &conversation.Ownership{
			Kind:   conversation.OwnerKind(*c.LastOwnerKind),
			UserID: c.LastOwnerUserID,
		}
	}

	return &conversation.Conversation{
		ID:            c.ID,
		Slug:          c.Slug,
		Subject:       c.Subject,
		Summary:       c.Summary,
		Status:        c.Status,
		Ownership:     ownership,
		EmailFrom:     c.EmailFrom,
		EscalatedAt:   c.EscalatedAt,
		ClosedAt:      c.ClosedAt,
		LastOwnership: lastOwnership,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

// NewSchemaConversation creates a database entity from domain model
func NewSchemaConversation(c *conversation.Conversation) *Conversation {
	entity := &Conversation{
		ID:          c.ID,
		Slug:        c.Slug,
		Subject:     c.Subject,
		Summary:     c.Summary,
		Status:      c.Status,
		OwnerKind:   c.Ownership.Kind,
		OwnerUserID: c.Ownership.UserID,
		EmailFrom:   c.EmailFrom,
		EscalatedAt: c.EscalatedAt,
		ClosedAt:    c.ClosedAt,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if c.LastOwnership != nil {
		kind := string(c.LastOwnership.Kind)
		entity.LastOwnerKind = &kind
		entity.LastOwnerUserID = c.LastOwnership.UserID
	}
	return entity
}

// NewSchemaConversationEvent creates a database entity from domain model
func NewSchemaConversationEvent(e *conversation.Event) *ConversationEvent {
	return &ConversationEvent{
		ID:             e.ID,
		ConversationID: e.ConversationID,
		Type:           e.Type,
		ChangedFields:  e.ChangedFields,
		Reason:         e.Reason,
		CreatedAt:      e.CreatedAt,
	}
}
