package entities

import (
	"time"

	"gorm.io/datatypes"

	"github.com/techmannih/helper-sub007/internal/domain/conversation"
)

// Message represents the database schema for conversation messages
type Message struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	PublicID       string                   `gorm:"type:varchar(50);uniqueIndex;not null"`
	ConversationID uint                     `gorm:"index;not null"`
	Role           conversation.MessageRole `gorm:"type:varchar(20);not null"`
	Body           string                   `gorm:"type:text"`
	CleanedText    string                   `gorm:"type:text"`

	ToolCallID  *string        `gorm:"type:varchar(64)"`
	ToolName    *string        `gorm:"type:varchar(128)"`
	ToolArgs    datatypes.JSON `gorm:"type:jsonb"`
	ToolSuccess *bool

	IsFlaggedAsBad bool    `gorm:"not null;default:false"`
	FlagReason     *string `gorm:"type:text"`
	Metadata       JSONMap `gorm:"type:jsonb"`
}

// TableName specifies the table name for Message.
func (Message) TableName() string {
	return "messages"
}

// EtoD converts database entity to domain model
func (m *Message) EtoD() *conversation.Message {
	metadata := make(map[string]string)
	if m.Metadata != nil {
		metadata = m.Metadata
	}

	return &conversation.Message{
		ID:             m.ID,
		PublicID:       m.PublicID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Body:           m.Body,
		CleanedText:    m.CleanedText,
		ToolCallID:     m.ToolCallID,
		ToolName:       m.ToolName,
		ToolArgs:       []byte(m.ToolArgs),
		ToolSuccess:    m.ToolSuccess,
		IsFlaggedAsBad: m.IsFlaggedAsBad,
		FlagReason:     m.FlagReason,
		Metadata:       metadata,
		CreatedAt:      m.CreatedAt,
	}
}

// NewSchemaMessage creates a database entity from domain model
func NewSchemaMessage(m *conversation.Message) *Message {
	return &Message{
		ID:             m.ID,
		PublicID:       m.PublicID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Body:           m.Body,
		CleanedText:    m.CleanedText,
		ToolCallID:     m.ToolCallID,
		ToolName:       m.ToolName,
		ToolArgs:       datatypes.JSON(m.ToolArgs),
		ToolSuccess:    m.ToolSuccess,
		IsFlaggedAsBad: m.IsFlaggedAsBad,
		FlagReason:     m.FlagReason,
		Metadata:       m.Metadata,
		CreatedAt:      m.CreatedAt,
	}
}
