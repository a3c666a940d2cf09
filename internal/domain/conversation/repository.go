package conversation

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// ErrMessageNotFound is returned when a message does not exist.
var ErrMessageNotFound = errors.New("message not found")

// SimilarConversation is a past-conversation retrieval match.
type SimilarConversation struct {
	Slug          string
	Subject       string
	FirstQuestion string
	Similarity    float64
}

// Event records an audit entry for ownership or status changes.
type Event struct {
	ID             uint
	ConversationID uint
	Type           string
	ChangedFields  map[string]string
	Reason         string
	CreatedAt      time.Time
}

// Repository persists conversations.
type Repository interface {
	Create(ctx context.Context, conv *Conversation) error
	FindBySlug(ctx context.Context, slug string) (*Conversation, error)
	FindByID(ctx context.Context, id uint) (*Conversation, error)
	Update(ctx context.Context, conv *Conversation) error
	RecordEvent(ctx context.Context, event *Event) error
	SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]SimilarConversation, error)
	UpdateEmbedding(ctx context.Context, id uint, embedding []float32, embeddingText string) error
}

// MessageRepository persists conversation messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *Message) error
	FindByID(ctx context.Context, id uint) (*Message, error)
	FindByPublicID(ctx context.Context, publicID string) (*Message, error)
	ListByConversationID(ctx context.Context, conversationID uint) ([]Message, error)
	LatestNonToolMessage(ctx context.Context, conversationID uint) (*Message, error)
	FirstUserMessage(ctx context.Context, conversationID uint) (*Message, error)
	CountByConversationID(ctx context.Context, conversationID uint) (int64, error)
	FlagAsBad(ctx context.Context, id uint, reason *string) error
}
