package conversation

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	domain "github.com/techmannih/helper-sub007/internal/domain/conversation"
	"github.com/techmannih/helper-sub007/internal/infrastructure/database/entities"
)

// MessageRepository persists conversation messages.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository builds a message repository.
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts the message record.
func (r *MessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	entity := entities.NewSchemaMessage(msg)

	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("create message: %w", err)
	}

	msg.ID = entity.ID
	msg.CreatedAt = entity.CreatedAt
	return nil
}

// FindByID fetches a message by its internal ID.
func (r *MessageRepository) FindByID(ctx context.Context, id uint) (*domain.Message, error) {
	var entity entities.Message
	if err := r.db.WithContext(ctx).First(&entity, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", domain.ErrMessageNotFound, id)
		}
		return nil, fmt.Errorf("fetch message: %w", err)
	}
	return entity.EtoD(), nil
}

// FindByPublicID fetches a message by its public ID.
func (r *MessageRepository) FindByPublicID(ctx context.Context, publicID string) (*domain.Message, error) {
	var entity entities.Message
	if err := r.db.WithContext(ctx).
		Where("public_id = ?", publicID).
		First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrMessageNotFound, publicID)
		}
		return nil, fmt.Errorf("fetch message: %w", err)
	}
	return entity.EtoD(), nil
}

// ListByConversationID returns all messages for a conversation in insert order.
func (r *MessageRepository) ListByConversationID(ctx context.Context, conversationID uint) ([]domain.Message, error) {
	var rows []entities.Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	messages := make([]domain.Message, len(rows))
	for i := range rows {
		messages[i] = *rows[i].EtoD()
	}
	return messages, nil
}

// LatestNonToolMessage returns the newest message that is not part of a
// tool-call pair, or nil when the conversation has none.
func (r *MessageRepository) LatestNonToolMessage(ctx context.Context, conversationID uint) (*domain.Message, error) {
	var entity entities.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND tool_call_id IS NULL", conversationID).
		Order("id DESC").
		First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch latest message: %w", err)
	}
	return entity.EtoD(), nil
}

// FirstUserMessage returns the oldest user message in the conversation.
func (r *MessageRepository) FirstUserMessage(ctx context.Context, conversationID uint) (*domain.Message, error) {
	var entity entities.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND role = ?", conversationID, domain.RoleUser).
		Order("id ASC").
		First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no user message in conversation %d", domain.ErrMessageNotFound, conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch first user message: %w", err)
	}
	return entity.EtoD(), nil
}

// CountByConversationID returns the number of messages in the conversation.
func (r *MessageRepository) CountByConversationID(ctx context.Context, conversationID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&entities.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

// FlagAsBad marks a message as flagged by the customer.
func (r *MessageRepository) FlagAsBad(ctx context.Context, id uint, reason *string) error {
	result := r.db.WithContext(ctx).
		Model(&entities.Message{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_flagged_as_bad": true,
			"flag_reason":       reason,
		})
	if result.Error != nil {
		return fmt.Errorf("flag message: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", domain.ErrMessageNotFound, id)
	}
	return nil
}
