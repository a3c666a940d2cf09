package conversation

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	domain "github.com/techmannih/helper-sub007/internal/domain/conversation"
	"github.com/techmannih/helper-sub007/internal/infrastructure/database/entities"
)

// Repository persists conversations.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a conversation repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the conversation record.
func (r *Repository) Create(ctx context.Context, conv *domain.Conversation) error {
	entity := entities.NewSchemaConversation(conv)

	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}

	conv.ID = entity.ID
	conv.CreatedAt = entity.CreatedAt
	conv.UpdatedAt = entity.UpdatedAt
	return nil
}

// FindBySlug fetches a conversation by its public slug.
func (r *Repository) FindBySlug(ctx context.Context, slug string) (*domain.Conversation, error) {
	var entity entities.Conversation
	if err := r.db.WithContext(ctx).
		Where("slug = ?", slug).
		First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, slug)
		}
		return nil, fmt.Errorf("fetch conversation: %w", err)
	}
	return entity.EtoD(), nil
}

// FindByID fetches a conversation by its internal ID.
func (r *Repository) FindByID(ctx context.Context, id uint) (*domain.Conversation, error) {
	var entity entities.Conversation
	if err := r.db.WithContext(ctx).First(&entity, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("fetch conversation: %w", err)
	}
	return entity.EtoD(), nil
}

// Update persists the conversation state.
func (r *Repository) Update(ctx context.Context, conv *domain.Conversation) error {
	entity := entities.NewSchemaConversation(conv)

	// Full-row save so ownership and timestamp columns can be cleared.
	if err := r.db.WithContext(ctx).
		Model(&entities.Conversation{}).
		Where("id = ?", entity.ID).
		Select("subject", "summary", "status", "owner_kind", "owner_user_id",
			"email_from", "escalated_at", "closed_at", "last_owner_kind", "last_owner_user_id").
		Updates(entity).Error; err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	return nil
}

// RecordEvent appends an audit event for the conversation.
func (r *Repository) RecordEvent(ctx context.Context, event *domain.Event) error {
	entity := entities.NewSchemaConversationEvent(event)
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("record conversation event: %w", err)
	}
	event.ID = entity.ID
	return nil
}

type similarRow struct {
	ID         uint
	Slug       string
	Subject    string
	Similarity float64
}

// SearchSimilar finds closed conversations whose embeddings are close to the
// query, using cosine distance. Results below the threshold are excluded.
func (r *Repository) SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]domain.SimilarConversation, error) {
	vec := entities.Vector(embedding)

	var rows []similarRow
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, slug, subject, 1 - (embedding <=> ?) AS similarity
		FROM conversations
		WHERE status = 'closed'
		  AND embedding IS NOT NULL
		  AND 1 - (embedding <=> ?) > ?
		ORDER BY embedding <=> ?
		LIMIT ?`,
		vec, vec, threshold, vec, limit,
	).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("search similar conversations: %w", err)
	}

	matches := make([]domain.SimilarConversation, 0, len(rows))
	for _, row := range rows {
		match := domain.SimilarConversation{
			Slug:       row.Slug,
			Subject:    row.Subject,
			Similarity: row.Similarity,
		}

		var first entities.Message
		err := r.db.WithContext(ctx).
			Where("conversation_id = ? AND role = ?", row.ID, domain.RoleUser).
			Order("id ASC").
			First(&first).Error
		if err == nil {
			match.FirstQuestion = first.CleanedText
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("fetch first question: %w", err)
		}

		matches = append(matches, match)
	}
	return matches, nil
}

// UpdateEmbedding stores the retrieval embedding for a resolved conversation.
func (r *Repository) UpdateEmbedding(ctx context.Context, id uint, embedding []float32, embeddingText string) error {
	if err := r.db.WithContext(ctx).
		Model(&entities.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"embedding":      entities.Vector(embedding),
			"embedding_text": embeddingText,
		}).Error; err != nil {
		return fmt.Errorf("update conversation embedding: %w", err)
	}
	return nil
}
