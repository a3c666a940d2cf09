package embeddingcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/techmannih/helper-sub007/internal/infrastructure/database/entities"
)

// Repository is the persistent tier of the embedding cache.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds an embedding cache repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Get returns the cached embedding, or nil when absent. TTL filtering is the
// caller's concern; expired rows are still returned until purged.
func (r *Repository) Get(ctx context.Context, textHash, model string) ([]float32, time.Time, error) {
	var entity entities.EmbeddingCacheEntry
	err := r.db.WithContext(ctx).
		Where("text_hash = ? AND model = ?", textHash, model).
		First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("fetch cached embedding: %w", err)
	}
	return entity.Embedding, entity.ExpiresAt, nil
}

// Put stores the embedding, refreshing the expiry on conflict.
func (r *Repository) Put(ctx context.Context, textHash, model string, embedding []float32, expiresAt time.Time) error {
	entity := &entities.EmbeddingCacheEntry{
		TextHash:  textHash,
		Model:     model,
		Embedding: entities.Vector(embedding),
		ExpiresAt: expiresAt,
	}

	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "text_hash"}, {Name: "model"}},
			DoUpdates: clause.AssignmentColumns([]string{"embedding", "expires_at"}),
		}).
		Create(entity).Error; err != nil {
		return fmt.Errorf("store cached embedding: %w", err)
	}
	return nil
}

// DeleteExpired removes rows whose TTL has elapsed.
func (r *Repository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&entities.EmbeddingCacheEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge embedding cache: %w", result.Error)
	}
	return result.RowsAffected, nil
}
