package database

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/techmannih/helper-sub007/internal/infrastructure/database/entities"
)

// AutoMigrate applies database schema changes for the orchestration domain.
// Connect has already created the pgvector extension the vector columns need.
func AutoMigrate(ctx context.Context, db *gorm.DB, log zerolog.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&entities.Conversation{},
		&entities.ConversationEvent{},
		&entities.Message{},
		&entities.EscalationEvent{},
		&entities.KnowledgeEntry{},
		&entities.StyleExample{},
		&entities.Tool{},
		&entities.EmbeddingCacheEntry{},
		&entities.FanoutJob{},
	); err != nil {
		return err
	}

	log.Info().Msg("database schema up to date")
	return nil
}
