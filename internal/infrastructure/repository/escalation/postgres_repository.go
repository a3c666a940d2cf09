package escalation

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	domain "github.com/techmannih/helper-sub007/internal/domain/escalation"
	"github.com/techmannih/helper-sub007/internal/infrastructure/database/entities"
)

// Repository persists escalation events.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds an escalation event repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the escalation event record.
func (r *Repository) Create(ctx context.Context, event *domain.Event) error {
	entity := entities.NewSchemaEscalationEvent(event)

	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("create escalation event: %w", err)
	}

	event.ID = entity.ID
	event.CreatedAt = entity.CreatedAt
	return nil
}
