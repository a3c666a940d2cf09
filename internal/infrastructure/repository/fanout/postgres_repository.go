package fanout

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/techmannih/helper-sub007/internal/domain/fanout"
	"github.com/techmannih/helper-sub007/internal/infrastructure/database/entities"
)

// Repository persists fanout outbox jobs.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a fanout job repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Enqueue inserts the job unless the (message, type) pair already exists.
// It reports false for duplicates, which makes redelivery a no-op.
func (r *Repository) Enqueue(ctx context.Context, job *domain.Job) (bool, error) {
	entity := entities.NewSchemaFanoutJob(job)

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "type"}},
			DoNothing: true,
		}).
		Create(entity)
	if result.Error != nil {
		return false, fmt.Errorf("enqueue fanout job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	job.ID = entity.ID
	return true, nil
}
