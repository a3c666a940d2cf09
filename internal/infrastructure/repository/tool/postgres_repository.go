package tool

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/techmannih/helper-sub007/internal/domain/tool"
	"github.com/techmannih/helper-sub007/internal/infrastructure/database/entities"
)

// Repository backs the tool registry with PostgreSQL.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a tool repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListAvailable returns the tools exposed to the assistant in chat.
func (r *Repository) ListAvailable(ctx context.Context) ([]domain.Tool, error) {
	var rows []entities.Tool
	if err := r.db.WithContext(ctx).
		Where("available_in_chat = ?", true).
		Order("slug ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}

	tools := make([]domain.Tool, 0, len(rows))
	for i := range rows {
		t, err := rows[i].EtoD()
		if err != nil {
			return nil, err
		}
		tools = append(tools, *t)
	}
	return tools, nil
}

// FindBySlug fetches a tool by its slug.
func (r *Repository) FindBySlug(ctx context.Context, slug string) (*domain.Tool, error) {
	var entity entities.Tool
	if err := r.db.WithContext(ctx).
		Where("slug = ?", slug).
		First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownTool, slug)
		}
		return nil, fmt.Errorf("fetch tool: %w", err)
	}
	return entity.EtoD()
}

// Upsert registers a tool, replacing any existing definition with the same slug.
func (r *Repository) Upsert(ctx context.Context, t *domain.Tool) error {
	entity, err := entities.NewSchemaTool(t)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "description", "params", "method", "url", "auth_token", "available_in_chat",
			}),
		}).
		Create(entity).Error; err != nil {
		return fmt.Errorf("upsert tool: %w", err)
	}

	t.ID = entity.ID
	return nil
}
