package knowledge

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	domain "github.com/techmannih/helper-sub007/internal/domain/knowledge"
	"github.com/techmannih/helper-sub007/internal/infrastructure/database/entities"
)

// Repository provides similarity search over the knowledge bank.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a knowledge repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type matchRow struct {
	Content    string
	Similarity float64
}

// SearchSimilar finds enabled knowledge entries close to the query embedding,
// using cosine distance. Results below the threshold are excluded.
func (r *Repository) SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]domain.Match, error) {
	vec := entities.Vector(embedding)

	var rows []matchRow
	if err := r.db.WithContext(ctx).Raw(`
		SELECT content, 1 - (embedding <=> ?) AS similarity
		FROM knowledge_entries
		WHERE enabled = true
		  AND embedding IS NOT NULL
		  AND 1 - (embedding <=> ?) > ?
		ORDER BY embedding <=> ?
		LIMIT ?`,
		vec, vec, threshold, vec, limit,
	).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("search knowledge bank: %w", err)
	}

	matches := make([]domain.Match, len(rows))
	for i, row := range rows {
		matches[i] = domain.Match{Content: row.Content, Similarity: row.Similarity}
	}
	return matches, nil
}

// ListStyleExamples returns the most recent style examples, newest first.
func (r *Repository) ListStyleExamples(ctx context.Context, limit int) ([]domain.StyleExample, error) {
	var rows []entities.StyleExample
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list style examples: %w", err)
	}

	examples := make([]domain.StyleExample, len(rows))
	for i := range rows {
		examples[i] = *rows[i].EtoD()
	}
	return examples, nil
}
