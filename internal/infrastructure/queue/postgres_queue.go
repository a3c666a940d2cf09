package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/techmannih/helper-sub007/internal/domain/fanout"
	"github.com/techmannih/helper-sub007/internal/infrastructure/database/entities"
)

// PostgresQueue implements JobQueue over the fanout_jobs table.
type PostgresQueue struct {
	db  *gorm.DB
	log zerolog.Logger
}

// NewPostgresQueue creates a new PostgreSQL-backed job queue.
func NewPostgresQueue(db *gorm.DB, log zerolog.Logger) *PostgresQueue {
	return &PostgresQueue{
		db:  db,
		log: log.With().Str("component", "postgres-queue").Logger(),
	}
}

// Dequeue fetches the next queued job using FOR UPDATE SKIP LOCKED.
func (q *PostgresQueue) Dequeue(ctx context.Context) (*fanout.Job, error) {
	var entity entities.FanoutJob

	err := q.db.WithContext(ctx).
		Raw("SELECT * FROM fanout_jobs WHERE status = ? ORDER BY queued_at ASC LIMIT 1 FOR UPDATE SKIP LOCKED", fanout.JobQueued).
		Scan(&entity).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil // No jobs available
		}
		return nil, fmt.Errorf("dequeue job: %w", err)
	}

	// Check if no rows were returned (entity.ID will be 0)
	if entity.ID == 0 {
		return nil, nil // No jobs available
	}

	return entity.EtoD(), nil
}

// MarkProcessing claims the job by flipping queued to in_progress. The status
// guard in the WHERE clause makes the claim atomic: the dequeue SELECT commits
// its own transaction, so two workers can see the same queued row, but only
// one UPDATE matches. The loser gets ErrAlreadyClaimed and must skip the job.
func (q *PostgresQueue) MarkProcessing(ctx context.Context, jobID uint) error {
	now := time.Now()
	result := q.db.WithContext(ctx).
		Model(&entities.FanoutJob{}).
		Where("id = ? AND status = ?", jobID, fanout.JobQueued).
		Updates(map[string]interface{}{
			"status":     fanout.JobInProgress,
			"started_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("mark processing: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyClaimed
	}
	return nil
}

// MarkCompleted updates the job status to completed.
func (q *PostgresQueue) MarkCompleted(ctx context.Context, jobID uint) error {
	now := time.Now()
	result := q.db.WithContext(ctx).
		Model(&entities.FanoutJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":       fanout.JobCompleted,
			"completed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return fmt.Errorf("mark completed: %w", result.Error)
	}
	return nil
}

// MarkFailed updates the job status to failed.
func (q *PostgresQueue) MarkFailed(ctx context.Context, jobID uint, jobErr error) error {
	now := time.Now()
	message := jobErr.Error()
	result := q.db.WithContext(ctx).
		Model(&entities.FanoutJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":     fanout.JobFailed,
			"error":      message,
			"updated_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("mark failed: %w", result.Error)
	}
	return nil
}

// GetQueueDepth returns the number of queued jobs.
func (q *PostgresQueue) GetQueueDepth(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.WithContext(ctx).
		Model(&entities.FanoutJob{}).
		Where("status = ?", fanout.JobQueued).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("get queue depth: %w", err)
	}
	return count, nil
}
