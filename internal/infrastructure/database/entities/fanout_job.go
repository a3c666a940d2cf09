package entities

import (
	"time"

	"github.com/techmannih/helper-sub007/internal/domain/fanout"
)

// FanoutJob is one outbox row. The unique index on (message_id, type) makes
// enqueueing idempotent under redelivery.
type FanoutJob struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	MessageID      uint             `gorm:"uniqueIndex:idx_fanout_message_job;not null"`
	Type           fanout.JobType   `gorm:"type:varchar(40);uniqueIndex:idx_fanout_message_job;not null"`
	ConversationID uint             `gorm:"index;not null"`
	Status         fanout.JobStatus `gorm:"type:varchar(20);index;not null;default:'queued'"`
	Error          *string          `gorm:"type:text"`
	QueuedAt       time.Time        `gorm:"not null"`
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// TableName specifies the table name for FanoutJob.
func (FanoutJob) TableName() string {
	return "fanout_jobs"
}

// EtoD converts database entity to domain model
func (j *FanoutJob) EtoD() *fanout.Job {
	return &fanout.Job{
		ID:             j.ID,
		MessageID:      j.MessageID,
		ConversationID: j.ConversationID,
		Type:           j.Type,
		Status:         j.Status,
		Error:          j.Error,
		QueuedAt:       j.QueuedAt,
		StartedAt:      j.StartedAt,
		CompletedAt:    j.CompletedAt,
	}
}

// NewSchemaFanoutJob creates a database entity from domain model
func NewSchemaFanoutJob(j *fanout.Job) *FanoutJob {
	return &FanoutJob{
		ID:             j.ID,
		MessageID:      j.MessageID,
		ConversationID: j.ConversationID,
		Type:           j.Type,
		Status:         j.Status,
		Error:          j.Error,
		QueuedAt:       j.QueuedAt,
		StartedAt:      j.StartedAt,
		CompletedAt:    j.CompletedAt,
	}
}
