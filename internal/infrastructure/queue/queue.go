package queue

import (
	"context"
	"errors"

	"github.com/techmannih/helper-sub007/internal/domain/fanout"
)

// ErrAlreadyClaimed is returned when another worker claimed the job between
// dequeue and the processing update. The job must not be executed again.
var ErrAlreadyClaimed = errors.New("fanout job already claimed")

// JobQueue defines the interface for fanout job queue operations.
type JobQueue interface {
	// Dequeue fetches the next available job using SELECT FOR UPDATE SKIP LOCKED
	Dequeue(ctx context.Context) (*fanout.Job, error)

	// MarkProcessing atomically flips a queued job to in_progress;
	// returns ErrAlreadyClaimed when another worker won the claim
	MarkProcessing(ctx context.Context, jobID uint) error

	// MarkCompleted updates job status to completed
	MarkCompleted(ctx context.Context, jobID uint) error

	// MarkFailed updates job status to failed
	MarkFailed(ctx context.Context, jobID uint, err error) error

	// GetQueueDepth returns the number of queued jobs
	GetQueueDepth(ctx context.Context) (int64, error)
}
