package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/techmannih/helper-sub007/internal/infrastructure/metrics"
	"github.com/techmannih/helper-sub007/internal/infrastructure/queue"
)

// Worker processes fanout jobs from the queue.
type Worker struct {
	id         int
	queue      queue.JobQueue
	executor   *JobExecutor
	jobTimeout time.Duration
	log        zerolog.Logger
	stopChan   chan struct{}
}

// NewWorker creates a new background worker.
func NewWorker(
	id int,
	jobQueue queue.JobQueue,
	executor *JobExecutor,
	jobTimeout time.Duration,
	log zerolog.Logger,
) *Worker {
	return &Worker{
		id:         id,
		queue:      jobQueue,
		executor:   executor,
		jobTimeout: jobTimeout,
		log:        log.With().Int("worker_id", id).Str("component", "worker").Logger(),
		stopChan:   make(chan struct{}),
	}
}

// Start begins processing jobs from the queue.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info().Msg("worker started")

	ticker := time.NewTicker(2 * time.Second) // Poll every 2 seconds
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("worker stopped by context")
			return
		case <-w.stopChan:
			w.log.Info().Msg("worker stopped")
			return
		case <-ticker.C:
			w.processNextJob(ctx)
		}
	}
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	close(w.stopChan)
}

func (w *Worker) processNextJob(ctx context.Context) {
	job, err := w.queue.Dequeue(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("failed to dequeue job")
		return
	}
	if job == nil {
		// No jobs available
		return
	}

	w.log.Info().
		Uint("job_id", job.ID).
		Str("job_type", string(job.Type)).
		Uint("conversation_id", job.ConversationID).
		Msg("processing fanout job")

	if err := w.queue.MarkProcessing(ctx, job.ID); err != nil {
		if errors.Is(err, queue.ErrAlreadyClaimed) {
			w.log.Debug().Uint("job_id", job.ID).Msg("job claimed by another worker, skipping")
			return
		}
		w.log.Error().Err(err).Uint("job_id", job.ID).Msg("failed to mark processing")
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	if err := w.executor.ExecuteJob(jobCtx, job); err != nil {
		w.log.Error().Err(err).Uint("job_id", job.ID).Str("job_type", string(job.Type)).Msg("job execution failed")
		metrics.RecordFanoutJob(string(job.Type), "failed")
		if markErr := w.queue.MarkFailed(ctx, job.ID, err); markErr != nil {
			w.log.Error().Err(markErr).Uint("job_id", job.ID).Msg("failed to mark job as failed")
		}
		return
	}

	if err := w.queue.MarkCompleted(ctx, job.ID); err != nil {
		w.log.Error().Err(err).Uint("job_id", job.ID).Msg("failed to mark job as completed")
		return
	}

	metrics.RecordFanoutJob(string(job.Type), "completed")
	w.log.Info().Uint("job_id", job.ID).Str("job_type", string(job.Type)).Msg("job completed successfully")
}
