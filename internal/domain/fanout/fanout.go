// Package fanout enqueues the side-effect jobs that follow a persisted message.
package fanout

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/techmannih/helper-sub007/internal/domain/conversation"
)

// JobType enumerates the fanout job kinds.
type JobType string

const (
	JobBroadcastMessage          JobType = "broadcast_message"
	JobBroadcastConversationList JobType = "broadcast_conversation_list"
	JobRegenerateSubject         JobType = "regenerate_subject"
	JobRegenerateSummary         JobType = "regenerate_summary"
	JobNotifyCustomer            JobType = "notify_customer"
	JobCreateEmbedding           JobType = "create_embedding"
)

// JobStatus tracks a job through the queue.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job is one outbox entry. Jobs are keyed (MessageID, Type); enqueueing the
// same pair twice is a no-op, which makes redelivery safe.
type Job struct {
	ID             uint
	MessageID      uint
	ConversationID uint
	Type           JobType
	Status         JobStatus
	Error          *string
	QueuedAt       time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// JobRepository persists outbox jobs. Enqueue reports false when the
// (message, type) pair already exists.
type JobRepository interface {
	Enqueue(ctx context.Context, job *Job) (bool, error)
}

// Config bounds fanout predicates.
type Config struct {
	SummaryMessageThreshold int
}

// Service decides which jobs a terminal message produces.
type Service struct {
	jobs     JobRepository
	messages conversation.MessageRepository
	cfg      Config
	log      zerolog.Logger
}

// NewService wires dependencies.
func NewService(jobs JobRepository, messages conversation.MessageRepository, cfg Config, log zerolog.Logger) *Service {
	if cfg.SummaryMessageThreshold <= 0 {
		cfg.SummaryMessageThreshold = 10
	}
	return &Service{
		jobs:     jobs,
		messages: messages,
		cfg:      cfg,
		log:      log.With().Str("component", "fanout").Logger(),
	}
}

// FanOut inserts the jobs the message warrants. Insert failures are logged
// and never surfaced; the reply path does not depend on fanout succeeding.
func (s *Service) FanOut(ctx context.Context, conv *conversation.Conversation, msg *conversation.Message, escalated bool) {
	s.enqueue(ctx, conv, msg, JobBroadcastMessage)

	count, err := s.messages.CountByConversationID(ctx, conv.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("conversation", conv.Slug).Msg("count messages for fanout predicates")
		count = 0
	}

	if msg.Role == conversation.RoleUser && conv.Status == conversation.StatusOpen && count <= 1 {
		s.enqueue(ctx, conv, msg, JobBroadcastConversationList)
	}

	if conv.Subject == conversation.PlaceholderSubject || escalated || s.subjectDrifted(ctx, conv) {
		s.enqueue(ctx, conv, msg, JobRegenerateSubject)
	}

	if count > int64(s.cfg.SummaryMessageThreshold) {
		s.enqueue(ctx, conv, msg, JobRegenerateSummary)
	}

	if msg.Role == conversation.RoleAIAssistant || msg.Role == conversation.RoleStaff {
		s.enqueue(ctx, conv, msg, JobNotifyCustomer)
	}

	if conv.Status == conversation.StatusClosed {
		s.enqueue(ctx, conv, msg, JobCreateEmbedding)
	}
}

// subjectDrifted reports whether the subject is still the raw first prompt.
// Conversations seeded that way get a generated subject line instead.
func (s *Service) subjectDrifted(ctx context.Context, conv *conversation.Conversation) bool {
	first, err := s.messages.FirstUserMessage(ctx, conv.ID)
	if err != nil || first == nil {
		return false
	}
	return conversation.CleanText(conv.Subject) == first.CleanedText
}

// NotifyReopened enqueues the conversation-list broadcast for a reopened
// conversation without duplicating the message broadcast.
func (s *Service) NotifyReopened(ctx context.Context, conv *conversation.Conversation, msg *conversation.Message) {
	s.enqueue(ctx, conv, msg, JobBroadcastConversationList)
}

func (s *Service) enqueue(ctx context.Context, conv *conversation.Conversation, msg *conversation.Message, jobType JobType) {
	job := &Job{
		MessageID:      msg.ID,
		ConversationID: conv.ID,
		Type:           jobType,
		Status:         JobQueued,
		QueuedAt:       time.Now(),
	}

	inserted, err := s.jobs.Enqueue(ctx, job)
	if err != nil {
		s.log.Error().Err(err).
			Str("conversation", conv.Slug).
			Str("job_type", string(jobType)).
			Msg("enqueue fanout job")
		return
	}
	if !inserted {
		s.log.Debug().
			Str("conversation", conv.Slug).
			Str("job_type", string(jobType)).
			Uint("message_id", msg.ID).
			Msg("fanout job already queued, skipping")
	}
}
