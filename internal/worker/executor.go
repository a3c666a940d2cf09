package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/techmannih/helper-sub007/internal/domain/conversation"
	"github.com/techmannih/helper-sub007/internal/domain/fanout"
	"github.com/techmannih/helper-sub007/internal/domain/llm"
	"github.com/techmannih/helper-sub007/internal/infrastructure/embedding"
	"github.com/techmannih/helper-sub007/internal/infrastructure/realtime"
)

// Embedding text is capped so one very long conversation cannot blow the
// embedding API input limit.
const maxEmbeddingTextChars = 8000

// JobExecutor runs one fanout job to completion.
type JobExecutor struct {
	conversations conversation.Repository
	messages      conversation.MessageRepository
	provider      llm.Provider
	generator     *embedding.Generator
	publisher     *realtime.Publisher
	model         string
	log           zerolog.Logger
}

// NewJobExecutor wires dependencies.
func NewJobExecutor(
	conversations conversation.Repository,
	messages conversation.MessageRepository,
	provider llm.Provider,
	generator *embedding.Generator,
	publisher *realtime.Publisher,
	model string,
	log zerolog.Logger,
) *JobExecutor {
	return &JobExecutor{
		conversations: conversations,
		messages:      messages,
		provider:      provider,
		generator:     generator,
		publisher:     publisher,
		model:         model,
		log:           log.With().Str("component", "job-executor").Logger(),
	}
}

// ExecuteJob dispatches on the job type.
func (e *JobExecutor) ExecuteJob(ctx context.Context, job *fanout.Job) error {
	conv, err := e.conversations.FindByID(ctx, job.ConversationID)
	if err != nil {
		return fmt.Errorf("load conversation for job: %w", err)
	}

	switch job.Type {
	case fanout.JobBroadcastMessage:
		return e.broadcastMessage(ctx, conv, job.MessageID)
	case fanout.JobBroadcastConversationList:
		return e.publisher.Publish(ctx, "conversations", "conversation_list.updated", map[string]any{
			"slug":   conv.Slug,
			"status": conv.Status,
		})
	case fanout.JobRegenerateSubject:
		return e.regenerateSubject(ctx, conv)
	case fanout.JobRegenerateSummary:
		return e.regenerateSummary(ctx, conv)
	case fanout.JobNotifyCustomer:
		return e.notifyCustomer(ctx, conv, job.MessageID)
	case fanout.JobCreateEmbedding:
		return e.createEmbedding(ctx, conv)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (e *JobExecutor) broadcastMessage(ctx context.Context, conv *conversation.Conversation, messageID uint) error {
	msg, err := e.messages.FindByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("load message for broadcast: %w", err)
	}
	return e.publisher.Publish(ctx, realtime.ConversationChannel(conv.Slug), "message.created", map[string]any{
		"message_id": msg.PublicID,
		"role":       msg.Role,
		"body":       msg.Body,
		"created_at": msg.CreatedAt,
	})
}

func (e *JobExecutor) notifyCustomer(ctx context.Context, conv *conversation.Conversation, messageID uint) error {
	if conv.EmailFrom == nil {
		e.log.Debug().Str("conversation", conv.Slug).Msg("no customer email, skipping notification")
		return nil
	}
	msg, err := e.messages.FindByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("load message for notification: %w", err)
	}
	return e.publisher.Publish(ctx, realtime.ConversationChannel(conv.Slug), "customer.notify", map[string]any{
		"email":      *conv.EmailFrom,
		"subject":    conv.Subject,
		"message_id": msg.PublicID,
		"body":       msg.Body,
	})
}

func (e *JobExecutor) regenerateSubject(ctx context.Context, conv *conversation.Conversation) error {
	first, err := e.messages.FirstUserMessage(ctx, conv.ID)
	if err != nil {
		return fmt.Errorf("load first user message: %w", err)
	}

	subject, err := e.completeText(ctx,
		"Write a short subject line of at most eight words for this customer support conversation. Reply with the subject only, no quotes.",
		first.CleanedText,
	)
	if err != nil {
		return fmt.Errorf("generate subject: %w", err)
	}

	conv.Subject = strings.Trim(strings.TrimSpace(subject), `"`)
	if err := e.conversations.Update(ctx, conv); err != nil {
		return fmt.Errorf("store subject: %w", err)
	}
	return nil
}

func (e *JobExecutor) regenerateSummary(ctx context.Context, conv *conversation.Conversation) error {
	transcript, err := e.transcript(ctx, conv.ID)
	if err != nil {
		return err
	}

	summary, err := e.completeText(ctx,
		"Summarize this customer support conversation in at most three sentences. Mention what the customer needs and the current state of the request.",
		transcript,
	)
	if err != nil {
		return fmt.Errorf("generate summary: %w", err)
	}

	trimmed := strings.TrimSpace(summary)
	conv.Summary = &trimmed
	if err := e.conversations.Update(ctx, conv); err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	return nil
}

func (e *JobExecutor) createEmbedding(ctx context.Context, conv *conversation.Conversation) error {
	transcript, err := e.transcript(ctx, conv.ID)
	if err != nil {
		return err
	}
	if transcript == "" {
		return nil
	}
	if len(transcript) > maxEmbeddingTextChars {
		transcript = transcript[:maxEmbeddingTextChars]
	}

	vec, err := e.generator.Embed(ctx, transcript)
	if err != nil {
		return fmt.Errorf("embed conversation: %w", err)
	}
	if err := e.conversations.UpdateEmbedding(ctx, conv.ID, vec, transcript); err != nil {
		return err
	}
	return nil
}

func (e *JobExecutor) transcript(ctx context.Context, conversationID uint) (string, error) {
	messages, err := e.messages.ListByConversationID(ctx, conversationID)
	if err != nil {
		return "", fmt.Errorf("load transcript: %w", err)
	}

	var b strings.Builder
	for i := range messages {
		msg := &messages[i]
		if msg.IsToolPair() {
			continue
		}
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.CleanedText)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String()), nil
}

func (e *JobExecutor) completeText(ctx context.Context, instruction, input string) (string, error) {
	resp, err := e.provider.CreateChatCompletion(ctx, llm.ChatCompletionRequest{
		Model: e.model,
		Messages: []llm.ChatMessage{
			{Role: "system", Content: instruction},
			{Role: "user", Content: input},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Message.Content, nil
}
