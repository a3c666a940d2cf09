// Package retrieval assembles similarity-ranked context for the reply prompt.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/techmannih/helper-sub007/internal/domain/conversation"
	"github.com/techmannih/helper-sub007/internal/domain/knowledge"
)

// ErrPromptTooLong is returned when the system prompt and query alone exceed
// the token budget. The caller falls back to a context-free reply.
var ErrPromptTooLong = errors.New("prompt exceeds token budget")

// Embedder computes an embedding for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ConversationSearcher finds past conversations similar to the query.
type ConversationSearcher interface {
	SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]conversation.SimilarConversation, error)
}

// Config bounds retrieval behavior.
type Config struct {
	SimilarityThreshold float64
	MaxMatches          int
	TokenBudget         int
	StyleExampleLimit   int
}

// Assembler embeds the query, searches the knowledge bank and past
// conversations concurrently, and renders the context block.
type Assembler struct {
	embedder      Embedder
	knowledge     knowledge.Repository
	conversations ConversationSearcher
	cfg           Config
	log           zerolog.Logger
}

// NewAssembler wires dependencies.
func NewAssembler(
	embedder Embedder,
	knowledgeRepo knowledge.Repository,
	conversations ConversationSearcher,
	cfg Config,
	log zerolog.Logger,
) *Assembler {
	if cfg.StyleExampleLimit <= 0 {
		cfg.StyleExampleLimit = 3
	}
	return &Assembler{
		embedder:      embedder,
		knowledge:     knowledgeRepo,
		conversations: conversations,
		cfg:           cfg,
		log:           log.With().Str("component", "retrieval").Logger(),
	}
}

type item struct {
	section    string
	text       string
	similarity float64
}

const (
	sectionKnowledge     = "Knowledge bank"
	sectionConversations = "Past conversations"
	sectionStyle         = "Style examples"
)

// Assemble returns the rendered context for the query. Infrastructure
// failures degrade to an empty context; only a blown token floor is an error.
func (a *Assembler) Assemble(ctx context.Context, systemPrompt, query string) (string, error) {
	floor := estimateTokens(systemPrompt) + estimateTokens(query)
	if floor > a.cfg.TokenBudget {
		return "", ErrPromptTooLong
	}

	embedding, err := a.embedder.Embed(ctx, query)
	if err != nil {
		a.log.Warn().Err(err).Msg("query embedding failed, replying without context")
		return "", nil
	}

	var (
		wg           sync.WaitGroup
		kbMatches    []knowledge.Match
		convoMatches []conversation.SimilarConversation
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		matches, err := a.knowledge.SearchSimilar(ctx, embedding, a.cfg.SimilarityThreshold, a.cfg.MaxMatches)
		if err != nil {
			a.log.Warn().Err(err).Msg("knowledge bank search failed")
			return
		}
		kbMatches = matches
	}()
	go func() {
		defer wg.Done()
		matches, err := a.conversations.SearchSimilar(ctx, embedding, a.cfg.SimilarityThreshold, a.cfg.MaxMatches)
		if err != nil {
			a.log.Warn().Err(err).Msg("past conversation search failed")
			return
		}
		convoMatches = matches
	}()
	wg.Wait()

	// Each search is capped independently; the SQL LIMIT already enforces
	// this, the slicing just guards against an over-returning searcher.
	if len(kbMatches) > a.cfg.MaxMatches {
		kbMatches = kbMatches[:a.cfg.MaxMatches]
	}
	if len(convoMatches) > a.cfg.MaxMatches {
		convoMatches = convoMatches[:a.cfg.MaxMatches]
	}

	items := make([]item, 0, len(kbMatches)+len(convoMatches))
	for _, m := range kbMatches {
		if m.Similarity < a.cfg.SimilarityThreshold {
			continue
		}
		items = append(items, item{section: sectionKnowledge, text: m.Content, similarity: m.Similarity})
	}
	for _, m := range convoMatches {
		if m.Similarity < a.cfg.SimilarityThreshold {
			continue
		}
		items = append(items, item{
			section:    sectionConversations,
			text:       fmt.Sprintf("A customer previously asked: %q (conversation %q)", m.FirstQuestion, m.Subject),
			similarity: m.Similarity,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].similarity > items[j].similarity
	})

	// Drop the lowest-similarity items until everything fits the budget.
	budget := a.cfg.TokenBudget - floor
	for len(items) > 0 && tokensFor(items) > budget {
		items = items[:len(items)-1]
	}

	styles := a.styleExamples(ctx)
	rendered := render(items, styles)
	for len(styles) > 0 && estimateTokens(rendered) > budget {
		styles = styles[:len(styles)-1]
		rendered = render(items, styles)
	}

	return rendered, nil
}

func (a *Assembler) styleExamples(ctx context.Context) []knowledge.StyleExample {
	styles, err := a.knowledge.ListStyleExamples(ctx, a.cfg.StyleExampleLimit)
	if err != nil {
		a.log.Warn().Err(err).Msg("style example lookup failed")
		return nil
	}
	return styles
}

func render(items []item, styles []knowledge.StyleExample) string {
	var sb strings.Builder

	writeSection := func(section string) {
		wrote := false
		for _, it := range items {
			if it.section != section {
				continue
			}
			if !wrote {
				if sb.Len() > 0 {
					sb.WriteString("\n\n")
				}
				sb.WriteString(section)
				sb.WriteString(":")
				wrote = true
			}
			sb.WriteString("\n- ")
			sb.WriteString(it.text)
		}
	}

	writeSection(sectionKnowledge)
	writeSection(sectionConversations)

	if len(styles) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(sectionStyle)
		sb.WriteString(":")
		for _, s := range styles {
			sb.WriteString("\nBefore: ")
			sb.WriteString(s.Before)
			sb.WriteString("\nAfter: ")
			sb.WriteString(s.After)
		}
	}

	return sb.String()
}

func tokensFor(items []item) int {
	total := 0
	for _, it := range items {
		total += estimateTokens(it.text)
	}
	return total
}

// estimateTokens approximates the token count at four characters per token.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}
