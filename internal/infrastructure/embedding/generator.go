package embedding

import (
	"context"
	"fmt"

	"github.com/techmannih/helper-sub007/internal/domain/conversation"
)

// Generator produces embeddings for normalized text, consulting the cache
// before calling the API. It implements retrieval.Embedder.
type Generator struct {
	client *Client
	cache  *Cache
}

// NewGenerator wires the client and cache.
func NewGenerator(client *Client, cache *Cache) *Generator {
	return &Generator{client: client, cache: cache}
}

// Embed returns the embedding for the text. The text is normalized before
// hashing so whitespace variants share a cache entry.
func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	normalized := conversation.CleanText(text)
	if normalized == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	if embedding, ok := g.cache.Lookup(ctx, normalized); ok {
		return embedding, nil
	}

	embedding, err := g.client.EmbedText(ctx, normalized)
	if err != nil {
		return nil, err
	}

	g.cache.Save(ctx, normalized, embedding)
	return embedding, nil
}
