package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/techmannih/helper-sub007/internal/infrastructure/metrics"
)

// Store is the persistent cache tier. Get returns a nil embedding on miss.
type Store interface {
	Get(ctx context.Context, textHash, model string) ([]float32, time.Time, error)
	Put(ctx context.Context, textHash, model string, embedding []float32, expiresAt time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Cache is a two-tier embedding cache: an in-process LRU in front of a
// persistent store with TTL expiry. Cache failures are logged and swallowed;
// the caller falls through to the embeddings API.
type Cache struct {
	memory *lru.Cache[string, []float32]
	store  Store
	model  string
	ttl    time.Duration
	log    zerolog.Logger
}

// NewCache builds the cache. Size bounds the memory tier.
func NewCache(store Store, model string, size int, ttl time.Duration, log zerolog.Logger) (*Cache, error) {
	if size <= 0 {
		size = 2048
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	memory, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &Cache{
		memory: memory,
		store:  store,
		model:  model,
		ttl:    ttl,
		log:    log.With().Str("component", "embedding_cache").Logger(),
	}, nil
}

// Key hashes normalized text into the cache key.
func Key(normalizedText string) string {
	sum := sha256.Sum256([]byte(normalizedText))
	return hex.EncodeToString(sum[:])
}

// Lookup checks the memory tier, then the persistent tier. A persistent hit
// is promoted into memory.
func (c *Cache) Lookup(ctx context.Context, normalizedText string) ([]float32, bool) {
	key := Key(normalizedText)

	if embedding, ok := c.memory.Get(key); ok {
		metrics.RecordEmbeddingCacheLookup("memory_hit")
		return embedding, true
	}

	embedding, expiresAt, err := c.store.Get(ctx, key, c.model)
	if err != nil {
		c.log.Warn().Err(err).Msg("embedding cache store lookup")
		metrics.RecordEmbeddingCacheLookup("error")
		return nil, false
	}
	if embedding == nil || !time.Now().Before(expiresAt) {
		metrics.RecordEmbeddingCacheLookup("miss")
		return nil, false
	}

	c.memory.Add(key, embedding)
	metrics.RecordEmbeddingCacheLookup("store_hit")
	return embedding, true
}

// Save writes the embedding to both tiers.
func (c *Cache) Save(ctx context.Context, normalizedText string, embedding []float32) {
	key := Key(normalizedText)
	c.memory.Add(key, embedding)

	if err := c.store.Put(ctx, key, c.model, embedding, time.Now().Add(c.ttl)); err != nil {
		c.log.Warn().Err(err).Msg("embedding cache store write")
	}
}

// Purge removes expired entries from the persistent tier.
func (c *Cache) Purge(ctx context.Context) {
	removed, err := c.store.DeleteExpired(ctx, time.Now())
	if err != nil {
		c.log.Warn().Err(err).Msg("embedding cache purge")
		return
	}
	if removed > 0 {
		c.log.Debug().Int64("removed", removed).Msg("purged expired embedding cache entries")
	}
}
