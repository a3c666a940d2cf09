package entities

import "time"

// EmbeddingCacheEntry is the persistent tier of the embedding cache. Entries
// are keyed by the SHA-256 of the normalized text plus the model name.
type EmbeddingCacheEntry struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	TextHash  string    `gorm:"type:varchar(64);uniqueIndex:idx_embedding_cache_key;not null"`
	Model     string    `gorm:"type:varchar(128);uniqueIndex:idx_embedding_cache_key;not null"`
	Embedding Vector    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
}

// TableName specifies the table name for EmbeddingCacheEntry.
func (EmbeddingCacheEntry) TableName() string {
	return "embedding_cache_entries"
}
