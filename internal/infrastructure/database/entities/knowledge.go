package entities

import (
	"time"

	"github.com/techmannih/helper-sub007/internal/domain/knowledge"
)

// KnowledgeEntry represents the database schema for knowledge bank records
type KnowledgeEntry struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	Content   string `gorm:"type:text;not null"`
	Enabled   bool   `gorm:"not null;default:true;index"`
	Embedding Vector
}

// TableName specifies the table name for KnowledgeEntry.
func (KnowledgeEntry) TableName() string {
	return "knowledge_entries"
}

// EtoD converts database entity to domain model
func (k *KnowledgeEntry) EtoD() *knowledge.Entry {
	return &knowledge.Entry{
		ID:      k.ID,
		Content: k.Content,
		Enabled: k.Enabled,
	}
}

// StyleExample pairs an unedited draft with its staff-edited form.
type StyleExample struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	BeforeText string `gorm:"type:text;not null"`
	AfterText  string `gorm:"type:text;not null"`
}

// TableName specifies the table name for StyleExample.
func (StyleExample) TableName() string {
	return "style_examples"
}

// EtoD converts database entity to domain model
func (s *StyleExample) EtoD() *knowledge.StyleExample {
	return &knowledge.StyleExample{
		ID:     s.ID,
		Before: s.BeforeText,
		After:  s.AfterText,
	}
}
