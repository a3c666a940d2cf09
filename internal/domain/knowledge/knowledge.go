// Package knowledge exposes the knowledge bank consulted during retrieval.
package knowledge

import "context"

// Entry is one knowledge bank record.
type Entry struct {
	ID      uint
	Content string
	Enabled bool
}

// Match is a similarity search hit against the knowledge bank.
type Match struct {
	Content    string
	Similarity float64
}

// StyleExample pairs a raw draft with its edited form, used to steer reply tone.
type StyleExample struct {
	ID     uint
	Before string
	After  string
}

// Repository provides similarity search over knowledge bank entries.
type Repository interface {
	SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]Match, error)
	ListStyleExamples(ctx context.Context, limit int) ([]StyleExample, error)
}
