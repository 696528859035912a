package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Document is the unit of storage in the knowledge base: a chunk of text
// with provenance, open metadata and an optional embedding vector.
// Documents are immutable once stored.
type Document struct {
	ID        string         `json:"id"` // content hash
	Content   string         `json:"content"`
	Source    string         `json:"source"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float32      `json:"embedding,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Result pairs a document with its relevance score. Scores are always in
// [0, 1], higher is more relevant, regardless of the ranking strategy.
type Result struct {
	Document
	Relevance float64 `json:"relevance"`
}

// ContentID derives the stable identifier for a piece of content. Identical
// content always hashes to the same ID, which is what makes Add idempotent.
func ContentID(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
