// Package embedding converts text into fixed-length vectors for similarity
// search. The knowledge stores degrade to lexical search when no embedder is
// configured, so every constructor here is optional equipment.
package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/parley-oss/parley/internal/config"
	parleyErrors "github.com/parley-oss/parley/internal/errors"
)

// Embedder converts text to vector embeddings.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// New builds the embedder selected by configuration. Provider "none" yields
// a nil Embedder, which the stores interpret as lexical-only operation.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "mock":
		return NewMockEmbedder(), nil
	case "api":
		return NewAPIEmbedder(cfg.APIKey, cfg.Model)
	default:
		return nil, parleyErrors.New(parleyErrors.CodeConfigInvalid,
			fmt.Sprintf("unknown embedding provider %q", cfg.Provider))
	}
}

// Cosine returns the cosine similarity of two vectors, or 0 when they are
// incomparable (different lengths or zero magnitude).
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
