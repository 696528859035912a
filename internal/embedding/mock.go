package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const mockDimensions = 256

// MockEmbedder produces deterministic embeddings without any model: each
// token is hashed into a bucket and the bucket counts form the vector.
// Texts sharing vocabulary land near each other under cosine similarity,
// which is exactly what store tests need.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder creates a mock embedder.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{dimensions: mockDimensions}
}

// Embed converts text to a normalized bag-of-words vector.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, m.dimensions)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%uint32(m.dimensions)]++
	}
	return normalize(vec), nil
}

// Dimensions returns the embedding size.
func (m *MockEmbedder) Dimensions() int {
	return m.dimensions
}

// normalize converts the vector to unit length.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}
