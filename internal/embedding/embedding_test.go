package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/parley-oss/parley/internal/config"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder()
	ctx := context.Background()

	a, err := e.Embed(ctx, "the sky is blue")
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Embed(ctx, "the sky is blue")
	if err != nil {
		t.Fatal(err)
	}

	if len(a) != e.Dimensions() {
		t.Fatalf("expected %d dimensions, got %d", e.Dimensions(), len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("expected identical embeddings for identical text")
		}
	}
}

func TestMockEmbedder_SimilarityOrdering(t *testing.T) {
	e := NewMockEmbedder()
	ctx := context.Background()

	query, _ := e.Embed(ctx, "blue sky weather")
	near, _ := e.Embed(ctx, "the sky is blue today")
	far, _ := e.Embed(ctx, "recipe for chocolate cake")

	if Cosine(query, near) <= Cosine(query, far) {
		t.Errorf("expected overlapping vocabulary to score higher: near=%f far=%f",
			Cosine(query, near), Cosine(query, far))
	}
}

func TestCosine(t *testing.T) {
	a := []float32{1, 0, 0}
	if got := Cosine(a, a); math.Abs(got-1.0) > 1e-6 {
		t.Errorf("expected self-similarity 1, got %f", got)
	}

	b := []float32{0, 1, 0}
	if got := Cosine(a, b); got != 0 {
		t.Errorf("expected orthogonal similarity 0, got %f", got)
	}

	if got := Cosine(a, []float32{1, 0}); got != 0 {
		t.Errorf("expected mismatched lengths to score 0, got %f", got)
	}
	if got := Cosine(nil, nil); got != 0 {
		t.Errorf("expected empty vectors to score 0, got %f", got)
	}
}

func TestNew_SelectsProvider(t *testing.T) {
	e, err := New(config.EmbeddingConfig{Provider: "none"})
	if err != nil {
		t.Fatal(err)
	}
	if e != nil {
		t.Error("expected nil embedder for provider 'none'")
	}

	e, err = New(config.EmbeddingConfig{Provider: "mock"})
	if err != nil {
		t.Fatal(err)
	}
	if e == nil {
		t.Error("expected mock embedder")
	}

	if _, err := New(config.EmbeddingConfig{Provider: "api"}); err == nil {
		t.Error("expected error for api provider without key")
	}

	if _, err := New(config.EmbeddingConfig{Provider: "quantum"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
