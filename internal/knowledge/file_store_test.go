package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parley-oss/parley/internal/embedding"
	parleyErrors "github.com/parley-oss/parley/internal/errors"
)

func newTestFileStore(t *testing.T, embedder embedding.Embedder) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), embedder, nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFileStore_AddAndSearch(t *testing.T) {
	s := newTestFileStore(t, nil)
	ctx := context.Background()

	if _, err := s.Add(ctx, "Go channels pass values between goroutines", "go-docs", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add(ctx, "Baking bread requires yeast and patience", "cookbook", nil); err != nil {
		t.Fatal(err)
	}

	results, err := s.Search(ctx, "goroutines channels", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Source != "go-docs" {
		t.Errorf("expected go-docs result, got %s", results[0].Source)
	}
	if results[0].Relevance <= 0 || results[0].Relevance >= 1 {
		t.Errorf("expected relevance in (0,1), got %f", results[0].Relevance)
	}
}

func TestFileStore_SearchRanking(t *testing.T) {
	s := newTestFileStore(t, nil)
	ctx := context.Background()

	s.Add(ctx, "kubernetes is mentioned once here", "low", nil)
	s.Add(ctx, "kubernetes kubernetes kubernetes everywhere kubernetes", "high", nil)

	results, err := s.Search(ctx, "kubernetes", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Source != "high" {
		t.Errorf("expected frequency to rank first, got %s", results[0].Source)
	}
	if results[0].Relevance <= results[1].Relevance {
		t.Errorf("expected strictly higher relevance first: %f vs %f",
			results[0].Relevance, results[1].Relevance)
	}
}

func TestFileStore_ExactPhraseBonus(t *testing.T) {
	s := newTestFileStore(t, nil)
	ctx := context.Background()

	s.Add(ctx, "error handling patterns in distributed systems", "exact", nil)
	s.Add(ctx, "handling of an error is a patterns question", "scattered", nil)

	results, err := s.Search(ctx, "error handling", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Source != "exact" {
		t.Errorf("expected exact phrase match to rank first, got %s", results[0].Source)
	}
}

func TestFileStore_AddDeduplicates(t *testing.T) {
	s := newTestFileStore(t, nil)
	ctx := context.Background()

	id1, err := s.Add(ctx, "the same content", "first", nil)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := s.Add(ctx, "the same content", "second", nil)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Errorf("expected identical content to share an ID: %s vs %s", id1, id2)
	}

	results, _ := s.Search(ctx, "same content", 10)
	if len(results) != 1 {
		t.Fatalf("expected 1 stored document, got %d", len(results))
	}
	if results[0].Source != "first" {
		t.Errorf("expected original document to survive, got source %s", results[0].Source)
	}
}

func TestFileStore_SearchLimit(t *testing.T) {
	s := newTestFileStore(t, nil)
	ctx := context.Background()

	for _, suffix := range []string{"alpha", "beta", "gamma", "delta"} {
		s.Add(ctx, "shared topic plus "+suffix, "src", nil)
	}

	results, err := s.Search(ctx, "topic", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("expected limit 2, got %d results", len(results))
	}

	for _, limit := range []int{0, -1} {
		results, err = s.Search(ctx, "topic", limit)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 0 {
			t.Errorf("expected no results for limit %d, got %d", limit, len(results))
		}
	}
}

func TestFileStore_SearchEmpty(t *testing.T) {
	s := newTestFileStore(t, nil)
	ctx := context.Background()

	results, err := s.Search(ctx, "anything", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results from empty store, got %d", len(results))
	}

	s.Add(ctx, "some document", "src", nil)
	results, err = s.Search(ctx, "", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results for empty query, got %d", len(results))
	}
}

func TestFileStore_ContextString(t *testing.T) {
	s := newTestFileStore(t, nil)
	ctx := context.Background()

	long := strings.Repeat("database tuning advice. ", 30)
	s.Add(ctx, long, "dba-handbook", map[string]any{"topic": "db"})

	block, err := s.ContextString(ctx, "database tuning", 3)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(block, "RELEVANT KNOWLEDGE:") {
		t.Errorf("expected knowledge header, got %q", block[:40])
	}
	if !strings.Contains(block, "Source: dba-handbook") {
		t.Error("expected source attribution in context block")
	}
	if !strings.Contains(block, "...") {
		t.Error("expected long content to be truncated")
	}

	empty, err := s.ContextString(ctx, "quantum knitting", 3)
	if err != nil {
		t.Fatal(err)
	}
	if empty != "" {
		t.Errorf("expected empty context for no matches, got %q", empty)
	}
}

func TestFileStore_Delete(t *testing.T) {
	s := newTestFileStore(t, nil)
	ctx := context.Background()

	id, _ := s.Add(ctx, "document to remove", "src", nil)

	removed, err := s.Delete(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !removed {
		t.Error("expected delete to report true")
	}

	removed, err = s.Delete(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if removed {
		t.Error("expected second delete to report false")
	}

	results, _ := s.Search(ctx, "document remove", 5)
	if len(results) != 0 {
		t.Errorf("expected deleted document gone, got %d results", len(results))
	}
}

func TestFileStore_Purge(t *testing.T) {
	s := newTestFileStore(t, nil)
	ctx := context.Background()

	s.Add(ctx, "first fact", "a", nil)
	s.Add(ctx, "second fact", "b", nil)

	if err := s.Purge(ctx); err != nil {
		t.Fatal(err)
	}
	results, _ := s.Search(ctx, "fact", 5)
	if len(results) != 0 {
		t.Errorf("expected empty store after purge, got %d results", len(results))
	}
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewFileStore(dir, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := s.Add(ctx, "durable knowledge", "src", nil)
	s.Close()

	s2, err := NewFileStore(dir, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	results, err := s2.Search(ctx, "durable", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != id {
		t.Fatalf("expected reopened store to hold the document, got %v", results)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, documentsFile), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewFileStore(dir, nil, nil)
	if err == nil {
		t.Fatal("expected error for corrupt knowledge file")
	}
	if code := parleyErrors.AsCode(err); code != parleyErrors.CodeCorruptData {
		t.Errorf("expected CORRUPT_DATA, got %s", code)
	}
}

func TestFileStore_ClosedStoreFails(t *testing.T) {
	s := newTestFileStore(t, nil)
	ctx := context.Background()
	s.Close()

	if _, err := s.Add(ctx, "x", "src", nil); !errors.Is(err, parleyErrors.New(parleyErrors.CodeNotInitialized, "")) {
		t.Errorf("expected NOT_INITIALIZED from Add, got %v", err)
	}
	if _, err := s.Search(ctx, "x", 5); parleyErrors.AsCode(err) != parleyErrors.CodeNotInitialized {
		t.Errorf("expected NOT_INITIALIZED from Search, got %v", err)
	}
	if _, err := s.Delete(ctx, "id"); parleyErrors.AsCode(err) != parleyErrors.CodeNotInitialized {
		t.Errorf("expected NOT_INITIALIZED from Delete, got %v", err)
	}
	if err := s.Purge(ctx); parleyErrors.AsCode(err) != parleyErrors.CodeNotInitialized {
		t.Errorf("expected NOT_INITIALIZED from Purge, got %v", err)
	}
}

func TestFileStore_VectorSearch(t *testing.T) {
	s := newTestFileStore(t, embedding.NewMockEmbedder())
	ctx := context.Background()

	s.Add(ctx, "the sky is blue and the weather is clear", "weather", nil)
	s.Add(ctx, "chocolate cake recipe with dark cocoa", "recipes", nil)

	results, err := s.Search(ctx, "blue sky weather today", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Source != "weather" {
		t.Errorf("expected overlapping vocabulary to rank first, got %s", results[0].Source)
	}
	for _, r := range results {
		if r.Relevance < 0 || r.Relevance > 1 {
			t.Errorf("relevance out of range: %f", r.Relevance)
		}
	}
}

func TestFileStore_VectorSearchLimitBeyondCount(t *testing.T) {
	s := newTestFileStore(t, embedding.NewMockEmbedder())
	ctx := context.Background()

	s.Add(ctx, "only one document here", "src", nil)

	results, err := s.Search(ctx, "document", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result when limit exceeds count, got %d", len(results))
	}
}

func TestFileStore_VectorIndexRebuiltOnReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewFileStore(dir, embedding.NewMockEmbedder(), nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Add(ctx, "persistent vector content", "src", nil)
	s.Close()

	s2, err := NewFileStore(dir, embedding.NewMockEmbedder(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	results, err := s2.Search(ctx, "persistent vector content", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected vector index to survive reopen, got %d results", len(results))
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedder offline")
}

func (failingEmbedder) Dimensions() int { return 4 }

func TestFileStore_FailedAddStoresNothing(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewFileStore(dir, failingEmbedder{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add(ctx, "document the embedder rejects", "src", nil); err == nil {
		t.Fatal("expected add to fail when embedding fails")
	}
	s.Close()

	// A failed Add must leave no trace: reopened without an embedder, the
	// lexical path sees an empty base.
	s2, err := NewFileStore(dir, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	results, err := s2.Search(ctx, "document", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected nothing persisted after failed add, got %d documents", len(results))
	}
}
