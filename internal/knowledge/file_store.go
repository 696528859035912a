package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/parley-oss/parley/internal/embedding"
	parleyErrors "github.com/parley-oss/parley/internal/errors"
	"github.com/parley-oss/parley/internal/telemetry"
)

const documentsFile = "documents.json"

// FileStore keeps the knowledge base in a single JSON document under root.
// Ranking is lexical by default; when an embedder is configured the store
// also maintains an in-memory vector index and ranks by cosine similarity.
type FileStore struct {
	root     string
	logger   *telemetry.Logger
	embedder embedding.Embedder

	mu     sync.RWMutex
	docs   []Document
	index  *chromem.Collection
	vecDB  *chromem.DB
	closed bool
}

// NewFileStore opens (or creates) the knowledge base under root. When
// embedder is non-nil every stored document is embedded and searches run
// against the vector index instead of keyword scoring.
func NewFileStore(root string, embedder embedding.Embedder, logger *telemetry.Logger) (*FileStore, error) {
	if logger == nil {
		logger = telemetry.NewLogger(false)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable,
			fmt.Sprintf("cannot create knowledge directory %s", root), err)
	}

	s := &FileStore{
		root:     root,
		logger:   logger.WithStore("file", root),
		embedder: embedder,
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	if embedder != nil {
		if err := s.rebuildIndex(); err != nil {
			return nil, err
		}
	}

	s.logger.Debug("knowledge file store opened", "documents", len(s.docs), "vector", embedder != nil)
	return s, nil
}

func (s *FileStore) load() error {
	path := filepath.Join(s.root, documentsFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "cannot read knowledge file", err)
	}

	if err := json.Unmarshal(data, &s.docs); err != nil {
		return parleyErrors.Wrap(parleyErrors.CodeCorruptData,
			fmt.Sprintf("knowledge file %s is not valid JSON", path), err).
			WithSuggestion("Move the file aside and re-ingest your documents")
	}
	return nil
}

func (s *FileStore) persist() error {
	data, err := json.MarshalIndent(s.docs, "", "  ")
	if err != nil {
		return parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "cannot encode knowledge file", err)
	}

	path := filepath.Join(s.root, documentsFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "cannot write knowledge file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "cannot replace knowledge file", err)
	}
	return nil
}

// rebuildIndex recreates the vector index from the loaded documents.
// Documents persisted without an embedding are embedded lazily here, which
// lets a keyword-only knowledge base be upgraded in place.
func (s *FileStore) rebuildIndex() error {
	s.vecDB = chromem.NewDB()
	col, err := s.vecDB.CreateCollection("knowledge", nil, nil)
	if err != nil {
		return parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "cannot create vector index", err)
	}
	s.index = col

	ctx := context.Background()
	for i := range s.docs {
		if len(s.docs[i].Embedding) == 0 {
			vec, err := s.embedder.Embed(ctx, s.docs[i].Content)
			if err != nil {
				return err
			}
			s.docs[i].Embedding = vec
		}
		if err := s.indexDoc(ctx, s.docs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileStore) indexDoc(ctx context.Context, doc Document) error {
	err := s.index.AddDocument(ctx, chromem.Document{
		ID:        doc.ID,
		Content:   doc.Content,
		Embedding: doc.Embedding,
		Metadata:  map[string]string{"source": doc.Source},
	})
	if err != nil {
		return parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "cannot index document", err)
	}
	return nil
}

func (s *FileStore) guard() error {
	if s.closed {
		return parleyErrors.New(parleyErrors.CodeNotInitialized, "knowledge store is closed")
	}
	return nil
}

// Add stores a chunk of content, embedding it first when a vector index is
// active. Re-adding identical content returns the existing ID untouched.
func (s *FileStore) Add(ctx context.Context, content, source string, metadata map[string]any) (string, error) {
	id := ContentID(content)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return "", err
	}

	for _, d := range s.docs {
		if d.ID == id {
			s.logger.Debug("duplicate content skipped", "id", id, "source", source)
			return id, nil
		}
	}

	doc := Document{
		ID:        id,
		Content:   content,
		Source:    source,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, content)
		if err != nil {
			return "", err
		}
		doc.Embedding = vec
	}

	// Index first, persist second, and roll back whichever half succeeded on
	// failure: an error from Add means nothing was stored anywhere.
	s.docs = append(s.docs, doc)
	if s.index != nil {
		if err := s.indexDoc(ctx, doc); err != nil {
			s.docs = s.docs[:len(s.docs)-1]
			return "", err
		}
	}
	if err := s.persist(); err != nil {
		s.docs = s.docs[:len(s.docs)-1]
		if s.index != nil {
			if derr := s.index.Delete(ctx, nil, nil, doc.ID); derr != nil {
				s.logger.Warn("failed to roll back vector index entry", "id", doc.ID, "error", derr)
			}
		}
		return "", err
	}

	s.logger.Debug("knowledge added", "id", id, "source", source, "bytes", len(content))
	return id, nil
}

// Search ranks stored documents against the query, best first. A limit of
// zero or less means "return nothing", never "return everything".
func (s *FileStore) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return nil, err
	}
	if limit <= 0 || len(s.docs) == 0 || query == "" {
		return []Result{}, nil
	}

	if s.index != nil {
		return s.vectorSearch(ctx, query, limit)
	}
	return s.keywordSearch(query, limit), nil
}

func (s *FileStore) keywordSearch(query string, limit int) []Result {
	var results []Result
	for _, d := range s.docs {
		score := keywordScore(d.Content, query)
		if score <= 0 {
			continue
		}
		results = append(results, Result{Document: d, Relevance: normalizeScore(score)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})
	if len(results) > limit {
		results = results[:limit]
	}
	if results == nil {
		results = []Result{}
	}
	return results
}

func (s *FileStore) vectorSearch(ctx context.Context, query string, limit int) ([]Result, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	n := limit
	if count := s.index.Count(); n > count {
		n = count
	}
	if n == 0 {
		return []Result{}, nil
	}

	hits, err := s.index.QueryEmbedding(ctx, vec, n, nil, nil)
	if err != nil {
		return nil, parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "vector query failed", err)
	}

	byID := make(map[string]Document, len(s.docs))
	for _, d := range s.docs {
		byID[d.ID] = d
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		doc, ok := byID[h.ID]
		if !ok {
			continue
		}
		results = append(results, Result{Document: doc, Relevance: clampRelevance(float64(h.Similarity))})
	}
	return results, nil
}

// clampRelevance pins a similarity onto [0, 1]. Cosine similarity can be
// negative for unrelated vectors; those rank as zero relevance.
func clampRelevance(sim float64) float64 {
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// cosineRelevance maps raw cosine similarity [-1, 1] onto [0, 1].
func cosineRelevance(sim float64) float64 {
	return clampRelevance((sim + 1) / 2)
}

// ContextString formats the top matches for prompt injection.
func (s *FileStore) ContextString(ctx context.Context, query string, limit int) (string, error) {
	results, err := s.Search(ctx, query, limit)
	if err != nil {
		return "", err
	}
	return formatContext(results), nil
}

// Delete removes a document by ID.
func (s *FileStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return false, err
	}

	for i, d := range s.docs {
		if d.ID != id {
			continue
		}
		s.docs = append(s.docs[:i], s.docs[i+1:]...)
		if err := s.persist(); err != nil {
			return false, err
		}
		if s.index != nil {
			if err := s.index.Delete(ctx, nil, nil, id); err != nil {
				return false, parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "cannot remove from vector index", err)
			}
		}
		s.logger.Debug("knowledge deleted", "id", id)
		return true, nil
	}
	return false, nil
}

// Purge empties the knowledge base.
func (s *FileStore) Purge(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}

	s.docs = nil
	if err := s.persist(); err != nil {
		return err
	}
	if s.embedder != nil {
		if err := s.rebuildIndex(); err != nil {
			return err
		}
	}
	s.logger.Info("knowledge base purged", "root", s.root)
	return nil
}

// Close marks the store unusable. The JSON file is already durable, so there
// is nothing to flush.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.index = nil
	s.vecDB = nil
	return nil
}
