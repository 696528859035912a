package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"

	"github.com/parley-oss/parley/internal/embedding"
	parleyErrors "github.com/parley-oss/parley/internal/errors"
	"github.com/parley-oss/parley/internal/telemetry"
)

// SQLiteStore persists knowledge documents in SQLite with a full-text shadow
// table. When an embedder is configured, embeddings are stored as JSON
// alongside each row and searches rank by cosine similarity in-process;
// otherwise the lexical scorer ranks full-text candidates.
type SQLiteStore struct {
	db       *sql.DB
	logger   *telemetry.Logger
	embedder embedding.Embedder
	closed   atomic.Bool
}

// NewSQLiteStore opens (or creates) the knowledge database at path.
func NewSQLiteStore(path string, embedder embedding.Embedder, logger *telemetry.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = telemetry.NewLogger(false)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "failed to open knowledge database", err)
	}

	s := &SQLiteStore{db: db, logger: logger.WithStore("sqlite", path), embedder: embedder}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "failed to migrate knowledge database", err)
	}

	s.logger.Debug("knowledge sqlite store opened", "vector", embedder != nil)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		source TEXT NOT NULL,
		metadata TEXT,
		embedding TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts4(content);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) guard() error {
	if s.closed.Load() {
		return parleyErrors.New(parleyErrors.CodeNotInitialized, "knowledge store is closed")
	}
	return nil
}

// Add stores a document keyed by its content hash. Existing content is left
// untouched and its ID returned, so re-ingesting a file is safe.
func (s *SQLiteStore) Add(ctx context.Context, content, source string, metadata map[string]any) (string, error) {
	if err := s.guard(); err != nil {
		return "", err
	}
	id := ContentID(content)

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return "", parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "failed to check for duplicate", err)
	}
	if exists > 0 {
		s.logger.Debug("duplicate content skipped", "id", id, "source", source)
		return id, nil
	}

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}

	var embJSON []byte
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, content)
		if err != nil {
			return "", err
		}
		embJSON, err = json.Marshal(vec)
		if err != nil {
			return "", fmt.Errorf("marshal embedding: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "failed to begin add", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO documents (id, content, source, metadata, embedding)
		VALUES (?, ?, ?, ?, ?)
	`, id, content, source, string(metaJSON), nullableString(embJSON))
	if err != nil {
		return "", parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "failed to add document", err)
	}

	rowid, err := res.LastInsertId()
	if err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents_fts (rowid, content) VALUES (?, ?)`, rowid, content); err != nil {
		return "", parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "failed to index document", err)
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	s.logger.Debug("knowledge added", "id", id, "source", source, "bytes", len(content))
	return id, nil
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// Search ranks stored documents against the query, best first. A limit of
// zero or less means "return nothing", never "return everything".
func (s *SQLiteStore) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if limit <= 0 || query == "" {
		return []Result{}, nil
	}

	if s.embedder != nil {
		return s.vectorSearch(ctx, query, limit)
	}
	return s.textSearch(ctx, query, limit)
}

// textSearch filters with the full-text index, then scores candidates with
// the shared lexical ranker. FTS OR-matching over-selects, so the final
// ordering happens in Go.
func (s *SQLiteStore) textSearch(ctx context.Context, query string, limit int) ([]Result, error) {
	match := buildMatchQuery(query)
	if match == "" {
		return []Result{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.content, d.source, d.metadata, d.created_at
		FROM documents d
		JOIN documents_fts f ON f.rowid = d.rowid
		WHERE f.content MATCH ?
	`, match)
	if err != nil {
		return nil, parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "failed to search documents", err)
	}
	defer rows.Close()

	docs, err := s.scanDocs(rows)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(docs))
	for _, d := range docs {
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
	return results, nil
}

// vectorSearch embeds the query and ranks every stored embedding by cosine
// similarity in-process. Knowledge bases are small enough for a full scan.
func (s *SQLiteStore) vectorSearch(ctx context.Context, query string, limit int) ([]Result, error) {
	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, source, metadata, embedding, created_at
		FROM documents
		WHERE embedding IS NOT NULL
	`)
	if err != nil {
		return nil, parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "failed to scan embeddings", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var d Document
		var metaJSON, embJSON sql.NullString
		if err := rows.Scan(&d.ID, &d.Content, &d.Source, &metaJSON, &embJSON, &d.CreatedAt); err != nil {
			return nil, err
		}
		s.decodeMetadata(&d, metaJSON)
		if embJSON.Valid {
			if err := json.Unmarshal([]byte(embJSON.String), &d.Embedding); err != nil {
				s.logger.Warn("skipping document with corrupt embedding", "id", d.ID, "error", err)
				continue
			}
		}
		sim := embedding.Cosine(qvec, d.Embedding)
		results = append(results, Result{Document: d, Relevance: cosineRelevance(sim)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
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
	return results, nil
}

func (s *SQLiteStore) scanDocs(rows *sql.Rows) ([]Document, error) {
	var docs []Document
	for rows.Next() {
		var d Document
		var metaJSON sql.NullString
		if err := rows.Scan(&d.ID, &d.Content, &d.Source, &metaJSON, &d.CreatedAt); err != nil {
			return nil, err
		}
		s.decodeMetadata(&d, metaJSON)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) decodeMetadata(d *Document, metaJSON sql.NullString) {
	if metaJSON.Valid && metaJSON.String != "" && metaJSON.String != "null" {
		if err := json.Unmarshal([]byte(metaJSON.String), &d.Metadata); err != nil {
			s.logger.Warn("skipping corrupt document metadata", "id", d.ID, "error", err)
		}
	}
}

// ContextString formats the top matches for prompt injection.
func (s *SQLiteStore) ContextString(ctx context.Context, query string, limit int) (string, error) {
	results, err := s.Search(ctx, query, limit)
	if err != nil {
		return "", err
	}
	return formatContext(results), nil
}

// Delete removes a document by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	if err := s.guard(); err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "failed to begin delete", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents_fts WHERE rowid IN (SELECT rowid FROM documents WHERE id = ?)`, id); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return false, parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "failed to delete document", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	if affected > 0 {
		s.logger.Debug("knowledge deleted", "id", id)
	}
	return affected > 0, nil
}

// Purge empties the knowledge base.
func (s *SQLiteStore) Purge(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "failed to begin purge", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents_fts`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "failed to purge documents", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Info("knowledge base purged")
	return nil
}

// Close closes the connection pool. Safe to call concurrently with reads;
// only the first call touches the pool.
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
