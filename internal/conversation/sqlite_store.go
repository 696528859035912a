package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	parleyErrors "github.com/parley-oss/parley/internal/errors"
	"github.com/parley-oss/parley/internal/telemetry"
)

// SQLiteStore persists conversation entries in an append-only SQLite table
// with a full-text shadow table over both message columns.
//
// The store is fully initialized by its constructor and must be Closed to
// release the pool; operations after Close fail with NOT_INITIALIZED.
type SQLiteStore struct {
	db     *sql.DB
	logger *telemetry.Logger
	closed atomic.Bool
}

// NewSQLiteStore opens (or creates) the database at path with a bounded
// connection pool and runs migrations.
func NewSQLiteStore(path string, minConns, maxConns int, logger *telemetry.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "failed to open conversation database", err)
	}
	if maxConns < 1 {
		maxConns = 10
	}
	if minConns < 1 {
		minConns = 2
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(minConns)

	if logger == nil {
		logger = telemetry.NewLogger(false)
	}

	s := &SQLiteStore{db: db, logger: logger.WithStore("sqlite", path)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "failed to migrate conversation database", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		agent_type TEXT NOT NULL,
		user_message TEXT NOT NULL,
		agent_response TEXT NOT NULL,
		metadata TEXT,
		timestamp DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_conversations_thread ON conversations(user_id, session_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id, timestamp);

	CREATE VIRTUAL TABLE IF NOT EXISTS conversations_fts USING fts4(body);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) guard() error {
	if s.closed.Load() {
		return parleyErrors.New(parleyErrors.CodeNotInitialized, "conversation store is closed")
	}
	return nil
}

// Save inserts the entry and mirrors both message fields into the full-text
// table under the same rowid. Row atomicity is the transaction's job; no
// cross-row coordination is needed.
func (s *SQLiteStore) Save(ctx context.Context, entry Entry) error {
	if err := s.guard(); err != nil {
		return err
	}

	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	metaJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "failed to begin save", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (user_id, session_id, agent_type, user_message, agent_response, metadata, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.UserID, entry.SessionID, entry.AgentType, entry.UserMessage, entry.AgentResponse, string(metaJSON), ts)
	if err != nil {
		return parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "failed to save conversation", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	body := entry.UserMessage + " " + entry.AgentResponse
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversations_fts (rowid, body) VALUES (?, ?)`, id, body); err != nil {
		return parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "failed to index conversation", err)
	}

	return tx.Commit()
}

// History returns the most recent limit entries in chronological order.
func (s *SQLiteStore) History(ctx context.Context, userID, sessionID string, limit int) ([]Entry, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []Entry{}, nil
	}

	var rows *sql.Rows
	var err error
	if sessionID != "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT user_id, session_id, agent_type, user_message, agent_response, metadata, timestamp
			FROM conversations
			WHERE user_id = ? AND session_id = ?
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		`, userID, sessionID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT user_id, session_id, agent_type, user_message, agent_response, metadata, timestamp
			FROM conversations
			WHERE user_id = ?
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		`, userID, limit)
	}
	if err != nil {
		return nil, parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "failed to query history", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows, s.logger)
	if err != nil {
		return nil, err
	}

	// Reverse so oldest is first (we queried DESC for LIMIT).
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Search filters with the full-text index, then ranks candidates by token
// frequency with recency as tie-break.
func (s *SQLiteStore) Search(ctx context.Context, userID, query string, limit int) ([]Entry, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []Entry{}, nil
	}
	ftsQuery := buildMatchQuery(query)
	if ftsQuery == "" {
		return []Entry{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.user_id, c.session_id, c.agent_type, c.user_message, c.agent_response, c.metadata, c.timestamp
		FROM conversations c
		JOIN conversations_fts f ON f.rowid = c.id
		WHERE c.user_id = ? AND f.body MATCH ?
		ORDER BY c.timestamp DESC, c.id DESC
	`, userID, ftsQuery)
	if err != nil {
		return nil, parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "failed to search conversations", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows, s.logger)
	if err != nil {
		return nil, err
	}

	// Candidates arrive most-recent-first; a stable sort on score keeps
	// recency as the tie-break.
	sort.SliceStable(entries, func(i, j int) bool {
		return entryScore(entries[i], query) > entryScore(entries[j], query)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Clear deletes the thread (or the whole user) and reports whether rows went away.
func (s *SQLiteStore) Clear(ctx context.Context, userID, sessionID string) (bool, error) {
	if err := s.guard(); err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "failed to begin clear", err)
	}
	defer tx.Rollback()

	var res sql.Result
	if sessionID != "" {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM conversations_fts WHERE rowid IN (SELECT id FROM conversations WHERE user_id = ? AND session_id = ?)`,
			userID, sessionID); err != nil {
			return false, err
		}
		res, err = tx.ExecContext(ctx,
			`DELETE FROM conversations WHERE user_id = ? AND session_id = ?`, userID, sessionID)
	} else {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM conversations_fts WHERE rowid IN (SELECT id FROM conversations WHERE user_id = ?)`,
			userID); err != nil {
			return false, err
		}
		res, err = tx.ExecContext(ctx, `DELETE FROM conversations WHERE user_id = ?`, userID)
	}
	if err != nil {
		return false, parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "failed to clear conversations", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListThreads groups the user's entries per session, most recently active first.
func (s *SQLiteStore) ListThreads(ctx context.Context, userID string) ([]ThreadSummary, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, MIN(timestamp), MAX(timestamp), COUNT(*)
		FROM conversations
		WHERE user_id = ?
		GROUP BY session_id
		ORDER BY MAX(timestamp) DESC
	`, userID)
	if err != nil {
		return nil, parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable, "failed to list threads", err)
	}
	defer rows.Close()

	summaries := []ThreadSummary{}
	for rows.Next() {
		var ts ThreadSummary
		var start, last string
		if err := rows.Scan(&ts.SessionID, &start, &last, &ts.MessageCount); err != nil {
			return nil, err
		}
		// MIN/MAX are expressions, so the driver hands back raw strings.
		ts.StartTime = parseSQLiteTime(start)
		ts.LastTime = parseSQLiteTime(last)
		summaries = append(summaries, ts)
	}
	return summaries, rows.Err()
}

var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
}

func parseSQLiteTime(s string) time.Time {
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Close closes the connection pool. Safe to call concurrently with reads;
// only the first call touches the pool.
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func scanEntries(rows *sql.Rows, logger *telemetry.Logger) ([]Entry, error) {
	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var metaJSON sql.NullString
		if err := rows.Scan(&e.UserID, &e.SessionID, &e.AgentType, &e.UserMessage, &e.AgentResponse, &metaJSON, &e.Timestamp); err != nil {
			return nil, err
		}
		if metaJSON.Valid && metaJSON.String != "" && metaJSON.String != "null" {
			if err := json.Unmarshal([]byte(metaJSON.String), &e.Metadata); err != nil {
				// Unparseable metadata degrades that field, not the row.
				logger.Warn("skipping corrupt entry metadata", "error", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// buildMatchQuery turns free text into an OR query of sanitized tokens for
// the FTS table. Returns "" when no usable token remains.
func buildMatchQuery(query string) string {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return ""
	}
	return strings.Join(tokens, " OR ")
}

// entryScore sums query-token frequencies over both message fields.
func entryScore(e Entry, query string) int {
	text := strings.ToLower(e.UserMessage + " " + e.AgentResponse)
	score := 0
	for _, tok := range tokenize(query) {
		score += strings.Count(text, tok)
	}
	return score
}

func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		var b strings.Builder
		for _, r := range f {
			if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127 {
				b.WriteRune(r)
			}
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
		}
	}
	return tokens
}
