package conversation

import "context"

// Store persists conversation entries keyed by (user_id, session_id).
// Two implementations exist: FileStore (one JSON file per thread) and
// SQLiteStore (append-only table with full-text search). The variant is
// selected from configuration at construction time.
type Store interface {
	// Save appends an entry to its thread. Appends to the same thread are
	// serialized; appends to different threads may proceed concurrently.
	Save(ctx context.Context, entry Entry) error

	// History returns up to limit entries in chronological order (oldest
	// first). With sessionID == "" it returns the most recent entries across
	// all of the user's threads. Missing history is an empty slice, not an
	// error.
	History(ctx context.Context, userID, sessionID string, limit int) ([]Entry, error)

	// Search returns up to limit entries for the user whose user message or
	// agent response match the query, best match first.
	Search(ctx context.Context, userID, query string, limit int) ([]Entry, error)

	// Clear deletes the (userID, sessionID) thread, or every thread of the
	// user when sessionID == "". It reports whether anything was deleted and
	// is idempotent.
	Clear(ctx context.Context, userID, sessionID string) (bool, error)

	// ListThreads returns per-thread summaries, most recently active first.
	ListThreads(ctx context.Context, userID string) ([]ThreadSummary, error)

	// Close releases any resources held by the store.
	Close() error
}
