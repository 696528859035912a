package conversation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/parley-oss/parley/internal/telemetry"
)

// MaxThreadEntries caps the number of entries retained per thread file.
// Older entries are silently dropped, ring-log style.
const MaxThreadEntries = 100

// FileStore persists one JSON array file per (user_id, session_id) thread.
// Files are UTF-8, indented, human-diffable. File and directory names are
// derived from hashes of the identifiers so arbitrary IDs stay filesystem-safe.
type FileStore struct {
	root   string
	logger *telemetry.Logger

	mu    sync.Mutex
	locks map[string]*sync.RWMutex // per-thread locks, keyed by file path
}

// NewFileStore creates the storage root if needed and returns the store.
func NewFileStore(root string, logger *telemetry.Logger) (*FileStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	if logger == nil {
		logger = telemetry.NewLogger(false)
	}
	return &FileStore{
		root:   root,
		logger: logger.WithStore("file", root),
		locks:  make(map[string]*sync.RWMutex),
	}, nil
}

func hashID(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:32]
}

func (s *FileStore) userDir(userID string) string {
	return filepath.Join(s.root, "user_"+hashID(userID))
}

func (s *FileStore) threadFile(userID, sessionID string) string {
	name := "conversation_" + hashID(userID+"_"+sessionID) + ".json"
	return filepath.Join(s.userDir(userID), name)
}

// threadLock returns the lock guarding a single thread file.
func (s *FileStore) threadLock(path string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[path]
	if !ok {
		lock = &sync.RWMutex{}
		s.locks[path] = lock
	}
	return lock
}

// readThread loads a thread file. A missing file is an empty thread; a
// corrupt file is treated as "no data" and logged, never surfaced.
func (s *FileStore) readThread(path string) []Entry {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read thread file", "file", path, "error", err)
		}
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("skipping corrupt thread file", "file", path, "error", err)
		return nil
	}
	return entries
}

// Save appends an entry to its thread file, keeping the most recent
// MaxThreadEntries entries. The whole read-modify-write runs under the
// thread's lock so concurrent appends to the same thread cannot lose updates.
func (s *FileStore) Save(ctx context.Context, entry Entry) error {
	path := s.threadFile(entry.UserID, entry.SessionID)
	lock := s.threadLock(path)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create user directory: %w", err)
	}

	entries := s.readThread(path)
	entries = append(entries, entry)
	if len(entries) > MaxThreadEntries {
		entries = entries[len(entries)-MaxThreadEntries:]
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal thread: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write thread file: %w", err)
	}
	return nil
}

// History returns the most recent limit entries in chronological order.
func (s *FileStore) History(ctx context.Context, userID, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		return []Entry{}, nil
	}

	if sessionID != "" {
		path := s.threadFile(userID, sessionID)
		lock := s.threadLock(path)
		lock.RLock()
		entries := s.readThread(path)
		lock.RUnlock()

		if len(entries) > limit {
			entries = entries[len(entries)-limit:]
		}
		if entries == nil {
			entries = []Entry{}
		}
		return entries, nil
	}

	// No session: merge every thread of the user by timestamp.
	var all []Entry
	s.scanUserThreads(userID, func(path string, entries []Entry) {
		all = append(all, entries...)
	})
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	if all == nil {
		all = []Entry{}
	}
	return all, nil
}

// Search scans every thread file of the user for a case-insensitive
// substring match in either message field, most recent first.
func (s *FileStore) Search(ctx context.Context, userID, query string, limit int) ([]Entry, error) {
	if limit <= 0 || strings.TrimSpace(query) == "" {
		return []Entry{}, nil
	}
	needle := strings.ToLower(query)

	var matches []Entry
	s.scanUserThreads(userID, func(path string, entries []Entry) {
		for _, e := range entries {
			if strings.Contains(strings.ToLower(e.UserMessage), needle) ||
				strings.Contains(strings.ToLower(e.AgentResponse), needle) {
				matches = append(matches, e)
			}
		}
	})

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Timestamp.After(matches[j].Timestamp)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	if matches == nil {
		matches = []Entry{}
	}
	return matches, nil
}

// Clear removes a single thread file, or the whole user directory when no
// session is given. Clearing something already empty is not an error.
func (s *FileStore) Clear(ctx context.Context, userID, sessionID string) (bool, error) {
	if sessionID != "" {
		path := s.threadFile(userID, sessionID)
		lock := s.threadLock(path)
		lock.Lock()
		defer lock.Unlock()

		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, fmt.Errorf("failed to remove thread file: %w", err)
		}
		return true, nil
	}

	dir := s.userDir(userID)
	files, err := filepath.Glob(filepath.Join(dir, "conversation_*.json"))
	if err != nil {
		return false, err
	}

	// Hold every known thread lock while the directory goes away so a
	// concurrent Save cannot recreate a file mid-removal.
	sort.Strings(files)
	held := make([]*sync.RWMutex, 0, len(files))
	for _, path := range files {
		lock := s.threadLock(path)
		lock.Lock()
		held = append(held, lock)
	}
	defer func() {
		for _, lock := range held {
			lock.Unlock()
		}
	}()

	if err := os.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("failed to remove user directory: %w", err)
	}
	return len(files) > 0, nil
}

// ListThreads summarizes every thread of the user, most recently active first.
func (s *FileStore) ListThreads(ctx context.Context, userID string) ([]ThreadSummary, error) {
	var summaries []ThreadSummary
	s.scanUserThreads(userID, func(path string, entries []Entry) {
		if len(entries) == 0 {
			return
		}
		first, last := entries[0], entries[len(entries)-1]
		summaries = append(summaries, ThreadSummary{
			SessionID:    first.SessionID,
			StartTime:    first.Timestamp,
			LastTime:     last.Timestamp,
			MessageCount: len(entries),
		})
	})

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastTime.After(summaries[j].LastTime)
	})
	if summaries == nil {
		summaries = []ThreadSummary{}
	}
	return summaries, nil
}

// Close implements Store. The file store holds no open resources.
func (s *FileStore) Close() error {
	return nil
}

// scanUserThreads invokes fn for each readable thread file of the user.
// Corrupt or vanished files are skipped.
func (s *FileStore) scanUserThreads(userID string, fn func(path string, entries []Entry)) {
	pattern := filepath.Join(s.userDir(userID), "conversation_*.json")
	files, err := filepath.Glob(pattern)
	if err != nil {
		s.logger.Warn("failed to scan user directory", "user_id", userID, "error", err)
		return
	}
	for _, path := range files {
		lock := s.threadLock(path)
		lock.RLock()
		entries := s.readThread(path)
		lock.RUnlock()
		if len(entries) > 0 {
			fn(path, entries)
		}
	}
}
