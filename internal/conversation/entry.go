package conversation

import "time"

// Entry represents a single user/agent exchange within a thread.
// Entries are immutable once saved; deletion happens only through Clear.
type Entry struct {
	Timestamp     time.Time      `json:"timestamp"`
	UserID        string         `json:"user_id"`
	SessionID     string         `json:"session_id"`
	UserMessage   string         `json:"user_message"`
	AgentResponse string         `json:"agent_response"`
	AgentType     string         `json:"agent_type"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// ThreadSummary describes one (user_id, session_id) thread.
type ThreadSummary struct {
	SessionID    string    `json:"session_id"`
	StartTime    time.Time `json:"start_time"`
	LastTime     time.Time `json:"last_time"`
	MessageCount int       `json:"message_count"`
}
