// Package memory is the single entry point agents use: it composes a
// conversation store and a knowledge store behind one façade and turns
// their results into prompt-ready context blocks.
//
// Read failures degrade to empty blocks so an agent can still answer
// without memory; write failures always surface.
package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/parley-oss/parley/internal/conversation"
	"github.com/parley-oss/parley/internal/knowledge"
	"github.com/parley-oss/parley/internal/telemetry"
)

// NewConversationSentinel is returned by ContextForAgent when the thread has
// no history. Callers must treat it as "no prior content", not as context.
const NewConversationSentinel = "This is a new conversation."

const (
	historySnippetLen = 100
	relatedSnippetLen = 150
)

// Manager composes the conversation and knowledge stores.
type Manager struct {
	conversations conversation.Store
	knowledge     knowledge.Store
	logger        *telemetry.Logger
}

// NewManager builds a façade over the given stores. The knowledge store may
// be nil, in which case KnowledgeContext always returns "".
func NewManager(conversations conversation.Store, kb knowledge.Store, logger *telemetry.Logger) *Manager {
	if logger == nil {
		logger = telemetry.NewLogger(false)
	}
	return &Manager{
		conversations: conversations,
		knowledge:     kb,
		logger:        logger,
	}
}

// Record saves one user/agent exchange. Unlike the read paths, a failed
// write is returned to the caller: a silently lost save is worse than a
// failed request.
func (m *Manager) Record(ctx context.Context, userID, sessionID, userMessage, agentResponse, agentType string, metadata map[string]any) error {
	entry := conversation.Entry{
		Timestamp:     time.Now(),
		UserID:        userID,
		SessionID:     sessionID,
		UserMessage:   userMessage,
		AgentResponse: agentResponse,
		AgentType:     agentType,
		Metadata:      metadata,
	}
	return m.conversations.Save(ctx, entry)
}

// ContextForAgent formats the thread's recent history for prompt injection.
// A thread with no history yields the sentinel; so does a failed read, after
// logging, because agents answer without memory rather than erroring out.
func (m *Manager) ContextForAgent(ctx context.Context, userID, sessionID string, limit int) string {
	if limit <= 0 {
		limit = 5
	}

	history, err := m.conversations.History(ctx, userID, sessionID, limit)
	if err != nil {
		m.logger.Warn("history unavailable, continuing without context",
			"user_id", userID, "session_id", sessionID, "error", err)
		return NewConversationSentinel
	}
	if len(history) == 0 {
		return NewConversationSentinel
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CURRENT CONVERSATION CONTEXT (Session: %s):\n", sessionID)
	for i, entry := range history {
		agent := entry.AgentType
		if agent == "" {
			agent = "Agent"
		}
		fmt.Fprintf(&b, "%d. User: %s\n", i+1, entry.UserMessage)
		fmt.Fprintf(&b, "   %s: %s\n\n", agent, truncate(entry.AgentResponse, historySnippetLen))
	}
	return b.String()
}

// RelatedContext formats cross-session matches for the query, or "" when
// nothing matches. Read failures log and degrade to "".
func (m *Manager) RelatedContext(ctx context.Context, userID, query string, limit int) string {
	if limit <= 0 {
		limit = 3
	}

	matches, err := m.conversations.Search(ctx, userID, query, limit)
	if err != nil {
		m.logger.Warn("conversation search unavailable, continuing without related context",
			"user_id", userID, "error", err)
		return ""
	}
	if len(matches) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("RELATED CONVERSATIONS FROM OTHER SESSIONS:\n")
	for i, entry := range matches {
		fmt.Fprintf(&b, "%d. Similar question: %s\n", i+1, entry.UserMessage)
		fmt.Fprintf(&b, "   Previous answer: %s\n", truncate(entry.AgentResponse, relatedSnippetLen))
		fmt.Fprintf(&b, "   (Session: %s)\n\n", entry.SessionID)
	}
	return b.String()
}

// KnowledgeContext formats the knowledge base's best matches, or "" when
// no knowledge store is configured or nothing matches.
func (m *Manager) KnowledgeContext(ctx context.Context, query string, limit int) string {
	if m.knowledge == nil {
		return ""
	}
	if limit <= 0 {
		limit = 3
	}

	block, err := m.knowledge.ContextString(ctx, query, limit)
	if err != nil {
		m.logger.Warn("knowledge search unavailable, continuing without knowledge context", "error", err)
		return ""
	}
	return block
}

// AddKnowledge stores a document in the knowledge base.
func (m *Manager) AddKnowledge(ctx context.Context, content, source string, metadata map[string]any) (string, error) {
	if m.knowledge == nil {
		return "", nil
	}
	return m.knowledge.Add(ctx, content, source, metadata)
}

// Knowledge returns the underlying knowledge store, or nil when none is
// configured. Ingestion writes chunks through it directly.
func (m *Manager) Knowledge() knowledge.Store {
	return m.knowledge
}

// ClearConversation removes a thread, or every thread of the user when
// sessionID is empty.
func (m *Manager) ClearConversation(ctx context.Context, userID, sessionID string) (bool, error) {
	return m.conversations.Clear(ctx, userID, sessionID)
}

// ListThreads summarizes the user's threads, most recently active first.
func (m *Manager) ListThreads(ctx context.Context, userID string) ([]conversation.ThreadSummary, error) {
	return m.conversations.ListThreads(ctx, userID)
}

// History exposes the raw thread history for CLI display.
func (m *Manager) History(ctx context.Context, userID, sessionID string, limit int) ([]conversation.Entry, error) {
	return m.conversations.History(ctx, userID, sessionID, limit)
}

// SearchConversations exposes raw cross-session search for CLI display.
func (m *Manager) SearchConversations(ctx context.Context, userID, query string, limit int) ([]conversation.Entry, error) {
	return m.conversations.Search(ctx, userID, query, limit)
}

// SearchKnowledge exposes raw knowledge search for CLI display.
func (m *Manager) SearchKnowledge(ctx context.Context, query string, limit int) ([]knowledge.Result, error) {
	if m.knowledge == nil {
		return []knowledge.Result{}, nil
	}
	return m.knowledge.Search(ctx, query, limit)
}

// DeleteKnowledge removes a knowledge document by ID.
func (m *Manager) DeleteKnowledge(ctx context.Context, id string) (bool, error) {
	if m.knowledge == nil {
		return false, nil
	}
	return m.knowledge.Delete(ctx, id)
}

// PurgeKnowledge empties the knowledge base.
func (m *Manager) PurgeKnowledge(ctx context.Context) error {
	if m.knowledge == nil {
		return nil
	}
	return m.knowledge.Purge(ctx)
}

// Close releases both stores. The first error wins but both are closed.
func (m *Manager) Close() error {
	var firstErr error
	if err := m.conversations.Close(); err != nil {
		firstErr = err
	}
	if m.knowledge != nil {
		if err := m.knowledge.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
