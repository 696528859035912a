package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/parley-oss/parley/internal/conversation"
	"github.com/parley-oss/parley/internal/knowledge"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	conv, err := conversation.NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("failed to create conversation store: %v", err)
	}
	kb, err := knowledge.NewFileStore(t.TempDir(), nil, nil)
	if err != nil {
		t.Fatalf("failed to create knowledge store: %v", err)
	}
	m := NewManager(conv, kb, nil)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManager_ContextForAgent_Sentinel(t *testing.T) {
	m := newTestManager(t)

	got := m.ContextForAgent(context.Background(), "nobody", "nowhere", 5)
	if got != NewConversationSentinel {
		t.Errorf("expected sentinel for empty thread, got %q", got)
	}
}

func TestManager_ContextForAgent_FormatsHistory(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if err := m.Record(ctx, "u1", "s1", "what is Go?", "Go is a programming language", "helper", nil); err != nil {
		t.Fatal(err)
	}
	if err := m.Record(ctx, "u1", "s1", "who made it?", "Google", "helper", nil); err != nil {
		t.Fatal(err)
	}

	block := m.ContextForAgent(ctx, "u1", "s1", 5)
	if block == NewConversationSentinel {
		t.Fatal("expected history block, got sentinel")
	}
	if !strings.HasPrefix(block, "CURRENT CONVERSATION CONTEXT (Session: s1):") {
		t.Errorf("unexpected header: %q", block)
	}
	if !strings.Contains(block, "1. User: what is Go?") {
		t.Error("expected first exchange in order")
	}
	if !strings.Contains(block, "2. User: who made it?") {
		t.Error("expected second exchange in order")
	}
	if !strings.Contains(block, "helper: Go is a programming language") {
		t.Error("expected agent response attributed to agent type")
	}
}

func TestManager_ContextForAgent_TruncatesResponses(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	long := strings.Repeat("verbose answer ", 20)
	m.Record(ctx, "u1", "s1", "q", long, "helper", nil)

	block := m.ContextForAgent(ctx, "u1", "s1", 5)
	if strings.Contains(block, long) {
		t.Error("expected long responses to be truncated")
	}
	if !strings.Contains(block, "...") {
		t.Error("expected truncation marker")
	}
}

func TestManager_RelatedContext(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	m.Record(ctx, "u1", "s1", "how do I deploy with docker?", "Use a Dockerfile", "helper", nil)
	m.Record(ctx, "u1", "s2", "what about kubernetes?", "Use manifests", "helper", nil)

	block := m.RelatedContext(ctx, "u1", "docker", 3)
	if !strings.HasPrefix(block, "RELATED CONVERSATIONS FROM OTHER SESSIONS:") {
		t.Errorf("unexpected header: %q", block)
	}
	if !strings.Contains(block, "Similar question: how do I deploy with docker?") {
		t.Error("expected matching question in block")
	}
	if !strings.Contains(block, "(Session: s1)") {
		t.Error("expected session attribution")
	}

	if got := m.RelatedContext(ctx, "u1", "quantum knitting", 3); got != "" {
		t.Errorf("expected empty block for no matches, got %q", got)
	}
}

func TestManager_KnowledgeContext(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if got := m.KnowledgeContext(ctx, "anything", 3); got != "" {
		t.Errorf("expected empty knowledge context before any add, got %q", got)
	}

	if _, err := m.AddKnowledge(ctx, "PostgreSQL supports logical replication", "pg-docs", nil); err != nil {
		t.Fatal(err)
	}

	block := m.KnowledgeContext(ctx, "postgresql replication", 3)
	if !strings.Contains(block, "RELEVANT KNOWLEDGE:") {
		t.Errorf("expected knowledge block, got %q", block)
	}
	if !strings.Contains(block, "Source: pg-docs") {
		t.Error("expected source attribution")
	}
}

func TestManager_KnowledgeContext_NilStore(t *testing.T) {
	conv, err := conversation.NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	m := NewManager(conv, nil, nil)
	defer m.Close()
	ctx := context.Background()

	if got := m.KnowledgeContext(ctx, "anything", 3); got != "" {
		t.Errorf("expected empty context without a knowledge store, got %q", got)
	}
	if id, err := m.AddKnowledge(ctx, "x", "src", nil); err != nil || id != "" {
		t.Errorf("expected AddKnowledge no-op without a store, got %q %v", id, err)
	}
}

func TestManager_ClearConversation(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	m.Record(ctx, "u1", "s1", "hello", "hi", "helper", nil)

	removed, err := m.ClearConversation(ctx, "u1", "s1")
	if err != nil {
		t.Fatal(err)
	}
	if !removed {
		t.Error("expected clear to report true")
	}
	if got := m.ContextForAgent(ctx, "u1", "s1", 5); got != NewConversationSentinel {
		t.Errorf("expected sentinel after clear, got %q", got)
	}
}

func TestManager_ListThreads(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	m.Record(ctx, "u1", "s1", "a", "b", "helper", nil)
	m.Record(ctx, "u1", "s2", "c", "d", "helper", nil)

	threads, err := m.ListThreads(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(threads) != 2 {
		t.Fatalf("expected 2 threads, got %d", len(threads))
	}
}

// failingStore simulates an unreachable backend for the degradation paths.
type failingStore struct{}

func (failingStore) Save(context.Context, conversation.Entry) error {
	return errors.New("backend down")
}
func (failingStore) History(context.Context, string, string, int) ([]conversation.Entry, error) {
	return nil, errors.New("backend down")
}
func (failingStore) Search(context.Context, string, string, int) ([]conversation.Entry, error) {
	return nil, errors.New("backend down")
}
func (failingStore) Clear(context.Context, string, string) (bool, error) {
	return false, errors.New("backend down")
}
func (failingStore) ListThreads(context.Context, string) ([]conversation.ThreadSummary, error) {
	return nil, errors.New("backend down")
}
func (failingStore) Close() error { return nil }

func TestManager_ReadFailuresDegrade(t *testing.T) {
	m := NewManager(failingStore{}, nil, nil)
	ctx := context.Background()

	if got := m.ContextForAgent(ctx, "u1", "s1", 5); got != NewConversationSentinel {
		t.Errorf("expected sentinel on read failure, got %q", got)
	}
	if got := m.RelatedContext(ctx, "u1", "query", 3); got != "" {
		t.Errorf("expected empty related context on read failure, got %q", got)
	}
}

func TestManager_WriteFailuresSurface(t *testing.T) {
	m := NewManager(failingStore{}, nil, nil)

	if err := m.Record(context.Background(), "u1", "s1", "q", "a", "helper", nil); err == nil {
		t.Error("expected write failure to surface")
	}
}
