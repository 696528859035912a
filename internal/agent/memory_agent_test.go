package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/parley-oss/parley/internal/memory"
	"github.com/parley-oss/parley/internal/provider"
	"github.com/parley-oss/parley/internal/testutil"
)

func TestMemoryAgent_CapabilityInterfaces(t *testing.T) {
	a := NewMemoryAgent("helper", "", "", &testutil.MockProvider{})

	var agent Agent = a
	if _, ok := agent.(ContextAware); !ok {
		t.Error("expected MemoryAgent to be ContextAware")
	}
	if _, ok := agent.(KnowledgeAware); !ok {
		t.Error("expected MemoryAgent to be KnowledgeAware")
	}
}

func TestMemoryAgent_BuildsSystemFromBlocks(t *testing.T) {
	mock := &testutil.MockProvider{}
	a := NewMemoryAgent("helper", "base instructions", "", mock)

	a.SetConversationContext("CURRENT CONVERSATION CONTEXT (Session: s1):\n1. User: hi", "RELATED CONVERSATIONS FROM OTHER SESSIONS:\n1. Similar question: hey")
	a.SetKnowledgeContext("RELEVANT KNOWLEDGE:\n1. Source: docs")

	if _, err := a.Respond(context.Background(), "question"); err != nil {
		t.Fatal(err)
	}

	system := mock.LastSystem()
	if !strings.HasPrefix(system, "base instructions") {
		t.Errorf("expected base prompt first, got %q", system)
	}
	for _, block := range []string{"CURRENT CONVERSATION CONTEXT", "RELATED CONVERSATIONS", "RELEVANT KNOWLEDGE"} {
		if !strings.Contains(system, block) {
			t.Errorf("expected %s block in system prompt", block)
		}
	}
}

func TestMemoryAgent_SentinelOmitted(t *testing.T) {
	mock := &testutil.MockProvider{}
	a := NewMemoryAgent("helper", "base", "", mock)

	a.SetConversationContext(memory.NewConversationSentinel, "")
	if _, err := a.Respond(context.Background(), "first message"); err != nil {
		t.Fatal(err)
	}

	if strings.Contains(mock.LastSystem(), memory.NewConversationSentinel) {
		t.Error("expected the new-conversation sentinel to be omitted from the prompt")
	}
}

func TestMemoryAgent_BlocksConsumedPerResponse(t *testing.T) {
	mock := &testutil.MockProvider{}
	a := NewMemoryAgent("helper", "base", "", mock)

	a.SetKnowledgeContext("RELEVANT KNOWLEDGE:\n1. Source: docs")
	a.Respond(context.Background(), "first")
	a.Respond(context.Background(), "second")

	if strings.Contains(mock.LastSystem(), "RELEVANT KNOWLEDGE") {
		t.Error("expected context blocks to be consumed by the first response")
	}
}

func TestAsk_RecordsExchange(t *testing.T) {
	h := testutil.NewTestHarness(t)
	h.SetResponses(&provider.Response{Content: "the answer", StopReason: "end_turn"})

	a := NewMemoryAgent("helper", "", "", h.Provider)
	ctx := context.Background()

	got, err := Ask(ctx, a, h.Manager, h.Logger, "u1", "s1", "the question")
	if err != nil {
		t.Fatal(err)
	}
	if got != "the answer" {
		t.Errorf("unexpected response: %q", got)
	}

	history, err := h.Manager.History(ctx, "u1", "s1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 recorded exchange, got %d", len(history))
	}
	if history[0].UserMessage != "the question" || history[0].AgentResponse != "the answer" {
		t.Errorf("unexpected recorded entry: %+v", history[0])
	}
	if history[0].AgentType != "helper" {
		t.Errorf("expected agent_type helper, got %s", history[0].AgentType)
	}
}

func TestAsk_SecondTurnSeesHistory(t *testing.T) {
	h := testutil.NewTestHarness(t)
	a := NewMemoryAgent("helper", "", "", h.Provider)
	ctx := context.Background()

	if _, err := Ask(ctx, a, h.Manager, h.Logger, "u1", "s1", "my name is Ada"); err != nil {
		t.Fatal(err)
	}
	if _, err := Ask(ctx, a, h.Manager, h.Logger, "u1", "s1", "what is my name?"); err != nil {
		t.Fatal(err)
	}

	system := h.Provider.LastSystem()
	if !strings.Contains(system, "my name is Ada") {
		t.Errorf("expected prior exchange in second turn's context, got %q", system)
	}
}

func TestAsk_KnowledgeInjected(t *testing.T) {
	h := testutil.NewTestHarness(t)
	ctx := context.Background()

	if _, err := h.Manager.AddKnowledge(ctx, "parley stores conversations in SQLite or JSON files", "readme", nil); err != nil {
		t.Fatal(err)
	}

	a := NewMemoryAgent("helper", "", "", h.Provider)
	if _, err := Ask(ctx, a, h.Manager, h.Logger, "u1", "s1", "where does parley store conversations?"); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(h.Provider.LastSystem(), "RELEVANT KNOWLEDGE") {
		t.Error("expected knowledge block in system prompt")
	}
}

func TestAsk_ProviderFailureNotRecorded(t *testing.T) {
	h := testutil.NewTestHarness(t)
	h.Provider.ShouldFail = true

	a := NewMemoryAgent("helper", "", "", h.Provider)
	ctx := context.Background()

	if _, err := Ask(ctx, a, h.Manager, h.Logger, "u1", "s1", "q"); err == nil {
		t.Fatal("expected provider failure to surface")
	}

	history, _ := h.Manager.History(ctx, "u1", "s1", 10)
	if len(history) != 0 {
		t.Errorf("expected no recorded exchange after provider failure, got %d", len(history))
	}
}

func TestNewSessionID_Unique(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	if a == "" || a == b {
		t.Errorf("expected distinct non-empty session ids, got %q and %q", a, b)
	}
}
