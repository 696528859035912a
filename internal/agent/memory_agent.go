package agent

import (
	"context"
	"strings"

	"github.com/parley-oss/parley/internal/memory"
	"github.com/parley-oss/parley/internal/provider"
	"github.com/parley-oss/parley/internal/telemetry"
)

// MemoryAgent answers with an LLM provider and is both context- and
// knowledge-aware: whatever blocks the orchestrator hands it are prepended
// to the system prompt of the next completion.
type MemoryAgent struct {
	name         string
	systemPrompt string
	model        string
	provider     provider.Provider

	currentContext   string
	relatedContext   string
	knowledgeContext string
}

// NewMemoryAgent creates an agent backed by the given provider. model may be
// empty to use the provider's default.
func NewMemoryAgent(name, systemPrompt, model string, p provider.Provider) *MemoryAgent {
	if name == "" {
		name = "assistant"
	}
	if systemPrompt == "" {
		systemPrompt = "You are a helpful assistant with access to conversation memory and a knowledge base."
	}
	return &MemoryAgent{
		name:         name,
		systemPrompt: systemPrompt,
		model:        model,
		provider:     p,
	}
}

// Name returns the agent name.
func (a *MemoryAgent) Name() string {
	return a.name
}

// SetConversationContext implements ContextAware.
func (a *MemoryAgent) SetConversationContext(current, related string) {
	a.currentContext = current
	a.relatedContext = related
}

// SetKnowledgeContext implements KnowledgeAware.
func (a *MemoryAgent) SetKnowledgeContext(block string) {
	a.knowledgeContext = block
}

// Respond sends one completion with the accumulated context blocks in the
// system prompt. The blocks are consumed: the next Respond starts clean.
func (a *MemoryAgent) Respond(ctx context.Context, message string) (*provider.Response, error) {
	system := a.buildSystem()
	a.currentContext = ""
	a.relatedContext = ""
	a.knowledgeContext = ""

	return a.provider.Complete(ctx, &provider.CompletionRequest{
		Model:  a.model,
		System: system,
		Messages: []provider.Message{
			{Role: "user", Content: message},
		},
	})
}

// buildSystem assembles the prompt from the base instructions and whichever
// context blocks are present. Blocks are never merged or re-ranked; each is
// appended verbatim in a fixed order.
func (a *MemoryAgent) buildSystem() string {
	parts := []string{a.systemPrompt}
	if a.currentContext != "" && a.currentContext != memory.NewConversationSentinel {
		parts = append(parts, a.currentContext)
	}
	if a.relatedContext != "" {
		parts = append(parts, a.relatedContext)
	}
	if a.knowledgeContext != "" {
		parts = append(parts, a.knowledgeContext)
	}
	return strings.Join(parts, "\n\n")
}

// Ask runs one full exchange: gather context blocks for capable agents, get
// the agent's response, and record the exchange. Context gathering degrades
// silently (the façade logs); a failed record surfaces, because losing the
// memory of an exchange must be observable.
func Ask(ctx context.Context, a Agent, mgr *memory.Manager, logger *telemetry.Logger, userID, sessionID, message string) (string, error) {
	if ca, ok := a.(ContextAware); ok {
		current := mgr.ContextForAgent(ctx, userID, sessionID, 5)
		related := mgr.RelatedContext(ctx, userID, message, 3)
		ca.SetConversationContext(current, related)
	}
	if ka, ok := a.(KnowledgeAware); ok {
		ka.SetKnowledgeContext(mgr.KnowledgeContext(ctx, message, 3))
	}

	resp, err := a.Respond(ctx, message)
	if err != nil {
		return "", err
	}

	metadata := map[string]any{
		"stop_reason":   resp.StopReason,
		"input_tokens":  resp.Usage.InputTokens,
		"output_tokens": resp.Usage.OutputTokens,
	}
	if err := mgr.Record(ctx, userID, sessionID, message, resp.Content, a.Name(), metadata); err != nil {
		if logger != nil {
			logger.Error("failed to record exchange", "user_id", userID, "session_id", sessionID, "error", err)
		}
		return resp.Content, err
	}
	return resp.Content, nil
}
