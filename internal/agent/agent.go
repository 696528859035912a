// Package agent wires memory context into LLM-backed agents.
//
// Context injection is capability-based: the orchestrator hands conversation
// and knowledge blocks only to agents that declare, via interface, that they
// consume them. Agents without a capability simply never see that block.
package agent

import (
	"context"

	"github.com/google/uuid"

	"github.com/parley-oss/parley/internal/provider"
)

// Agent is anything that can answer a user message.
type Agent interface {
	// Name identifies the agent; it is recorded as the agent_type of
	// every exchange.
	Name() string

	// Respond answers a single user message.
	Respond(ctx context.Context, message string) (*provider.Response, error)
}

// ContextAware agents receive conversation context before each response:
// the current thread's history block and the cross-session related block.
// Either may be the sentinel or empty; agents include non-empty blocks in
// their prompt as-is.
type ContextAware interface {
	SetConversationContext(current, related string)
}

// KnowledgeAware agents receive a knowledge-base block before each response.
type KnowledgeAware interface {
	SetKnowledgeContext(block string)
}

// NewSessionID generates an opaque session identifier for a fresh thread.
func NewSessionID() string {
	return uuid.NewString()
}
