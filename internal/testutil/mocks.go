package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/parley-oss/parley/internal/provider"
)

// MockProvider implements provider.Provider for testing.
type MockProvider struct {
	mu         sync.Mutex
	Responses  []*provider.Response // queued responses, consumed in order
	Calls      []*provider.CompletionRequest
	ShouldFail bool
	FailErr    error
	Delay      time.Duration
	idx        int
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.Response, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	if m.ShouldFail {
		if m.FailErr != nil {
			return nil, m.FailErr
		}
		return nil, fmt.Errorf("mock provider error")
	}

	if m.idx >= len(m.Responses) {
		return &provider.Response{
			Content:    "default mock response",
			StopReason: "end_turn",
		}, nil
	}

	resp := m.Responses[m.idx]
	m.idx++
	return resp, nil
}

// CallCount returns the number of Complete calls made (thread-safe).
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastSystem returns the system prompt of the most recent call, or "".
func (m *MockProvider) LastSystem() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return ""
	}
	return m.Calls[len(m.Calls)-1].System
}
