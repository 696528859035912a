// Package testutil provides a test harness and mocks shared across packages.
package testutil

import (
	"testing"

	"github.com/parley-oss/parley/internal/conversation"
	"github.com/parley-oss/parley/internal/knowledge"
	"github.com/parley-oss/parley/internal/memory"
	"github.com/parley-oss/parley/internal/provider"
	"github.com/parley-oss/parley/internal/telemetry"
)

// TestHarness provides everything needed for integration-style tests:
// a façade over temp-dir file stores, a mock provider, and a logger.
type TestHarness struct {
	T        *testing.T
	Manager  *memory.Manager
	Provider *MockProvider
	Logger   *telemetry.Logger
}

// NewTestHarness builds a harness over fresh temp-dir file stores. Cleanup
// is registered on t.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	logger := TestLogger()
	conv, err := conversation.NewFileStore(t.TempDir(), logger)
	if err != nil {
		t.Fatal(err)
	}
	kb, err := knowledge.NewFileStore(t.TempDir(), nil, logger)
	if err != nil {
		t.Fatal(err)
	}

	mgr := memory.NewManager(conv, kb, logger)
	t.Cleanup(func() { mgr.Close() })

	return &TestHarness{
		T:        t,
		Manager:  mgr,
		Provider: &MockProvider{},
		Logger:   logger,
	}
}

// SetResponses queues mock provider responses.
func (h *TestHarness) SetResponses(responses ...*provider.Response) {
	h.Provider.Responses = responses
}

// TestLogger returns a quiet logger for tests.
func TestLogger() *telemetry.Logger {
	return telemetry.NewLogger(false)
}
