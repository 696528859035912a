// Package parley provides the public API for the parley memory platform.
//
// Example usage:
//
//	import "github.com/parley-oss/parley/pkg/parley"
//
//	mgr, err := parley.Open(".")
//	if err != nil { ... }
//	defer mgr.Close()
//
//	reply, err := parley.Chat(context.Background(), mgr, "user-1", sessionID, "hello")
package parley

import (
	"context"
	"fmt"

	"github.com/parley-oss/parley/internal/agent"
	"github.com/parley-oss/parley/internal/config"
	"github.com/parley-oss/parley/internal/memory"
	"github.com/parley-oss/parley/internal/provider/anthropic"
	"github.com/parley-oss/parley/internal/telemetry"
)

// Open loads parley.yaml from dir and builds a memory manager over the
// configured backends. Callers own the returned manager and must Close it.
func Open(dir string) (*memory.Manager, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return OpenConfig(cfg)
}

// OpenConfig builds a memory manager from an already-loaded configuration.
func OpenConfig(cfg *config.Config) (*memory.Manager, error) {
	logger := newLogger(cfg)
	return memory.Open(cfg, logger)
}

// NewSessionID generates an opaque session identifier for a fresh thread.
func NewSessionID() string {
	return agent.NewSessionID()
}

// Chat runs one memory-backed exchange against the default Anthropic
// provider: context blocks are gathered, the model answers, and the exchange
// is recorded in the manager.
func Chat(ctx context.Context, mgr *memory.Manager, userID, sessionID, message string) (string, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}

	client := anthropic.NewClient(cfg.Provider.APIKey, cfg.Provider.Model)
	a := agent.NewMemoryAgent("assistant", "", cfg.Provider.Model, client)

	return agent.Ask(ctx, a, mgr, newLogger(cfg), userID, sessionID, message)
}

func newLogger(cfg *config.Config) *telemetry.Logger {
	verbose := cfg.Logging.Level == "debug"
	if cfg.Logging.Format == "json" {
		return telemetry.NewJSONLogger(verbose)
	}
	return telemetry.NewLogger(verbose)
}
