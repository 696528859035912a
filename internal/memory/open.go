package memory

import (
	"fmt"

	"github.com/parley-oss/parley/internal/config"
	"github.com/parley-oss/parley/internal/conversation"
	"github.com/parley-oss/parley/internal/embedding"
	parleyErrors "github.com/parley-oss/parley/internal/errors"
	"github.com/parley-oss/parley/internal/knowledge"
	"github.com/parley-oss/parley/internal/telemetry"
)

// Open builds a Manager with the backends the configuration names. Backend
// selection is explicit; an unknown backend is an error, never a silent
// fallback to another variant.
func Open(cfg *config.Config, logger *telemetry.Logger) (*Manager, error) {
	if logger == nil {
		logger = telemetry.NewLogger(false)
	}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, err
	}

	conv, err := openConversationStore(cfg.Memory, logger)
	if err != nil {
		return nil, err
	}

	kb, err := openKnowledgeStore(cfg.Knowledge, embedder, logger)
	if err != nil {
		conv.Close()
		return nil, err
	}

	return NewManager(conv, kb, logger), nil
}

func openConversationStore(cfg config.MemoryConfig, logger *telemetry.Logger) (conversation.Store, error) {
	switch cfg.Backend {
	case "file":
		return conversation.NewFileStore(cfg.Path, logger)
	case "sqlite":
		return conversation.NewSQLiteStore(cfg.Path, cfg.Pool.MinConns, cfg.Pool.MaxConns, logger)
	default:
		return nil, parleyErrors.New(parleyErrors.CodeBackendUnknown,
			fmt.Sprintf("unknown memory backend %q", cfg.Backend)).
			WithSuggestion("Use memory.backend: file or sqlite in parley.yaml")
	}
}

func openKnowledgeStore(cfg config.KnowledgeConfig, embedder embedding.Embedder, logger *telemetry.Logger) (knowledge.Store, error) {
	switch cfg.Backend {
	case "file":
		return knowledge.NewFileStore(cfg.Path, embedder, logger)
	case "sqlite":
		return knowledge.NewSQLiteStore(cfg.Path, embedder, logger)
	default:
		return nil, parleyErrors.New(parleyErrors.CodeBackendUnknown,
			fmt.Sprintf("unknown knowledge backend %q", cfg.Backend)).
			WithSuggestion("Use knowledge.backend: file or sqlite in parley.yaml")
	}
}
