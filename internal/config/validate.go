package config

import (
	"fmt"

	parleyErrors "github.com/parley-oss/parley/internal/errors"
)

var validBackends = map[string]bool{
	"file":   true,
	"sqlite": true,
}

var validEmbeddingProviders = map[string]bool{
	"none": true,
	"mock": true,
	"api":  true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks a loaded configuration for contract violations.
// Backend selection is explicit: an unknown backend is a hard error, never
// a silent fallback to another variant.
func Validate(cfg *Config) error {
	if !validBackends[cfg.Memory.Backend] {
		return parleyErrors.New(parleyErrors.CodeBackendUnknown,
			fmt.Sprintf("unknown memory backend %q", cfg.Memory.Backend)).
			WithSuggestion(`Set memory.backend to "file" or "sqlite" in parley.yaml`)
	}
	if !validBackends[cfg.Knowledge.Backend] {
		return parleyErrors.New(parleyErrors.CodeBackendUnknown,
			fmt.Sprintf("unknown knowledge backend %q", cfg.Knowledge.Backend)).
			WithSuggestion(`Set knowledge.backend to "file" or "sqlite" in parley.yaml`)
	}
	if !validEmbeddingProviders[cfg.Embedding.Provider] {
		return parleyErrors.New(parleyErrors.CodeConfigInvalid,
			fmt.Sprintf("unknown embedding provider %q", cfg.Embedding.Provider)).
			WithSuggestion(`Set embedding.provider to "none", "mock" or "api"`)
	}
	if cfg.Embedding.Provider == "api" && cfg.Embedding.APIKey == "" {
		return parleyErrors.New(parleyErrors.CodeAPIKeyMissing,
			"embedding provider is \"api\" but no API key is configured").
			WithSuggestion("Set the OPENAI_API_KEY environment variable or embedding.api_key in parley.yaml")
	}
	if !validLogLevels[cfg.Logging.Level] {
		return parleyErrors.New(parleyErrors.CodeConfigInvalid,
			fmt.Sprintf("unknown log level %q", cfg.Logging.Level))
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return parleyErrors.New(parleyErrors.CodeConfigInvalid,
			fmt.Sprintf("unknown log format %q", cfg.Logging.Format))
	}

	if cfg.Knowledge.ChunkSize <= 0 {
		return parleyErrors.New(parleyErrors.CodeConfigInvalid,
			"knowledge.chunk_size must be positive")
	}
	if cfg.Knowledge.ChunkOverlap < 0 || cfg.Knowledge.ChunkOverlap >= cfg.Knowledge.ChunkSize {
		return parleyErrors.New(parleyErrors.CodeConfigInvalid,
			"knowledge.chunk_overlap must be non-negative and smaller than chunk_size")
	}

	if cfg.Memory.Pool.MinConns < 1 || cfg.Memory.Pool.MaxConns < cfg.Memory.Pool.MinConns {
		return parleyErrors.New(parleyErrors.CodeConfigInvalid,
			"memory.pool must satisfy 1 <= min_conns <= max_conns")
	}

	return nil
}
