package config

import (
	"errors"
	"testing"

	parleyErrors "github.com/parley-oss/parley/internal/errors"
)

func validConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func TestValidate_OK(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidate_UnknownBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Memory.Backend = "postgres"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if parleyErrors.AsCode(err) != parleyErrors.CodeBackendUnknown {
		t.Errorf("expected BACKEND_UNKNOWN, got %q", parleyErrors.AsCode(err))
	}
}

func TestValidate_UnknownKnowledgeBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Knowledge.Backend = "redis"

	if err := Validate(cfg); !errors.Is(err, parleyErrors.New(parleyErrors.CodeBackendUnknown, "")) {
		t.Errorf("expected BACKEND_UNKNOWN, got %v", err)
	}
}

func TestValidate_APIEmbedderNeedsKey(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Provider = "api"
	cfg.Embedding.APIKey = ""

	err := Validate(cfg)
	if parleyErrors.AsCode(err) != parleyErrors.CodeAPIKeyMissing {
		t.Errorf("expected API_KEY_MISSING, got %v", err)
	}

	cfg.Embedding.APIKey = "sk-test"
	if err := Validate(cfg); err != nil {
		t.Errorf("expected valid config with key set, got %v", err)
	}
}

func TestValidate_ChunkBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Knowledge.ChunkOverlap = cfg.Knowledge.ChunkSize

	if err := Validate(cfg); err == nil {
		t.Error("expected error when overlap >= size")
	}

	cfg = validConfig()
	cfg.Knowledge.ChunkSize = -1
	if err := Validate(cfg); err == nil {
		t.Error("expected error for negative chunk size")
	}
}

func TestValidate_PoolBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Memory.Pool.MinConns = 5
	cfg.Memory.Pool.MaxConns = 2

	if err := Validate(cfg); err == nil {
		t.Error("expected error when min_conns > max_conns")
	}
}
