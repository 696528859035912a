package config

// Config represents the main project configuration (parley.yaml)
type Config struct {
	Name      string          `yaml:"name" json:"name"`
	Version   string          `yaml:"version" json:"version"`
	Provider  ProviderConfig  `yaml:"provider" json:"provider"`
	Memory    MemoryConfig    `yaml:"memory" json:"memory"`
	Knowledge KnowledgeConfig `yaml:"knowledge" json:"knowledge"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// ProviderConfig configures the LLM provider agents talk to.
type ProviderConfig struct {
	Name   string `yaml:"name" json:"name"`   // anthropic
	Model  string `yaml:"model" json:"model"` // claude-sonnet-4-20250514, etc.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
}

// MemoryConfig configures the conversation store backend.
type MemoryConfig struct {
	Backend string     `yaml:"backend" json:"backend"` // file, sqlite
	Path    string     `yaml:"path" json:"path"`       // storage directory or database file
	Pool    PoolConfig `yaml:"pool" json:"pool"`       // sqlite backend only
}

// PoolConfig bounds the sqlite connection pool.
type PoolConfig struct {
	MinConns int `yaml:"min_conns" json:"min_conns"`
	MaxConns int `yaml:"max_conns" json:"max_conns"`
}

// KnowledgeConfig configures the knowledge (RAG) store backend.
type KnowledgeConfig struct {
	Backend      string `yaml:"backend" json:"backend"`             // file, sqlite
	Path         string `yaml:"path" json:"path"`                   // storage directory or database file
	ChunkSize    int    `yaml:"chunk_size" json:"chunk_size"`       // sliding window size
	ChunkOverlap int    `yaml:"chunk_overlap" json:"chunk_overlap"` // window overlap
}

// EmbeddingConfig selects the embedding model used for vector search.
type EmbeddingConfig struct {
	Provider string `yaml:"provider" json:"provider"` // none, mock, api
	Model    string `yaml:"model" json:"model"`       // e.g. text-embedding-3-small
	APIKey   string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // text, json
}
