// Package config provides configuration loading and structs for the Kotae server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	VectorStore VectorStoreConfig `yaml:"vectorstore"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	LLM         LLMConfig         `yaml:"llm"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Cache       CacheConfig       `yaml:"cache"`
	Search      SearchConfig      `yaml:"search"`
	Watch       WatchConfig       `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the document registry path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// VectorStoreConfig holds vector index settings. Provider is "qdrant" or
// "memory" (tests and offline runs).
type VectorStoreConfig struct {
	Provider   string `yaml:"provider"`
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
}

// EmbeddingConfig holds embedding backend settings. Provider is "openai"
// (any OpenAI-compatible endpoint) or "mock".
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
}

// LLMConfig holds generation backend settings.
type LLMConfig struct {
	BaseURL       string  `yaml:"base_url"`
	APIKey        string  `yaml:"api_key"`
	Model         string  `yaml:"model"`
	Temperature   float64 `yaml:"temperature"`
	MaxTokens     int     `yaml:"max_tokens"`
	RetryAttempts int     `yaml:"retry_attempts"`
}

// ChunkingConfig holds default chunking parameters.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// CacheConfig holds per-tier TTLs (seconds) and capacities.
type CacheConfig struct {
	EmbeddingTTL  int `yaml:"embedding_ttl"`
	EmbeddingKeys int `yaml:"embedding_keys"`
	QueryTTL      int `yaml:"query_ttl"`
	QueryKeys     int `yaml:"query_keys"`
	DocumentTTL   int `yaml:"document_ttl"`
	DocumentKeys  int `yaml:"document_keys"`
}

// SearchConfig holds re-ranking fusion weights.
type SearchConfig struct {
	VectorWeight  float64 `yaml:"vector_weight"`
	KeywordWeight float64 `yaml:"keyword_weight"`
}

// WatchConfig holds auto-ingest directory settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
}

// Load reads and parses the config file at path, applies defaults, expands
// paths, and overlays secrets from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	applyEnv(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}
	return &cfg, nil
}

// Save writes the config to path. Used for persisting watch directory
// add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// applyEnv overlays API keys from the environment so secrets stay out of the
// config file. godotenv in main makes .env files work too.
func applyEnv(cfg *Config) {
	if v := os.Getenv("KOTAE_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	} else if v := os.Getenv("GROQ_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("KOTAE_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		cfg.VectorStore.APIKey = v
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home
// directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
