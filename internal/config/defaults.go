package config

// ApplyDefaults fills in zero-valued fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".kotae/documents.db"
	}
	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "qdrant"
	}
	if cfg.VectorStore.URL == "" {
		cfg.VectorStore.URL = "http://localhost:6333"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "kotae_chunks"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama-3.3-70b-versatile"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.1
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2048
	}
	if cfg.LLM.RetryAttempts == 0 {
		cfg.LLM.RetryAttempts = 3
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 500
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 100
	}
	if cfg.Cache.EmbeddingTTL == 0 {
		cfg.Cache.EmbeddingTTL = 86400
	}
	if cfg.Cache.EmbeddingKeys == 0 {
		cfg.Cache.EmbeddingKeys = 10000
	}
	if cfg.Cache.QueryTTL == 0 {
		cfg.Cache.QueryTTL = 3600
	}
	if cfg.Cache.QueryKeys == 0 {
		cfg.Cache.QueryKeys = 1000
	}
	if cfg.Cache.DocumentTTL == 0 {
		cfg.Cache.DocumentTTL = 1800
	}
	if cfg.Cache.DocumentKeys == 0 {
		cfg.Cache.DocumentKeys = 500
	}
	if cfg.Search.VectorWeight == 0 && cfg.Search.KeywordWeight == 0 {
		cfg.Search.VectorWeight = 0.5
		cfg.Search.KeywordWeight = 0.5
	}
}
