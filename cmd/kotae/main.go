// Package main is the Kotae CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kotaehq/kotae/internal/cache"
	"github.com/kotaehq/kotae/internal/config"
	"github.com/kotaehq/kotae/internal/embedding"
	"github.com/kotaehq/kotae/internal/llm"
	"github.com/kotaehq/kotae/internal/pipeline"
	"github.com/kotaehq/kotae/internal/server"
	"github.com/kotaehq/kotae/internal/storage"
	"github.com/kotaehq/kotae/internal/vectorstore"
	"github.com/kotaehq/kotae/internal/watcher"
	"github.com/kotaehq/kotae/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

func main() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "query":
		runQuery()
	case "compare":
		runCompare()
	case "delete":
		runDelete()
	case "documents":
		runDocuments()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`Usage: kotae <command> [flags]

Commands:
  server     start the HTTP API server
  ingest     upload a document to a running server
  query      ask a question against the ingested corpus
  compare    compare two documents on a topic
  delete     delete a document by id
  documents  list ingested documents
  status     show corpus and cache statistics
  version    print the version

Run "kotae <command> -h" for command flags.
`)
}

// loadConfig loads the config from path. When path is the default, a
// config.yaml in the current directory takes precedence so running from the
// project directory picks up the project's config. Returns the config and the
// path actually loaded (for saving watch directories).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedPath),
		zap.Bool("debug", debugMode))

	ctx := context.Background()

	registry, err := storage.NewSQLiteRegistry(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Fatal("open document registry", zap.Error(err))
	}
	defer registry.Close()

	tiers := cache.NewTiers(
		cache.TierConfig{TTL: time.Duration(cfg.Cache.EmbeddingTTL) * time.Second, MaxKeys: cfg.Cache.EmbeddingKeys},
		cache.TierConfig{TTL: time.Duration(cfg.Cache.QueryTTL) * time.Second, MaxKeys: cfg.Cache.QueryKeys},
		cache.TierConfig{TTL: time.Duration(cfg.Cache.DocumentTTL) * time.Second, MaxKeys: cfg.Cache.DocumentKeys},
	)

	embedder, err := buildEmbedder(cfg, tiers, logger)
	if err != nil {
		logger.Fatal("initialize embedder", zap.Error(err))
	}
	defer embedder.Close()

	store, err := buildVectorStore(ctx, cfg, embedder.Dimensions(), logger)
	if err != nil {
		logger.Fatal("initialize vector store", zap.Error(err))
	}
	defer store.Close()

	generator := llm.NewClient(llm.Config{
		BaseURL:       cfg.LLM.BaseURL,
		APIKey:        cfg.LLM.APIKey,
		Model:         cfg.LLM.Model,
		Temperature:   cfg.LLM.Temperature,
		MaxTokens:     cfg.LLM.MaxTokens,
		RetryAttempts: cfg.LLM.RetryAttempts,
	}, llm.WithLogger(logger))

	p := pipeline.New(pipeline.Config{
		ChunkSize:     cfg.Chunking.Size,
		ChunkOverlap:  cfg.Chunking.Overlap,
		VectorWeight:  cfg.Search.VectorWeight,
		KeywordWeight: cfg.Search.KeywordWeight,
	}, embedder, store, registry, tiers, generator, logger)

	watchCtx, watchCancel := context.WithCancel(ctx)
	defer watchCancel()
	watch := watcher.New(
		func(path string) {
			if _, err := p.IngestFile(context.Background(), path); err != nil {
				logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
			}
		},
		func(path string) {
			if err := p.RemoveFile(context.Background(), path); err != nil {
				logger.Warn("watch remove failed", zap.String("path", path), zap.Error(err))
			}
		},
		watcher.WithLogger(logger),
	)
	if err := watch.Start(watchCtx); err != nil {
		logger.Fatal("start watcher", zap.Error(err))
	}
	for _, dir := range cfg.Watch.Directories {
		if err := watch.AddDirectory(dir, true); err != nil {
			logger.Warn("watch directory", zap.String("path", dir), zap.Error(err))
		}
	}

	srv := server.New(p, cfg, logger, server.WithWatcher(watch, resolvedPath))
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	watchCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

func buildEmbedder(cfg *config.Config, tiers *cache.Tiers, logger *zap.Logger) (*embedding.Service, error) {
	var backend embedding.Embedder
	switch cfg.Embedding.Provider {
	case "mock":
		backend = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	case "openai":
		backend = embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			BaseURL:    cfg.Embedding.BaseURL,
			APIKey:     cfg.Embedding.APIKey,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
	return embedding.NewService(backend, tiers.Embeddings,
		embedding.WithLogger(logger),
		embedding.WithBatchSize(cfg.Embedding.BatchSize)), nil
}

func buildVectorStore(ctx context.Context, cfg *config.Config, dimensions int, logger *zap.Logger) (vectorstore.Store, error) {
	switch cfg.VectorStore.Provider {
	case "memory":
		return vectorstore.NewMemory(), nil
	case "qdrant":
		return vectorstore.NewQdrant(ctx, vectorstore.QdrantConfig{
			URL:        cfg.VectorStore.URL,
			APIKey:     cfg.VectorStore.APIKey,
			Collection: cfg.VectorStore.Collection,
			Dimensions: dimensions,
		}, vectorstore.WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown vector store provider %q", cfg.VectorStore.Provider)
	}
}

// joinArgs joins positional args with spaces so multi-word questions work
// with or without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
